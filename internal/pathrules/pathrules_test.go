package pathrules

import "testing"

func TestMatchGlobStar(t *testing.T) {
	if !MatchGlob("*.log", "debug.log") {
		t.Fatal("expected *.log to match debug.log")
	}
	if MatchGlob("*.log", "debug.log.bak") {
		t.Fatal("did not expect *.log to match debug.log.bak")
	}
}

func TestMatchGlobDoubleStar(t *testing.T) {
	if !MatchGlob("**/node_modules/**", "project/api/node_modules/left-pad/index.js") {
		t.Fatal("expected ** to match arbitrary ancestors and descendants")
	}
	if !MatchGlob("**/node_modules/**", "node_modules/left-pad/index.js") {
		t.Fatal("expected ** to also match zero ancestor components")
	}
}

func TestMatchGlobPatternlessToken(t *testing.T) {
	if !MatchGlob("target", "a/b/target/debug/foo") {
		t.Fatal("expected a slash-free pattern to match any path component")
	}
}

func TestValidateBuiltinExclusion(t *testing.T) {
	r := New()
	if got := r.Validate("/home/user/project/node_modules/pkg/index.js", 10); got != Exclude {
		t.Fatalf("expected Exclude, got %v", got)
	}
}

func TestValidateSensitiveDirectory(t *testing.T) {
	r := New()
	if got := r.Validate("/home/user/.ssh/id_rsa", 100); got != MetadataOnly {
		t.Fatalf("expected MetadataOnly for .ssh contents, got %v", got)
	}
}

func TestValidateAllowListedDotDir(t *testing.T) {
	r := New()
	if got := r.Validate("/home/user/.config/app/settings.json", 100); got != Include {
		t.Fatalf("expected Include for allow-listed dot dir, got %v", got)
	}
}

func TestValidateDisallowedDotDir(t *testing.T) {
	r := New()
	if got := r.Validate("/home/user/.secret-stuff/notes.txt", 100); got != Exclude {
		t.Fatalf("expected Exclude for non-allow-listed dot dir, got %v", got)
	}
}

func TestValidateOversizedFile(t *testing.T) {
	r := New()
	if got := r.Validate("/home/user/huge.bin", 6*1024*1024*1024); got != Exclude {
		t.Fatalf("expected Exclude for file over 5 GiB, got %v", got)
	}
}

func TestValidateUserGlobTakesPriority(t *testing.T) {
	r := New()
	r.SetUserPatterns([]string{"*.secret"})
	if got := r.Validate("/home/user/.config/app/settings.secret", 10); got != Exclude {
		t.Fatalf("expected user pattern to exclude even an allow-listed dot dir, got %v", got)
	}
}

func TestValidateOrdinaryFileIncluded(t *testing.T) {
	r := New()
	if got := r.Validate("/home/user/project/main.go", 1024); got != Include {
		t.Fatalf("expected Include, got %v", got)
	}
}

func TestClassifySensitivity(t *testing.T) {
	r := New()
	if r.ClassifySensitivity("/home/user/.aws/credentials") != SensitivePath {
		t.Fatal("expected SensitivePath")
	}
	if r.ClassifySensitivity("/home/user/.config/app.yaml") != Hidden {
		t.Fatal("expected Hidden")
	}
	if r.ClassifySensitivity("/home/user/project/main.go") != Normal {
		t.Fatal("expected Normal")
	}
}

func TestIsCloudFolder(t *testing.T) {
	r := New()
	if !r.IsCloudFolder("/Users/me/Dropbox/notes.txt") {
		t.Fatal("expected Dropbox path to be a cloud folder")
	}
	if r.IsCloudFolder("/Users/me/Documents/notes.txt") {
		t.Fatal("did not expect Documents to be a cloud folder")
	}
}
