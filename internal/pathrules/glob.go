package pathrules

import "strings"

// MatchGlob matches path against pattern using the glob syntax from §4.1:
// `*` matches within a single path component, `**` matches across zero or
// more components, `?` matches a single character, and a pattern with no
// `/` matches any single path component (not just the basename).
func MatchGlob(pattern, path string) bool {
	pattern = strings.Trim(pattern, "/")
	path = strings.Trim(path, "/")

	if !strings.Contains(pattern, "/") {
		// A patternless-of-slashes token matches any single path component.
		for _, component := range strings.Split(path, "/") {
			if matchSegment(pattern, component) {
				return true
			}
		}
		return false
	}

	return matchSegments(strings.Split(pattern, "/"), strings.Split(path, "/"))
}

// matchSegments recursively matches pattern segments against path segments,
// treating "**" as matching zero or more whole segments.
func matchSegments(pat, p []string) bool {
	if len(pat) == 0 {
		return len(p) == 0
	}

	if pat[0] == "**" {
		// "**" matches zero or more path components.
		if matchSegments(pat[1:], p) {
			return true
		}
		if len(p) == 0 {
			return false
		}
		return matchSegments(pat, p[1:])
	}

	if len(p) == 0 {
		return false
	}

	if !matchSegment(pat[0], p[0]) {
		return false
	}

	return matchSegments(pat[1:], p[1:])
}

// matchSegment matches a single path component against a single pattern
// segment containing `*` and `?` wildcards (no `/`).
func matchSegment(pat, s string) bool {
	return matchSegmentHelper(pat, s)
}

// matchSegmentHelper is the classic backtracking glob matcher for `*`/`?`.
func matchSegmentHelper(pat, s string) bool {
	var pi, si int
	var starIdx = -1
	var starMatch int

	for si < len(s) {
		if pi < len(pat) && (pat[pi] == '?' || pat[pi] == s[si]) {
			pi++
			si++
			continue
		}
		if pi < len(pat) && pat[pi] == '*' {
			starIdx = pi
			starMatch = si
			pi++
			continue
		}
		if starIdx != -1 {
			pi = starIdx + 1
			starMatch++
			si = starMatch
			continue
		}
		return false
	}

	for pi < len(pat) && pat[pi] == '*' {
		pi++
	}

	return pi == len(pat)
}
