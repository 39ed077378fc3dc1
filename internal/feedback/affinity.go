package feedback

import "github.com/theroutercompany/betterspotlight/internal/model"

// Bucket is one of the four file-type affinity buckets (spec §6
// get_file_type_affinity).
type Bucket string

const (
	BucketCode     Bucket = "code"
	BucketDocument Bucket = "document"
	BucketMedia    Bucket = "media"
	BucketOther    Bucket = "other"
)

// classify maps an item kind into its affinity bucket.
func classify(kind model.Kind) Bucket {
	switch kind {
	case model.KindCode:
		return BucketCode
	case model.KindText, model.KindMarkdown, model.KindPdf:
		return BucketDocument
	case model.KindImage:
		return BucketMedia
	default:
		return BucketOther
	}
}

// TypeAffinity reports the four bucket counters plus the primary
// affinity, an argmax with ties broken by the listed order: code,
// document, media, other (spec §6 get_file_type_affinity).
type TypeAffinity struct {
	CodeOpens       int64
	DocumentOpens   int64
	MediaOpens      int64
	OtherOpens      int64
	PrimaryAffinity Bucket
}

// TypeAffinity returns the current affinity snapshot.
func (t *Tracker) TypeAffinity() (TypeAffinity, error) {
	counts, err := t.Store.TypeAffinityCounts()
	if err != nil {
		return TypeAffinity{}, err
	}
	ta := TypeAffinity{
		CodeOpens:     counts[string(BucketCode)],
		DocumentOpens: counts[string(BucketDocument)],
		MediaOpens:    counts[string(BucketMedia)],
		OtherOpens:    counts[string(BucketOther)],
	}
	ta.PrimaryAffinity = primaryAffinity(ta)
	return ta, nil
}

func primaryAffinity(ta TypeAffinity) Bucket {
	best, bestCount := BucketCode, ta.CodeOpens
	for _, cand := range []struct {
		bucket Bucket
		count  int64
	}{
		{BucketDocument, ta.DocumentOpens},
		{BucketMedia, ta.MediaOpens},
		{BucketOther, ta.OtherOpens},
	} {
		if cand.count > bestCount {
			best, bestCount = cand.bucket, cand.count
		}
	}
	return best
}
