// Package typo corrects misspelled search tokens against a vocabulary
// harvested from the index, using optimal-string-alignment distance over a
// keyboard-adjacency-pruned candidate set.
package typo

import "sort"

const (
	// maxTermsPerBucket caps the vocabulary held per first-letter bucket.
	maxTermsPerBucket = 5000
	// maxTotalTerms caps the combined vocabulary across all letter buckets.
	maxTotalTerms = 100000
	// maxFilenameTerms caps the separate filename-derived bucket.
	maxFilenameTerms = 50000
)

// keyboardAdjacency maps each QWERTY key to its neighbors, used to widen
// the candidate bucket set beyond the token's own first letter (a typo in
// the first letter is still a typo).
var keyboardAdjacency = map[byte]string{
	'q': "wa", 'w': "qeas", 'e': "wrds", 'r': "etfd", 't': "ryfg", 'y': "tugh",
	'u': "yihj", 'i': "uojk", 'o': "ipkl", 'p': "ol",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiolm", 'l': "kop",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk",
}

// Term is one vocabulary entry with its document frequency.
type Term struct {
	Text     string
	DocCount int
}

// Lexicon is a bucketed vocabulary supporting bounded-distance correction.
// Zero value is usable; call Add to populate before calling Correct.
type Lexicon struct {
	buckets      map[byte][]Term
	filenames    []Term
	totalTerms   int
}

// New returns an empty Lexicon.
func New() *Lexicon {
	return &Lexicon{buckets: make(map[byte][]Term)}
}

// Add inserts a vocabulary term harvested from the FTS index or from
// unstemmed item-name tokens. Exceeding maxTermsPerBucket or maxTotalTerms
// silently drops the term: the lexicon is a best-effort correction aid, not
// an authoritative vocabulary.
func (l *Lexicon) Add(term string, docCount int) {
	if term == "" || l.totalTerms >= maxTotalTerms {
		return
	}
	if l.buckets == nil {
		l.buckets = make(map[byte][]Term)
	}
	b := term[0]
	bucket := l.buckets[b]
	if len(bucket) >= maxTermsPerBucket {
		return
	}
	for i := range bucket {
		if bucket[i].Text == term {
			bucket[i].DocCount += docCount
			return
		}
	}
	l.buckets[b] = append(bucket, Term{Text: term, DocCount: docCount})
	l.totalTerms++
}

// AddFilename inserts a filename-derived term into the separate, larger
// filename bucket (spec: filenames carry their own cap, independent of the
// per-letter vocabulary caps, since surface-form filenames are a distinct
// source from stemmed FTS content).
func (l *Lexicon) AddFilename(term string, docCount int) {
	if term == "" || len(l.filenames) >= maxFilenameTerms {
		return
	}
	for i := range l.filenames {
		if l.filenames[i].Text == term {
			l.filenames[i].DocCount += docCount
			return
		}
	}
	l.filenames = append(l.filenames, Term{Text: term, DocCount: docCount})
}

// Correction is the result of a successful Correct call.
type Correction struct {
	Corrected   string
	EditDistance int
	DocCount    int
}

// Correct finds the best vocabulary match for token within maxDistance
// edits (optimal string alignment, i.e. Damerau-Levenshtein with adjacent
// transposition). Returns ok=false if no candidate qualifies.
func (l *Lexicon) Correct(token string, maxDistance int) (Correction, bool) {
	if c, ok := l.correctOnce(token, maxDistance); ok {
		return c, true
	}
	// Retry against compressed-run forms of both input and candidates, to
	// catch typos like "brreaking" -> "breaking".
	compressed := compressRuns(token)
	if compressed == token {
		return Correction{}, false
	}
	return l.correctOnce(compressed, maxDistance)
}

func (l *Lexicon) correctOnce(token string, maxDistance int) (Correction, bool) {
	if token == "" {
		return Correction{}, false
	}

	var best Correction
	found := false

	consider := func(t Term) {
		if abs(len(t.Text)-len(token)) > maxDistance {
			return
		}
		cmpText := t.Text
		dist := osaDistance(token, cmpText, maxDistance)
		if dist < 0 || dist > maxDistance {
			// Retry the candidate's own compressed-run form too, since the
			// stored vocabulary may itself contain repeated-character noise.
			cc := compressRuns(t.Text)
			if cc != t.Text {
				dist = osaDistance(token, cc, maxDistance)
			}
			if dist < 0 || dist > maxDistance {
				return
			}
		}
		if !found || dist < best.EditDistance || (dist == best.EditDistance && t.DocCount > best.DocCount) {
			best = Correction{Corrected: t.Text, EditDistance: dist, DocCount: t.DocCount}
			found = true
		}
	}

	for _, b := range candidateBuckets(token[0]) {
		for _, t := range l.buckets[b] {
			consider(t)
		}
	}
	for _, t := range l.filenames {
		consider(t)
	}

	return best, found
}

// candidateBuckets returns first-letter plus its keyboard-adjacent letters.
func candidateBuckets(first byte) []byte {
	out := []byte{first}
	if adj, ok := keyboardAdjacency[first]; ok {
		out = append(out, []byte(adj)...)
	}
	return out
}

// osaDistance computes optimal string alignment distance between a and b,
// with row-min early-exit once every entry in a row exceeds limit (no path
// through that row can produce a result within budget). Returns -1 if the
// true distance is known to exceed limit.
func osaDistance(a, b string, limit int) int {
	la, lb := len(a), len(b)
	if abs(la-lb) > limit {
		return -1
	}

	prev2 := make([]int, lb+1)
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			v := min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && a[i-1] == b[j-2] && a[i-2] == b[j-1] {
				if t := prev2[j-2] + 1; t < v {
					v = t
				}
			}
			cur[j] = v
			if v < rowMin {
				rowMin = v
			}
		}
		if rowMin > limit {
			return -1
		}
		prev2, prev, cur = prev, cur, prev2
	}

	result := prev[lb]
	if result > limit {
		return -1
	}
	return result
}

// compressRuns collapses every run of consecutive identical characters down
// to a single occurrence (e.g. "brreaking" -> "breaking", "aaabbbccc" ->
// "abc"), applied to both the query and candidate terms so a typo that adds
// or drops a repeated character still matches.
func compressRuns(s string) string {
	if len(s) == 0 {
		return s
	}
	out := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		j := i
		for j < len(s) && s[j] == s[i] {
			j++
		}
		out = append(out, s[i])
		i = j
	}
	return string(out)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Terms returns a snapshot of all vocabulary terms, including filename
// terms, sorted by text for stable output.
func (l *Lexicon) Terms() []Term {
	var all []Term
	for _, bucket := range l.buckets {
		all = append(all, bucket...)
	}
	all = append(all, l.filenames...)
	sort.Slice(all, func(i, j int) bool { return all[i].Text < all[j].Text })
	return all
}

// Size returns the number of vocabulary terms held, excluding filenames.
func (l *Lexicon) Size() int { return l.totalTerms }
