package embed

import (
	"github.com/theroutercompany/betterspotlight/internal/store"
	"github.com/theroutercompany/betterspotlight/internal/vectorstore"
)

// SQLSource implements CandidateSource over an FtsStore and a
// vectorstore.Store, diffing chunk-zero rows against the active
// generation's mappings (spec §4.12 step 1).
type SQLSource struct {
	Fts     *store.FtsStore
	Vectors *vectorstore.Store
}

func (s *SQLSource) unembedded(generationID string) ([]Candidate, error) {
	rows, err := s.Fts.ListChunkZeroRows()
	if err != nil {
		return nil, err
	}
	mapped, err := s.Vectors.GetAllMappingsForGeneration(generationID)
	if err != nil {
		return nil, err
	}
	embedded := make(map[int64]bool, len(mapped))
	for _, m := range mapped {
		embedded[m.ItemID] = true
	}

	var out []Candidate
	for _, r := range rows {
		if embedded[r.ItemID] {
			continue
		}
		out = append(out, Candidate{ItemID: r.ItemID, Content: r.Content})
	}
	return out, nil
}

func (s *SQLSource) CountUnembedded(generationID string) (int, error) {
	candidates, err := s.unembedded(generationID)
	return len(candidates), err
}

func (s *SQLSource) FetchUnembeddedBatch(generationID string, limit int) ([]Candidate, error) {
	candidates, err := s.unembedded(generationID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
