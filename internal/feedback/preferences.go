package feedback

import "math"

// preferenceBoostWeight/Cap give PreferenceBoost the same log-scaled,
// capped shape as the Scorer's tiered frequency boost (spec §6
// get_path_preferences' "boost is a capped function of selectionCount").
const (
	preferenceBoostWeight = 6.0
	preferenceBoostCap    = 25.0
)

// PathPreference is one directory's selection-count row plus its derived
// boost.
type PathPreference struct {
	Directory      string
	SelectionCount int64
	Boost          float64
}

// PreferenceBoost log-scales a selection count into a bounded boost.
func PreferenceBoost(selectionCount int64) float64 {
	if selectionCount <= 0 {
		return 0
	}
	boost := preferenceBoostWeight * math.Log2(1+float64(selectionCount))
	if boost > preferenceBoostCap {
		boost = preferenceBoostCap
	}
	return boost
}

// PathPreferences returns the top directories by selection count (spec §6
// get_path_preferences).
func (t *Tracker) PathPreferences(limit int) ([]PathPreference, error) {
	rows, err := t.Store.ListPathPreferences(limit)
	if err != nil {
		return nil, err
	}
	out := make([]PathPreference, len(rows))
	for i, r := range rows {
		out[i] = PathPreference{Directory: r.Directory, SelectionCount: r.SelectionCount, Boost: PreferenceBoost(r.SelectionCount)}
	}
	return out, nil
}

// BoostForPath returns the PathPreference boost for whichever configured
// directory itemPath falls under, 0 if none matches (QueryPlanner step 9
// input).
func (t *Tracker) BoostForPath(itemPath string, limit int) float64 {
	prefs, err := t.PathPreferences(limit)
	if err != nil {
		return 0
	}
	var best float64
	for _, p := range prefs {
		if len(itemPath) >= len(p.Directory) && itemPath[:len(p.Directory)] == p.Directory {
			if p.Boost > best {
				best = p.Boost
			}
		}
	}
	return best
}
