// Package vectorstore implements VectorStore (spec §4.11): the
// SQL-backed mapping between items and HNSW vector labels, scoped by
// embedding-model generation. Grounded on internal/store's sqlite
// wrapper idiom (WAL mode, single-writer pool).
package vectorstore

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theroutercompany/betterspotlight/internal/model"
)

// ErrLabelOverflow is returned when hnsw_label exceeds int64's range.
var ErrLabelOverflow = errors.New("hnsw label exceeds int64 range")

// ErrNegativeOrdinal is returned when passageOrdinal is negative.
var ErrNegativeOrdinal = errors.New("passage ordinal must be non-negative")

const maxLabel = math.MaxInt64

// Store is the SQL-backed item<->label mapping table (spec §4.11).
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open creates or migrates the vector_map schema at path.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" && path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, p := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000", "PRAGMA synchronous = NORMAL"} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS vector_map (
			item_id INTEGER NOT NULL,
			hnsw_label INTEGER NOT NULL,
			model_id TEXT NOT NULL,
			generation_id TEXT NOT NULL,
			dimensions INTEGER NOT NULL,
			provider TEXT NOT NULL,
			passage_ordinal INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT 'active',
			embedded_at INTEGER NOT NULL,
			UNIQUE(item_id, generation_id),
			UNIQUE(hnsw_label, generation_id)
		);
		CREATE TABLE IF NOT EXISTS generation_state (
			generation_id TEXT PRIMARY KEY,
			model_id TEXT NOT NULL,
			dimensions INTEGER NOT NULL,
			provider TEXT NOT NULL,
			state TEXT NOT NULL,
			progress_pct REAL NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 0
		);
	`); err != nil {
		return fmt.Errorf("migrate vector_map: %w", err)
	}
	return s.migrateLegacySchema()
}

// migrateLegacySchema adapts a pre-generation single-column vector_map
// variant (item_id, hnsw_label only) to the current schema, the way spec
// §4.11 requires ("legacy single-column variant is migrated on open").
func (s *Store) migrateLegacySchema() error {
	rows, err := s.db.Query(`PRAGMA table_info(vector_map_legacy)`)
	if err != nil {
		return nil // no legacy table, nothing to do
	}
	defer rows.Close()
	if !rows.Next() {
		return nil
	}
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO vector_map (item_id, hnsw_label, model_id, generation_id, dimensions, provider, passage_ordinal, state, embedded_at)
		SELECT item_id, hnsw_label, '', 'legacy', 0, '', 0, 'active', 0 FROM vector_map_legacy
	`)
	if err != nil {
		return fmt.Errorf("migrate legacy vector_map: %w", err)
	}
	_, err = s.db.Exec(`DROP TABLE vector_map_legacy`)
	return err
}

// AddMapping inserts one item<->label mapping for a generation.
func (s *Store) AddMapping(m model.VectorMapping) error {
	if m.Label > maxLabel {
		return ErrLabelOverflow
	}
	if m.PassageOrdinal < 0 {
		return ErrNegativeOrdinal
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO vector_map (item_id, hnsw_label, model_id, generation_id, dimensions, provider, passage_ordinal, state, embedded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ItemID, m.Label, m.ModelID, m.GenerationID, m.Dimensions, m.Provider, m.PassageOrdinal, orDefault(m.State, "active"), time.Now().Unix())
	return err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// RemoveMapping deletes one item's mapping within a generation.
func (s *Store) RemoveMapping(itemID int64, generationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM vector_map WHERE item_id = ? AND generation_id = ?`, itemID, generationID)
	return err
}

// RemoveGeneration deletes every mapping belonging to a generation.
func (s *Store) RemoveGeneration(generationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM vector_map WHERE generation_id = ?`, generationID)
	return err
}

// GetLabel returns the label mapped to itemID. An empty generationID
// resolves to the active generation.
func (s *Store) GetLabel(itemID int64, generationID string) (uint64, bool, error) {
	gen, err := s.resolveGeneration(generationID)
	if err != nil {
		return 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var label uint64
	err = s.db.QueryRow(`SELECT hnsw_label FROM vector_map WHERE item_id = ? AND generation_id = ?`, itemID, gen).Scan(&label)
	if err != nil {
		return 0, false, nil
	}
	return label, true, nil
}

// GetItemId returns the item mapped to label.
func (s *Store) GetItemId(label uint64, generationID string) (int64, bool, error) {
	gen, err := s.resolveGeneration(generationID)
	if err != nil {
		return 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var itemID int64
	err = s.db.QueryRow(`SELECT item_id FROM vector_map WHERE hnsw_label = ? AND generation_id = ?`, label, gen).Scan(&itemID)
	if err != nil {
		return 0, false, nil
	}
	return itemID, true, nil
}

func (s *Store) resolveGeneration(generationID string) (string, error) {
	if generationID != "" {
		return generationID, nil
	}
	active, ok := s.ActiveGenerationState()
	if !ok {
		return "", nil
	}
	return active.GenerationID, nil
}

// CountMappings returns the total mapping count across all generations.
func (s *Store) CountMappings() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM vector_map`).Scan(&n)
	return n
}

// CountMappingsForGeneration returns the mapping count within one
// generation.
func (s *Store) CountMappingsForGeneration(generationID string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM vector_map WHERE generation_id = ?`, generationID).Scan(&n)
	return n
}

// GetAllMappings returns every mapping row.
func (s *Store) GetAllMappings() ([]model.VectorMapping, error) {
	return s.queryMappings(`SELECT item_id, hnsw_label, model_id, generation_id, dimensions, provider, passage_ordinal, state FROM vector_map`)
}

// GetAllMappingsForGeneration scopes GetAllMappings to one generation.
func (s *Store) GetAllMappingsForGeneration(generationID string) ([]model.VectorMapping, error) {
	return s.queryMappings(`SELECT item_id, hnsw_label, model_id, generation_id, dimensions, provider, passage_ordinal, state FROM vector_map WHERE generation_id = ?`, generationID)
}

func (s *Store) queryMappings(query string, args ...any) ([]model.VectorMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VectorMapping
	for rows.Next() {
		var m model.VectorMapping
		if err := rows.Scan(&m.ItemID, &m.Label, &m.ModelID, &m.GenerationID, &m.Dimensions, &m.Provider, &m.PassageOrdinal, &m.State); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertGenerationState inserts or updates one generation's lifecycle row.
func (s *Store) UpsertGenerationState(gs model.GenerationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO generation_state (generation_id, model_id, dimensions, provider, state, progress_pct, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(generation_id) DO UPDATE SET
			model_id=excluded.model_id, dimensions=excluded.dimensions, provider=excluded.provider,
			state=excluded.state, progress_pct=excluded.progress_pct, active=excluded.active
	`, gs.GenerationID, gs.ModelID, gs.Dimensions, gs.Provider, gs.State, gs.ProgressPct, boolToInt(gs.Active))
	return err
}

// ListGenerationStates returns every known generation.
func (s *Store) ListGenerationStates() ([]model.GenerationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT generation_id, model_id, dimensions, provider, state, progress_pct, active FROM generation_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GenerationState
	for rows.Next() {
		var gs model.GenerationState
		var active int
		if err := rows.Scan(&gs.GenerationID, &gs.ModelID, &gs.Dimensions, &gs.Provider, &gs.State, &gs.ProgressPct, &active); err != nil {
			return nil, err
		}
		gs.Active = active != 0
		out = append(out, gs)
	}
	return out, rows.Err()
}

// ActiveGenerationState returns the currently active generation, if any.
func (s *Store) ActiveGenerationState() (model.GenerationState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var gs model.GenerationState
	var active int
	err := s.db.QueryRow(`SELECT generation_id, model_id, dimensions, provider, state, progress_pct, active FROM generation_state WHERE active = 1 LIMIT 1`).
		Scan(&gs.GenerationID, &gs.ModelID, &gs.Dimensions, &gs.Provider, &gs.State, &gs.ProgressPct, &active)
	if err != nil {
		return model.GenerationState{}, false
	}
	gs.Active = true
	return gs, true
}

// SetActiveGeneration marks generationID active and every other
// generation inactive, creating a default row if generationID is unknown
// (spec §4.11).
func (s *Store) SetActiveGeneration(generationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE generation_state SET active = 0`); err != nil {
		return err
	}
	res, err := tx.Exec(`UPDATE generation_state SET active = 1 WHERE generation_id = ?`, generationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.Exec(`INSERT INTO generation_state (generation_id, model_id, dimensions, provider, state, progress_pct, active)
			VALUES (?, '', 0, '', 'active', 0, 1)`, generationID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClearAll removes every mapping and generation row.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM vector_map`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM generation_state`); err != nil {
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
