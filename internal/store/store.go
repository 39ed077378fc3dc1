// Package store is the façade over the embedded SQL engine (spec §4.9
// FtsStore): schema creation, item/chunk/failure CRUD, FTS5 search, and
// the settings/interactions/feedback/frequency tables of spec §3.
// Grounded on the teacher's sqlite_bm25.go: pure-Go modernc.org/sqlite
// driver, WAL mode, single-writer connection pool.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/theroutercompany/betterspotlight/internal/model"
)

// FtsHit is one result row from searchFts5 (spec §4.9).
type FtsHit struct {
	ItemID   int64
	Score    float64 // bm25 score, <= 0, more negative = stronger
	Snippet  string
}

// Health mirrors spec §4.9's getHealth() object.
type Health struct {
	IsHealthy          bool
	TotalIndexedItems  int64
	TotalChunks        int64
	TotalFailures      int64
	LastIndexTime      time.Time
	IndexAge           time.Duration
	FtsIndexSize       int64
	ItemsWithoutContent int64
}

// FtsStore is the primary backend: a single SQLite connection guarded by
// a mutex the way the teacher's SQLiteBM25Index guards its db handle.
// Item/chunk/failure/frequency/interaction/feedback/settings storage
// always lives in SQLite; only content search (ReplaceChunks/SearchFts5)
// is redirected to bleve when Backend is BackendBleve.
type FtsStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	path    string
	backend Backend
	bleve   *bleveContentIndex
}

// Open creates or migrates the schema at path (":memory:" for an ephemeral
// store) and returns a ready FtsStore using the default SQLite FTS5
// backend.
func Open(path string) (*FtsStore, error) {
	return OpenWithBackend(path, BackendSQLite)
}

// OpenWithBackend is Open with an explicit content-search backend (spec
// §4.9 domain-stack note: FtsStore is selectable between FTS5 and Bleve,
// grounded on the teacher's NewBM25IndexWithBackend).
func OpenWithBackend(path string, backend Backend) (*FtsStore, error) {
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
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if backend == "" {
		backend = BackendSQLite
	}
	s := &FtsStore{db: db, path: path, backend: backend}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if backend == BackendBleve {
		blevePath := ""
		if path != "" && path != ":memory:" {
			blevePath = path + ".bleve"
		}
		idx, err := newBleveContentIndex(blevePath)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.bleve = idx
	}
	return s, nil
}

func (s *FtsStore) Close() error {
	if s.bleve != nil {
		_ = s.bleve.close()
	}
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT UNIQUE NOT NULL,
	basename TEXT NOT NULL,
	extension TEXT NOT NULL,
	kind INTEGER NOT NULL,
	size INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	modified_at INTEGER NOT NULL,
	indexed_at INTEGER NOT NULL,
	content_hash TEXT NOT NULL DEFAULT '',
	sensitivity INTEGER NOT NULL DEFAULT 0,
	pinned INTEGER NOT NULL DEFAULT 0,
	parent_path TEXT NOT NULL DEFAULT ''
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	item_id UNINDEXED,
	chunk_index UNINDEXED,
	offset UNINDEXED,
	tokenize = 'unicode61'
);

CREATE TABLE IF NOT EXISTS chunk_ids (
	item_id INTEGER NOT NULL,
	rowid INTEGER NOT NULL,
	PRIMARY KEY (item_id, rowid)
);

CREATE TABLE IF NOT EXISTS failures (
	item_id INTEGER PRIMARY KEY,
	stage TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS frequency (
	item_id INTEGER PRIMARY KEY,
	open_count INTEGER NOT NULL DEFAULT 0,
	last_opened_at INTEGER NOT NULL DEFAULT 0,
	total_interactions INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	normalized_query TEXT NOT NULL,
	item_id INTEGER NOT NULL,
	path TEXT NOT NULL,
	match_type TEXT NOT NULL,
	result_position INTEGER NOT NULL,
	frontmost_app TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id INTEGER NOT NULL,
	action TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS path_preferences (
	directory TEXT PRIMARY KEY,
	selection_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS type_affinity (
	bucket TEXT PRIMARY KEY,
	open_count INTEGER NOT NULL DEFAULT 0
);
`

func (s *FtsStore) initSchema() error {
	_, err := s.db.Exec(schema)
	return err
}

// UpsertItem inserts or updates an item by path, setting indexed-at to
// now. Implements both spec §4.9's upsertItem and indexer.ItemStore.
func (s *FtsStore) UpsertItem(item *model.Item) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	res, err := s.db.Exec(`
		INSERT INTO items (path, basename, extension, kind, size, created_at, modified_at, indexed_at, content_hash, sensitivity, pinned, parent_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			basename=excluded.basename, extension=excluded.extension, kind=excluded.kind,
			size=excluded.size, created_at=excluded.created_at, modified_at=excluded.modified_at,
			indexed_at=excluded.indexed_at, content_hash=excluded.content_hash,
			sensitivity=excluded.sensitivity, parent_path=excluded.parent_path
	`, item.Path, item.Basename, item.Extension, int(item.Kind), item.Size,
		item.CreatedAt.Unix(), item.ModifiedAt.Unix(), now, item.ContentHash,
		int(item.Sensitivity), boolToInt(item.Pinned), item.ParentPath)
	if err != nil {
		return 0, fmt.Errorf("upsert item: %w", err)
	}

	item.IndexedAt = time.Unix(now, 0)
	if item.ID != 0 {
		return item.ID, nil
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		row := s.db.QueryRow(`SELECT id FROM items WHERE path = ?`, item.Path)
		if scanErr := row.Scan(&id); scanErr != nil {
			return 0, fmt.Errorf("resolve item id: %w", scanErr)
		}
	}
	item.ID = id
	return id, nil
}

// DeleteItem cascades to chunks, failures, frequency (spec §4.9
// deleteItemByPath; vector mapping cascade lives in VectorStore).
func (s *FtsStore) DeleteItem(itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteItemLocked(itemID)
}

func (s *FtsStore) deleteItemLocked(itemID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`DELETE FROM items WHERE id = ?`,
		`DELETE FROM failures WHERE item_id = ?`,
		`DELETE FROM frequency WHERE item_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q, itemID); err != nil {
			return err
		}
	}
	if err := deleteChunksTx(tx, itemID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteItemByPath resolves path to an id and deletes it (spec's named
// operation; DeleteItem is the ItemStore-facing alias).
func (s *FtsStore) DeleteItemByPath(path string) error {
	item, ok := s.GetItemByPath(path)
	if !ok {
		return nil
	}
	return s.DeleteItem(item.ID)
}

func deleteChunksTx(tx *sql.Tx, itemID int64) error {
	rows, err := tx.Query(`SELECT rowid FROM chunk_ids WHERE item_id = ?`, itemID)
	if err != nil {
		return err
	}
	var rowids []int64
	for rows.Next() {
		var r int64
		if err := rows.Scan(&r); err != nil {
			rows.Close()
			return err
		}
		rowids = append(rowids, r)
	}
	rows.Close()
	for _, r := range rowids {
		if _, err := tx.Exec(`DELETE FROM chunks_fts WHERE rowid = ?`, r); err != nil {
			return err
		}
	}
	_, err = tx.Exec(`DELETE FROM chunk_ids WHERE item_id = ?`, itemID)
	return err
}

// ReplaceChunks atomically clears and re-inserts an item's chunk set
// (spec §4.9 insertChunks + deleteChunksForItem).
func (s *FtsStore) ReplaceChunks(itemID int64, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteChunksTx(tx, itemID); err != nil {
		return err
	}
	for _, c := range chunks {
		res, err := tx.Exec(`INSERT INTO chunks_fts (content, item_id, chunk_index, offset) VALUES (?, ?, ?, ?)`,
			c.Content, itemID, c.Index, c.Offset)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO chunk_ids (item_id, rowid) VALUES (?, ?)`, itemID, rowid); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if s.bleve != nil {
		bc := make([]bleveChunk, len(chunks))
		for i, c := range chunks {
			bc[i] = bleveChunk{Index: c.Index, Content: c.Content}
		}
		if err := s.bleve.replaceChunks(itemID, bc); err != nil {
			return fmt.Errorf("mirror chunks to bleve: %w", err)
		}
	}
	return nil
}

// UpdateContentHash sets an item's stored content hash (spec §4.9).
func (s *FtsStore) UpdateContentHash(itemID int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE items SET content_hash = ? WHERE id = ?`, hash, itemID)
	return err
}

// RecordFailure upserts the single most recent failure row for an item.
func (s *FtsStore) RecordFailure(itemID int64, failure model.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec(`
		INSERT INTO failures (item_id, stage, message, timestamp) VALUES (?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET stage=excluded.stage, message=excluded.message, timestamp=excluded.timestamp
	`, itemID, failure.Stage, failure.Message, time.Now().Unix())
}

// ClearFailure removes any recorded failure for an item.
func (s *FtsStore) ClearFailure(itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec(`DELETE FROM failures WHERE item_id = ?`, itemID)
}

// GetItemByPath and GetItemById satisfy spec §4.9's accessors and the
// indexer.ItemStore interface.
func (s *FtsStore) GetItemByPath(path string) (*model.Item, bool) {
	return s.scanItem(`SELECT id, path, basename, extension, kind, size, created_at, modified_at, indexed_at, content_hash, sensitivity, pinned, parent_path FROM items WHERE path = ?`, path)
}

func (s *FtsStore) GetItemById(id int64) (*model.Item, bool) {
	return s.scanItem(`SELECT id, path, basename, extension, kind, size, created_at, modified_at, indexed_at, content_hash, sensitivity, pinned, parent_path FROM items WHERE id = ?`, id)
}

func (s *FtsStore) scanItem(query string, arg any) (*model.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var item model.Item
	var kind, sensitivity int
	var pinned int
	var created, modified, indexed int64
	row := s.db.QueryRow(query, arg)
	err := row.Scan(&item.ID, &item.Path, &item.Basename, &item.Extension, &kind, &item.Size,
		&created, &modified, &indexed, &item.ContentHash, &sensitivity, &pinned, &item.ParentPath)
	if err != nil {
		return nil, false
	}
	item.Kind = model.Kind(kind)
	item.Sensitivity = model.Sensitivity(sensitivity)
	item.Pinned = pinned != 0
	item.CreatedAt = time.Unix(created, 0)
	item.ModifiedAt = time.Unix(modified, 0)
	item.IndexedAt = time.Unix(indexed, 0)
	return &item, true
}

// GetFrequency returns the open-count/recency row for an item.
func (s *FtsStore) GetFrequency(itemID int64) model.Frequency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var f model.Frequency
	f.ItemID = itemID
	var lastOpened int64
	row := s.db.QueryRow(`SELECT open_count, last_opened_at, total_interactions FROM frequency WHERE item_id = ?`, itemID)
	_ = row.Scan(&f.OpenCount, &lastOpened, &f.TotalInteractions)
	f.LastOpenedAt = time.Unix(lastOpened, 0)
	return f
}

// RecordInteraction appends to the interaction stream and bumps frequency
// (spec §3 Interaction/Frequency, fed to EDA feedback loops).
func (s *FtsStore) RecordInteraction(in model.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO interactions (normalized_query, item_id, path, match_type, result_position, frontmost_app, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.NormalizedQuery, in.ItemID, in.Path, string(in.MatchType), in.ResultPosition, in.FrontmostApp, in.Timestamp.Unix()); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO frequency (item_id, open_count, last_opened_at, total_interactions) VALUES (?, 1, ?, 1)
		ON CONFLICT(item_id) DO UPDATE SET
			open_count = open_count + 1,
			last_opened_at = excluded.last_opened_at,
			total_interactions = total_interactions + 1
	`, in.ItemID, in.Timestamp.Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordFeedback appends a raw feedback event (spec §3 Feedback).
func (s *FtsStore) RecordFeedback(fb model.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO feedback (item_id, action, query, timestamp) VALUES (?, ?, ?, ?)`,
		fb.ItemID, string(fb.Action), fb.Query, fb.Timestamp.Unix())
	return err
}

// SetPinned flips an item's pinned flag, the durable side effect of a
// pin/unpin Feedback action (spec §3 Feedback "pinned-flag aggregation").
func (s *FtsStore) SetPinned(itemID int64, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE items SET pinned = ? WHERE id = ?`, boolToInt(pinned), itemID)
	return err
}

// BumpPathPreference increments the per-directory selection counter, the
// incremental-refresh path_preferences update run_aggregation later
// reconciles with a full recompute.
func (s *FtsStore) BumpPathPreference(directory string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO path_preferences (directory, selection_count) VALUES (?, 1)
		ON CONFLICT(directory) DO UPDATE SET selection_count = selection_count + 1
	`, directory)
	return err
}

// BumpTypeAffinity increments one of the four affinity buckets.
func (s *FtsStore) BumpTypeAffinity(bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO type_affinity (bucket, open_count) VALUES (?, 1)
		ON CONFLICT(bucket) DO UPDATE SET open_count = open_count + 1
	`, bucket)
	return err
}

// PathPreferenceRow is one directory's selection-count row.
type PathPreferenceRow struct {
	Directory      string
	SelectionCount int64
}

// ListPathPreferences returns the top directories by selection count,
// most-selected first (spec §6 get_path_preferences).
func (s *FtsStore) ListPathPreferences(limit int) ([]PathPreferenceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT directory, selection_count FROM path_preferences ORDER BY selection_count DESC, directory ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PathPreferenceRow
	for rows.Next() {
		var r PathPreferenceRow
		if err := rows.Scan(&r.Directory, &r.SelectionCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TypeAffinityCounts returns the four bucket counters, zero for any bucket
// with no interactions yet (spec §6 get_file_type_affinity).
func (s *FtsStore) TypeAffinityCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT bucket, open_count FROM type_affinity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{"code": 0, "document": 0, "media": 0, "other": 0}
	for rows.Next() {
		var bucket string
		var count int64
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, err
		}
		out[bucket] = count
	}
	return out, rows.Err()
}

// InteractionRow is one archived interaction, as returned by
// ListInteractions for export_interaction_data and RunAggregation's full
// recompute pass.
type InteractionRow struct {
	ID             int64
	NormalizedQuery string
	ItemID         int64
	Path           string
	MatchType      string
	ResultPosition int
	FrontmostApp   string
	Timestamp      time.Time
}

// ListInteractions returns every interaction row, oldest first.
func (s *FtsStore) ListInteractions() ([]InteractionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT id, normalized_query, item_id, path, match_type, result_position, frontmost_app, timestamp FROM interactions ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InteractionRow
	for rows.Next() {
		var r InteractionRow
		var ts int64
		if err := rows.Scan(&r.ID, &r.NormalizedQuery, &r.ItemID, &r.Path, &r.MatchType, &r.ResultPosition, &r.FrontmostApp, &ts); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(ts, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneInteractionsBefore deletes interaction rows older than cutoff,
// spec §3's 180-day retention, and reports how many rows were removed.
func (s *FtsStore) PruneInteractionsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM interactions WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecomputeFrequencyFromInteractions rebuilds the frequency table from
// scratch off the surviving interactions, the full-consistency half of
// run_aggregation (the incremental bump in RecordInteraction is the cheap
// half).
func (s *FtsStore) RecomputeFrequencyFromInteractions() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM frequency`); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO frequency (item_id, open_count, last_opened_at, total_interactions)
		SELECT item_id, COUNT(*), MAX(timestamp), COUNT(*) FROM interactions GROUP BY item_id
	`); err != nil {
		return err
	}
	return tx.Commit()
}

// ResetPathPreferences/ResetTypeAffinity clear the cached aggregate
// tables so RunAggregation can rebuild them from the raw interaction
// stream.
func (s *FtsStore) ResetPathPreferences() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM path_preferences`)
	return err
}

func (s *FtsStore) ResetTypeAffinity() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM type_affinity`)
	return err
}

// SearchFts5 queries the FTS5 virtual table (spec §4.9 searchFts5).
// Strict mode passes query verbatim as MATCH syntax; relaxed mode splits
// into tokens, appends '*' to each, and ORs them.
func (s *FtsStore) SearchFts5(query string, limit int, relaxed bool) ([]FtsHit, error) {
	if s.bleve != nil {
		return s.bleve.search(query, limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := query
	if relaxed {
		fields := strings.Fields(query)
		for i, f := range fields {
			fields[i] = f + "*"
		}
		q = strings.Join(fields, " OR ")
	}
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT item_id, bm25(chunks_fts) AS score, snippet(chunks_fts, 0, '<b>', '</b>', '…', 10)
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?
	`, q, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, fmt.Errorf("searchFts5: %w", err)
	}
	defer rows.Close()

	var hits []FtsHit
	for rows.Next() {
		var h FtsHit
		if err := rows.Scan(&h.ItemID, &h.Score, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// NameFuzzyHit is one result of SearchByNameFuzzy.
type NameFuzzyHit struct {
	ItemID int64
	Name   string
}

// SearchByNameFuzzy returns name-only substring hits used as a fallback
// when strict/relaxed FTS yields nothing (spec §4.9 searchByNameFuzzy).
func (s *FtsStore) SearchByNameFuzzy(q string, limit int) ([]NameFuzzyHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, basename FROM items WHERE basename LIKE ? LIMIT ?`, "%"+q+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []NameFuzzyHit
	for rows.Next() {
		var h NameFuzzyHit
		if err := rows.Scan(&h.ItemID, &h.Name); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// GetHealth reports index-wide diagnostics (spec §4.9 getHealth).
func (s *FtsStore) GetHealth() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var h Health
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&h.TotalIndexedItems)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM chunks_fts`).Scan(&h.TotalChunks)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM failures`).Scan(&h.TotalFailures)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM items WHERE content_hash = ''`).Scan(&h.ItemsWithoutContent)

	var lastIndexed sql.NullInt64
	_ = s.db.QueryRow(`SELECT MAX(indexed_at) FROM items`).Scan(&lastIndexed)
	if lastIndexed.Valid {
		h.LastIndexTime = time.Unix(lastIndexed.Int64, 0)
		h.IndexAge = time.Since(h.LastIndexTime)
	}
	if s.path != "" && s.path != ":memory:" {
		if info, err := os.Stat(s.path); err == nil {
			h.FtsIndexSize = info.Size()
		}
	}
	h.IsHealthy = h.TotalFailures == 0 || h.TotalFailures < h.TotalIndexedItems/2
	return h
}

// ChunkZeroRow is one item's first chunk, the embedding candidate unit
// the EmbeddingPipeline consumes (spec §4.12 step 1).
type ChunkZeroRow struct {
	ItemID  int64
	Content string
}

// ListChunkZeroRows returns every item that has a chunk at index 0.
func (s *FtsStore) ListChunkZeroRows() ([]ChunkZeroRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT item_id, content FROM chunks_fts WHERE chunk_index = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkZeroRow
	for rows.Next() {
		var r ChunkZeroRow
		if err := rows.Scan(&r.ItemID, &r.Content); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetSetting/SetSetting implement spec §4.9's settings KV store.
func (s *FtsStore) GetSetting(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	return value, err == nil
}

func (s *FtsStore) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// DeleteAll truncates every item-derived table (spec §4.8 rebuildAll's
// FtsStore.deleteAll).
func (s *FtsStore) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, table := range []string{"items", "chunks_fts", "chunk_ids", "failures", "frequency"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
