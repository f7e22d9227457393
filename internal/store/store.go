// Package store provides the local Document Store: a SQLite-backed vector
// collection addressed by a file path and a collection name. Several
// collections can share one database file. Search is an exact cosine k-NN
// scan, which is adequate for the document counts this service indexes.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/aiprep-go/internal/rag"
)

// SQLiteStore is a rag.VectorStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
	// collection scopes every read and write. The collection's dimension is
	// always read from the database, since other processes may write to the
	// same file.
	collection string
}

// DefaultDBPath returns the fallback path for the store database.
// It resolves to ~/.aiprep/store.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".aiprep")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "store.db"), nil
}

// Open opens (or creates) the database at path, runs the schema migration
// and gets-or-creates the named collection. Use ":memory:" for an in-memory
// database.
func Open(path, collection string) (*SQLiteStore, error) {
	if collection == "" {
		return nil, errors.New("store: collection name must not be empty")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: could not create %s: %w", dir, err)
			}
		}
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, collection: collection}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.ensureCollection(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS collections (
    name       TEXT    PRIMARY KEY,
    dimension  INTEGER NOT NULL DEFAULT 0  -- 0 until the first upsert
);
CREATE TABLE IF NOT EXISTS units (
    collection TEXT NOT NULL REFERENCES collections(name),
    id         TEXT NOT NULL,
    text       TEXT NOT NULL,
    source     TEXT NOT NULL,
    metadata   TEXT NOT NULL,  -- JSON object of string values
    embedding  BLOB NOT NULL,  -- little-endian float32
    PRIMARY KEY (collection, id)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// ensureCollection registers the collection.
func (s *SQLiteStore) ensureCollection() error {
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO collections (name, dimension) VALUES (?, 0)`, s.collection); err != nil {
		return fmt.Errorf("store: create collection %q: %w", s.collection, err)
	}
	return nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) loadDimension(ctx context.Context, q queryRower) (int, error) {
	var dim int
	if err := q.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE name = ?`, s.collection).Scan(&dim); err != nil {
		return 0, fmt.Errorf("store: load collection %q: %w", s.collection, err)
	}
	return dim, nil
}

// Collection returns the collection name this store is bound to.
func (s *SQLiteStore) Collection() string { return s.collection }

// Dimension returns the collection's embedding size, or 0 if nothing has
// been stored yet.
func (s *SQLiteStore) Dimension(ctx context.Context) (int, error) {
	return s.loadDimension(ctx, s.db)
}

// Upsert inserts or replaces units by ID inside a single transaction. The
// first successful upsert fixes the collection dimension; any later vector of
// a different length fails with rag.ErrDimensionMismatch and nothing is written.
func (s *SQLiteStore) Upsert(ctx context.Context, units []rag.Unit, embeddings [][]float32) error {
	if len(units) != len(embeddings) {
		return fmt.Errorf("store: %d units but %d embeddings", len(units), len(embeddings))
	}
	if len(units) == 0 {
		return nil
	}

	if len(embeddings[0]) == 0 {
		return fmt.Errorf("store: unit %q has an empty embedding: %w", units[0].ID, rag.ErrDimensionMismatch)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Writing first takes SQLite's write lock, so the dimension read below
	// cannot be changed by another connection before commit.
	if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE name = ? AND dimension = 0`,
		len(embeddings[0]), s.collection); err != nil {
		return fmt.Errorf("store: set dimension: %w", err)
	}
	dim, err := s.loadDimension(ctx, tx)
	if err != nil {
		return err
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return fmt.Errorf("store: unit %q has dimension %d, collection %q expects %d: %w",
				units[i].ID, len(e), s.collection, dim, rag.ErrDimensionMismatch)
		}
	}

	// ON CONFLICT ... DO UPDATE keeps the original rowid, so a replaced unit
	// keeps its insertion position for tie ordering.
	const q = `
INSERT INTO units (collection, id, text, source, metadata, embedding)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET
    text = excluded.text,
    source = excluded.source,
    metadata = excluded.metadata,
    embedding = excluded.embedding`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, u := range units {
		meta, err := json.Marshal(withSource(u))
		if err != nil {
			return fmt.Errorf("store: encode metadata for %q: %w", u.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, u.ID, u.Text, u.Source, string(meta), encodeVector(embeddings[i])); err != nil {
			return fmt.Errorf("store: upsert %q: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Search returns up to topK units ranked by cosine similarity, descending.
// Equal scores keep insertion order. An empty collection returns no units.
func (s *SQLiteStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]rag.Unit, error) {
	if topK <= 0 {
		return []rag.Unit{}, nil
	}
	dim, err := s.loadDimension(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []rag.Unit{}, nil
	}
	if len(queryEmbedding) != dim {
		return nil, fmt.Errorf("store: query has dimension %d, collection %q expects %d: %w",
			len(queryEmbedding), s.collection, dim, rag.ErrDimensionMismatch)
	}

	const q = `SELECT id, text, source, metadata, embedding FROM units WHERE collection = ? ORDER BY rowid`
	rows, err := s.db.QueryContext(ctx, q, s.collection)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var hits []rag.Unit
	for rows.Next() {
		var (
			u    rag.Unit
			meta string
			blob []byte
		)
		if err := rows.Scan(&u.ID, &u.Text, &u.Source, &meta, &blob); err != nil {
			return nil, fmt.Errorf("store: search scan: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &u.Metadata); err != nil {
			return nil, fmt.Errorf("store: decode metadata for %q: %w", u.ID, err)
		}
		u.Score = cosine(queryEmbedding, decodeVector(blob))
		hits = append(hits, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	if hits == nil {
		hits = []rag.Unit{}
	}
	return hits, nil
}

// Count returns the number of units in the collection.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM units WHERE collection = ?`, s.collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// withSource returns the unit's metadata with "source" mirrored in.
func withSource(u rag.Unit) map[string]string {
	m := make(map[string]string, len(u.Metadata)+1)
	for k, v := range u.Metadata {
		m[k] = v
	}
	if u.Source != "" {
		m["source"] = u.Source
	}
	return m
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector. Lengths are checked by the caller.
func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
