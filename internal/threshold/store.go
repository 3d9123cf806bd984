package threshold

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/marcboeker/go-duckdb"
)

// Store persists calibrated thresholds in DuckDB. Keys are write-once.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens or creates a threshold store at the given path.
// Use an empty string for an in-memory database.
func OpenStore(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path ("" for in-memory).
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS thresholds (
		key VARCHAR PRIMARY KEY,
		score DOUBLE NOT NULL
	)`)
	return err
}

// Get returns the stored threshold for key.
func (s *Store) Get(key string) (float64, bool, error) {
	var score float64
	err := s.db.QueryRow(`SELECT score FROM thresholds WHERE key = ?`, key).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query threshold: %w", err)
	}
	return score, true, nil
}

// Set stores a threshold unless key already has one.
func (s *Store) Set(key string, score float64) error {
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO thresholds VALUES (?, ?)`, key, score); err != nil {
		return fmt.Errorf("insert threshold: %w", err)
	}
	return nil
}

// Count returns the number of stored thresholds.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM thresholds`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count thresholds: %w", err)
	}
	return n, nil
}

// Key builds the store key for a motif hash, background identity and FDR.
// The FDR is written in full so that distinct rates never share a key.
func Key(motifHash, background string, fdr float64) string {
	return motifHash + "|" + background + "|" + strconv.FormatFloat(fdr, 'g', -1, 64)
}
