// Package certstore pins server certificate digests in a local SQLite
// database. A digest is stored only after the user accepted a certificate
// that failed standard verification.
package certstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yllada/voicelink/common"
)

// Record is one pinned certificate.
type Record struct {
	Host      string
	Port      int
	Digest    string
	UpdatedAt time.Time
}

// Address returns host:port.
func (r Record) Address() string {
	return common.HostPort(r.Host, r.Port)
}

// Store is a SQLite backed digest store. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the trust database path in the data directory.
func DefaultPath() (string, error) {
	dir, err := common.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.TrustDBFileName), nil
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create trust store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trust store: %w", err)
	}
	// one writer; also keeps ":memory:" on a single database
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize trust store: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initTables() error {
	createDigestsTable := `
	CREATE TABLE IF NOT EXISTS cert_digests (
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		digest TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (host, port)
	);
	`
	if _, err := s.db.Exec(createDigestsTable); err != nil {
		return fmt.Errorf("failed to create cert_digests table: %w", err)
	}
	return nil
}

// Digest returns the digest pinned for host:port.
func (s *Store) Digest(host string, port int) (string, bool, error) {
	return s.DigestContext(context.Background(), host, port)
}

// DigestContext is Digest with a context.
func (s *Store) DigestContext(ctx context.Context, host string, port int) (string, bool, error) {
	var digest string
	err := s.db.QueryRowContext(ctx,
		`SELECT digest FROM cert_digests WHERE host = ? AND port = ?`,
		host, port,
	).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read digest for %s: %w", common.HostPort(host, port), err)
	}
	return digest, true, nil
}

// SetDigest pins digest for host:port, replacing any previous one.
func (s *Store) SetDigest(host string, port int, digest string) error {
	return s.SetDigestContext(context.Background(), host, port, digest)
}

// SetDigestContext is SetDigest with a context.
func (s *Store) SetDigestContext(ctx context.Context, host string, port int, digest string) error {
	digest = NormalizeDigest(digest)
	if digest == "" {
		return fmt.Errorf("refusing to store an empty digest for %s", common.HostPort(host, port))
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO cert_digests (host, port, digest, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(host, port) DO UPDATE SET digest = excluded.digest, updated_at = excluded.updated_at
	`, host, port, digest, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store digest for %s: %w", common.HostPort(host, port), err)
	}
	return nil
}

// Forget removes the digest pinned for host:port.
func (s *Store) Forget(host string, port int) error {
	res, err := s.db.Exec(`DELETE FROM cert_digests WHERE host = ? AND port = ?`, host, port)
	if err != nil {
		return fmt.Errorf("failed to forget %s: %w", common.HostPort(host, port), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", common.ErrDigestNotFound, common.HostPort(host, port))
	}
	return nil
}

// List returns every pinned certificate ordered by host and port.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query(`SELECT host, port, digest, updated_at FROM cert_digests ORDER BY host, port`)
	if err != nil {
		return nil, fmt.Errorf("failed to list digests: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var updated int64
		if err := rows.Scan(&r.Host, &r.Port, &r.Digest, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		r.UpdatedAt = time.Unix(updated, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}
