package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists credentials in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dbPath. ":memory:" keeps
// the database in memory for the lifetime of the store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", dbPath)
	if dbPath == ":memory:" {
		dsn = "file::memory:?_pragma=busy_timeout(10000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening credential database: %w", err)
	}

	// Every in-memory connection is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating credential database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			owner       TEXT NOT NULL,
			id          TEXT NOT NULL,
			username    TEXT NOT NULL DEFAULT '',
			secret      TEXT NOT NULL,
			domain      TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,
			PRIMARY KEY (owner, id)
		)
	`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, user, id string) (*Credential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT owner, id, username, secret, domain, description, created_at, updated_at
		FROM credentials WHERE owner=? AND id=?`, user, id)
	c, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential %s: %w", id, err)
	}
	return c, nil
}

func (s *SQLiteStore) Put(ctx context.Context, c Credential) error {
	if err := validate(c); err != nil {
		return err
	}
	now := s.now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (owner, id, username, secret, domain, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, id) DO UPDATE SET
			username=excluded.username,
			secret=excluded.secret,
			domain=excluded.domain,
			description=excluded.description,
			updated_at=excluded.updated_at`,
		c.User, c.ID, c.Username, c.Secret, c.Domain, c.Description, now, now)
	if err != nil {
		return fmt.Errorf("saving credential %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, user, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE owner=? AND id=?`, user, id)
	if err != nil {
		return fmt.Errorf("deleting credential %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, user string) ([]Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, id, username, secret, domain, description, created_at, updated_at
		FROM credentials WHERE owner=? ORDER BY id`, user)
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	defer rows.Close()

	var out []Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(row scanner) (*Credential, error) {
	var (
		c                Credential
		created, updated string
	)
	if err := row.Scan(&c.User, &c.ID, &c.Username, &c.Secret, &c.Domain, &c.Description, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &c, nil
}
