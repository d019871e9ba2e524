package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	l15 "github.com/inconshreveable/log15"
	// register the sqlite3 driver under database/sql
	_ "github.com/mattn/go-sqlite3"

	"github.com/wuttem/gotsdb/log"
)

// SQL is the embedded-SQL-table backend: a single table
// buckets(key TEXT, range_key INTEGER, data BLOB, PRIMARY KEY(key,
// range_key)), queried via database/sql over mattn/go-sqlite3. Named
// per DESIGN.md: the teacher repo embeds LMDB rather than SQL, but
// mattn/go-sqlite3 recurs across the retrieval pack wherever an
// embedded SQL store is needed.
type SQL struct {
	db  *sql.DB
	log l15.Logger
}

// OpenSQL opens (creating if necessary) a sqlite database at path; use
// ":memory:" for an ephemeral, process-local database.
func OpenSQL(path string) (*SQL, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %q: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS buckets (
		key TEXT NOT NULL,
		range_key INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (key, range_key)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create table: %w", err)
	}
	return &SQL{db: db, log: log.New("store", "sql")}, nil
}

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) Insert(ctx context.Context, key string, rangeKey int64, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO buckets(key, range_key, data) VALUES (?, ?, ?)`, key, rangeKey, data)
	if err != nil {
		if isUniqueViolation(err) {
			s.log.Debug("insert conflict", "key", key, "range_key", rangeKey)
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *SQL) Update(ctx context.Context, key string, rangeKey int64, data []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE buckets SET data = ? WHERE key = ? AND range_key = ?`, data, key, rangeKey)
	if err != nil {
		return err
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

func (s *SQL) Get(ctx context.Context, key string, rangeKey int64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM buckets WHERE key = ? AND range_key = ?`, key, rangeKey).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *SQL) First(ctx context.Context, key string) (Element, error) {
	return s.one(ctx, `SELECT range_key, data FROM buckets WHERE key = ? ORDER BY range_key ASC LIMIT 1`, key)
}

func (s *SQL) Last(ctx context.Context, key string) (Element, error) {
	return s.one(ctx, `SELECT range_key, data FROM buckets WHERE key = ? ORDER BY range_key DESC LIMIT 1`, key)
}

func (s *SQL) Left(ctx context.Context, key string, rangeKey int64) (Element, error) {
	return s.one(ctx,
		`SELECT range_key, data FROM buckets WHERE key = ? AND range_key <= ? ORDER BY range_key DESC LIMIT 1`,
		key, rangeKey)
}

func (s *SQL) one(ctx context.Context, query string, args ...interface{}) (Element, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var rk int64
	var data []byte
	if err := row.Scan(&rk, &data); err != nil {
		if err == sql.ErrNoRows {
			return Element{}, ErrNotFound
		}
		return Element{}, err
	}
	return Element{Key: args[0].(string), RangeKey: rk, Data: data}, nil
}

func (s *SQL) Query(ctx context.Context, key string, rangeMin, rangeMax int64) ([]Element, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT range_key, data FROM buckets WHERE key = ? AND range_key BETWEEN ? AND ? ORDER BY range_key ASC`,
		key, rangeMin, rangeMax)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ascending []Element
	for rows.Next() {
		var rk int64
		var data []byte
		if err := rows.Scan(&rk, &data); err != nil {
			return nil, err
		}
		ascending = append(ascending, Element{Key: key, RangeKey: rk, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return prependLeft(ctx, s, key, rangeMin, ascending)
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint violations with this
	// substring in the error text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
