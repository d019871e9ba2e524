package store

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
)

// WideColumn is the wide-column backend: partitioned by key, clustered
// by range_key, built on github.com/gocql/gocql (the pack's closest
// wide-column analogue to the original pytsdb.storage.CassandraStorage
// this spec distills — see DESIGN.md).
type WideColumn struct {
	session *gocql.Session
	table   string
}

// NewWideColumn wraps an open gocql session. Callers are expected to
// have already created the keyspace and the table:
//
//	CREATE TABLE <table> (
//	    key text, range_key bigint, data blob,
//	    PRIMARY KEY (key, range_key)
//	) WITH CLUSTERING ORDER BY (range_key ASC)
func NewWideColumn(session *gocql.Session, table string) *WideColumn {
	return &WideColumn{session: session, table: table}
}

func (w *WideColumn) Insert(ctx context.Context, key string, rangeKey int64, data []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s (key, range_key, data) VALUES (?, ?, ?) IF NOT EXISTS`, w.table)
	applied, err := w.session.Query(q, key, rangeKey, data).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrConflict
	}
	return nil
}

func (w *WideColumn) Update(ctx context.Context, key string, rangeKey int64, data []byte) error {
	q := fmt.Sprintf(`UPDATE %s SET data = ? WHERE key = ? AND range_key = ? IF EXISTS`, w.table)
	applied, err := w.session.Query(q, data, key, rangeKey).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

func (w *WideColumn) Get(ctx context.Context, key string, rangeKey int64) ([]byte, error) {
	q := fmt.Sprintf(`SELECT data FROM %s WHERE key = ? AND range_key = ?`, w.table)
	var data []byte
	if err := w.session.Query(q, key, rangeKey).WithContext(ctx).Scan(&data); err != nil {
		if err == gocql.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (w *WideColumn) First(ctx context.Context, key string) (Element, error) {
	q := fmt.Sprintf(`SELECT range_key, data FROM %s WHERE key = ? ORDER BY range_key ASC LIMIT 1`, w.table)
	return w.one(ctx, q, key)
}

func (w *WideColumn) Last(ctx context.Context, key string) (Element, error) {
	q := fmt.Sprintf(`SELECT range_key, data FROM %s WHERE key = ? ORDER BY range_key DESC LIMIT 1`, w.table)
	return w.one(ctx, q, key)
}

func (w *WideColumn) Left(ctx context.Context, key string, rangeKey int64) (Element, error) {
	q := fmt.Sprintf(`SELECT range_key, data FROM %s WHERE key = ? AND range_key <= ? ORDER BY range_key DESC LIMIT 1`, w.table)
	return w.one(ctx, q, key, rangeKey)
}

func (w *WideColumn) one(ctx context.Context, query string, key interface{}, args ...interface{}) (Element, error) {
	allArgs := append([]interface{}{key}, args...)
	var rk int64
	var data []byte
	if err := w.session.Query(query, allArgs...).WithContext(ctx).Scan(&rk, &data); err != nil {
		if err == gocql.ErrNotFound {
			return Element{}, ErrNotFound
		}
		return Element{}, err
	}
	return Element{Key: key.(string), RangeKey: rk, Data: data}, nil
}

func (w *WideColumn) Query(ctx context.Context, key string, rangeMin, rangeMax int64) ([]Element, error) {
	q := fmt.Sprintf(
		`SELECT range_key, data FROM %s WHERE key = ? AND range_key >= ? AND range_key <= ? ORDER BY range_key ASC`,
		w.table)
	iter := w.session.Query(q, key, rangeMin, rangeMax).WithContext(ctx).Iter()

	var ascending []Element
	var rk int64
	var data []byte
	for iter.Scan(&rk, &data) {
		ascending = append(ascending, Element{Key: key, RangeKey: rk, Data: data})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	return prependLeft(ctx, w, key, rangeMin, ascending)
}
