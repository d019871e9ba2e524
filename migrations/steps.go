package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gocql/gocql"
)

// EmbeddedSQLSchema creates the embedded_sql backend's table on an
// already-open *sql.DB if it does not already exist.
func EmbeddedSQLSchema(db *sql.DB) Migration {
	return Migration{
		Name: "embedded_sql_schema",
		Up: func(ctx context.Context) error {
			_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS buckets (
				key TEXT NOT NULL,
				range_key INTEGER NOT NULL,
				data BLOB NOT NULL,
				PRIMARY KEY (key, range_key)
			)`)
			return err
		},
	}
}

// WideColumnSchema creates the wide_column backend's keyspace and table
// on an already-open gocql session whose Keyspace is unset (a session
// opened against "system").
func WideColumnSchema(session *gocql.Session, keyspace, table string) Migration {
	return Migration{
		Name: "wide_column_schema",
		Up: func(ctx context.Context) error {
			createKeyspace := fmt.Sprintf(
				`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': 1}`,
				keyspace)
			if err := session.Query(createKeyspace).WithContext(ctx).Exec(); err != nil {
				return err
			}
			createTable := fmt.Sprintf(
				`CREATE TABLE IF NOT EXISTS %s.%s (
					key text, range_key bigint, data blob,
					PRIMARY KEY (key, range_key)
				) WITH CLUSTERING ORDER BY (range_key ASC)`,
				keyspace, table)
			return session.Query(createTable).WithContext(ctx).Exec()
		},
	}
}
