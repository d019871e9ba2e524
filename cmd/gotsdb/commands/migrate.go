package commands

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wuttem/gotsdb/engine"
	"github.com/wuttem/gotsdb/migrations"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bootstrap the configured storage backend's schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch engine.Storage(viper.GetString("storage")) {
			case engine.StorageEmbeddedSQL:
				db, err := sql.Open("sqlite3", viper.GetString("sqlite-path"))
				if err != nil {
					return err
				}
				defer db.Close()
				return migrations.NewMigrator(migrations.EmbeddedSQLSchema(db)).Apply(ctx)

			case engine.StorageWideColumn:
				session, err := openCassandraSystemSession()
				if err != nil {
					return err
				}
				defer session.Close()
				mig := migrations.WideColumnSchema(session, viper.GetString("cassandra-keyspace"), viper.GetString("cassandra-table"))
				return migrations.NewMigrator(mig).Apply(ctx)

			default:
				// memory and kv backends need no schema step.
				return nil
			}
		},
	}
}
