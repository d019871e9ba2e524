// Package commands holds the cobra command tree for cmd/gotsdb,
// structured after the teacher's cmd/rpcdaemon and cmd/headers: one
// RootCommand() entrypoint, viper-bound persistent flags, and one file
// per subcommand.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// RootCommand builds the gotsdb command tree: serve, loadgen, migrate.
func RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "gotsdb",
		Short: "Bucketed time-series datastore engine",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml/toml)")
	root.PersistentFlags().String("storage", "memory", "storage backend: memory, embedded_sql, kv, wide_column")
	root.PersistentFlags().Int("bucket-dynamic-target", 100, "soft split threshold for dynamic buckets")
	root.PersistentFlags().Int("bucket-dynamic-max", 200, "hard split threshold for dynamic buckets")
	root.PersistentFlags().Bool("enable-caching", true, "consult the tail/stats cache")
	root.PersistentFlags().Bool("enable-events", true, "publish data events on commit")
	root.PersistentFlags().String("sqlite-path", "gotsdb.db", "embedded_sql backend database file")
	root.PersistentFlags().String("redis-addr", "127.0.0.1:6379", "kv/cache/events backend redis address")
	root.PersistentFlags().String("cassandra-hosts", "127.0.0.1", "comma-separated wide_column backend hosts")
	root.PersistentFlags().String("cassandra-keyspace", "gotsdb", "wide_column backend keyspace")
	root.PersistentFlags().String("cassandra-table", "buckets", "wide_column backend table")
	_ = viper.BindPFlags(root.PersistentFlags())

	cobra.OnInitialize(initConfig)

	root.AddCommand(serveCmd())
	root.AddCommand(loadgenCmd())
	root.AddCommand(migrateCmd())
	return root
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("gotsdb")
		viper.AddConfigPath(".")
	}
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}
