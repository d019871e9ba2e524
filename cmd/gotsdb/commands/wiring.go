package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/gocql/gocql"
	"github.com/spf13/viper"

	"github.com/wuttem/gotsdb/cache"
	"github.com/wuttem/gotsdb/engine"
	"github.com/wuttem/gotsdb/events"
	"github.com/wuttem/gotsdb/store"
)

// nopCloser satisfies io.Closer for backends with nothing to release.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// buildEngine opens the configured storage backend and its matching
// cache/event collaborators, mirroring pytsdb.client.TSDB.__init__'s
// STORAGE-keyed backend selection.
func buildEngine() (*engine.Engine, io.Closer, error) {
	opts := []engine.Option{
		engine.WithDynamicThresholds(viper.GetInt("bucket-dynamic-target"), viper.GetInt("bucket-dynamic-max")),
		engine.WithEvents(viper.GetBool("enable-events")),
		engine.WithCaching(viper.GetBool("enable-caching")),
	}

	switch engine.Storage(viper.GetString("storage")) {
	case engine.StorageMemory:
		s := store.NewMemory()
		c, err := cache.NewMemoryLRU(1000)
		if err != nil {
			return nil, nil, err
		}
		bus := events.NewLocalBus()
		return engine.New(s, c, bus, opts...), nopCloser{}, nil

	case engine.StorageEmbeddedSQL:
		s, err := store.OpenSQL(viper.GetString("sqlite-path"))
		if err != nil {
			return nil, nil, err
		}
		rdb, closer, err := openRedis()
		if err != nil {
			return nil, nil, err
		}
		c := cache.NewRedisLRU(rdb, "gotsdb:")
		bus := events.NewRedisBus(rdb, "gotsdb:")
		return engine.New(s, c, bus, opts...), multiCloser{s, closer, bus}, nil

	case engine.StorageKV:
		rdb, closer, err := openRedis()
		if err != nil {
			return nil, nil, err
		}
		s := store.NewKV(rdb, "gotsdb:")
		c := cache.NewRedisLRU(rdb, "gotsdb:")
		bus := events.NewRedisBus(rdb, "gotsdb:")
		return engine.New(s, c, bus, opts...), multiCloser{closer, bus}, nil

	case engine.StorageWideColumn:
		session, err := openCassandra()
		if err != nil {
			return nil, nil, err
		}
		s := store.NewWideColumn(session, viper.GetString("cassandra-table"))
		rdb, closer, err := openRedis()
		if err != nil {
			return nil, nil, err
		}
		c := cache.NewRedisLRU(rdb, "gotsdb:")
		bus := events.NewRedisBus(rdb, "gotsdb:")
		return engine.New(s, c, bus, opts...), multiCloser{sessionCloser{session}, closer, bus}, nil

	default:
		return nil, nil, fmt.Errorf("gotsdb: unknown storage backend %q", viper.GetString("storage"))
	}
}

func openRedis() (redis.UniversalClient, io.Closer, error) {
	rdb := redis.NewClient(&redis.Options{Addr: viper.GetString("redis-addr")})
	return rdb, rdb, nil
}

func openCassandra() (*gocql.Session, error) {
	cluster := cassandraCluster()
	cluster.Keyspace = viper.GetString("cassandra-keyspace")
	return cluster.CreateSession()
}

// openCassandraSystemSession opens a session with no keyspace bound, so
// migrate can issue CREATE KEYSPACE before any keyspace exists.
func openCassandraSystemSession() (*gocql.Session, error) {
	return cassandraCluster().CreateSession()
}

func cassandraCluster() *gocql.ClusterConfig {
	hosts := strings.Split(viper.GetString("cassandra-hosts"), ",")
	return gocql.NewCluster(hosts...)
}

type sessionCloser struct{ session *gocql.Session }

func (s sessionCloser) Close() error { s.session.Close(); return nil }

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
