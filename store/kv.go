package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"
)

// KV is the sorted-set backend: payload bytes are the sorted-set
// member, range_key is the score. Backs both the KV storage
// configuration and, via the same client, the cache and events
// collaborators — grounded on pytsdb's own Redis-backed cache/events
// and on grafana-tempo's go-redis/redis/v8 usage in the pack.
type KV struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewKV wraps an existing redis client. prefix namespaces every
// sorted-set key (one set per metric key) so a KV store can share a
// Redis instance with the cache/events collaborators without
// collisions.
func NewKV(rdb redis.UniversalClient, prefix string) *KV {
	return &KV{rdb: rdb, prefix: prefix}
}

func (k *KV) setKey(key string) string { return fmt.Sprintf("%sseries:{%s}", k.prefix, key) }

// member packs range_key and the payload so that ZSCORE-collisions
// between two different payloads at the same score never occur, and so
// a member can be looked up back to its range_key/data pair after a
// ZRANGEBYSCORE.
type member struct {
	rangeKey int64
	data     []byte
}

func encodeMember(rangeKey int64, data []byte) string {
	return fmt.Sprintf("%d:%s", rangeKey, data)
}

func decodeMember(s string) (member, error) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return member{}, errors.New("store: malformed kv member")
	}
	rk, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return member{}, err
	}
	return member{rangeKey: rk, data: []byte(s[i+1:])}, nil
}

func (k *KV) Insert(ctx context.Context, key string, rangeKey int64, data []byte) error {
	setKey := k.setKey(key)
	existing, err := k.rdb.ZRangeByScore(ctx, setKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", rangeKey), Max: fmt.Sprintf("%d", rangeKey),
	}).Result()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return ErrConflict
	}
	return k.rdb.ZAdd(ctx, setKey, &redis.Z{Score: float64(rangeKey), Member: encodeMember(rangeKey, data)}).Err()
}

func (k *KV) Update(ctx context.Context, key string, rangeKey int64, data []byte) error {
	setKey := k.setKey(key)
	existing, err := k.rdb.ZRangeByScore(ctx, setKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", rangeKey), Max: fmt.Sprintf("%d", rangeKey),
	}).Result()
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return ErrNotFound
	}
	pipe := k.rdb.TxPipeline()
	pipe.ZRem(ctx, setKey, existing[0])
	pipe.ZAdd(ctx, setKey, &redis.Z{Score: float64(rangeKey), Member: encodeMember(rangeKey, data)})
	_, err = pipe.Exec(ctx)
	return err
}

func (k *KV) Get(ctx context.Context, key string, rangeKey int64) ([]byte, error) {
	setKey := k.setKey(key)
	existing, err := k.rdb.ZRangeByScore(ctx, setKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", rangeKey), Max: fmt.Sprintf("%d", rangeKey),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, ErrNotFound
	}
	m, err := decodeMember(existing[0])
	if err != nil {
		return nil, err
	}
	return m.data, nil
}

func (k *KV) First(ctx context.Context, key string) (Element, error) {
	return k.edge(ctx, key, false)
}

func (k *KV) Last(ctx context.Context, key string) (Element, error) {
	return k.edge(ctx, key, true)
}

func (k *KV) edge(ctx context.Context, key string, last bool) (Element, error) {
	setKey := k.setKey(key)
	var res []string
	var err error
	if last {
		res, err = k.rdb.ZRevRangeByScore(ctx, setKey, &redis.ZRangeBy{Min: "-inf", Max: "+inf", Offset: 0, Count: 1}).Result()
	} else {
		res, err = k.rdb.ZRangeByScore(ctx, setKey, &redis.ZRangeBy{Min: "-inf", Max: "+inf", Offset: 0, Count: 1}).Result()
	}
	if err != nil {
		return Element{}, err
	}
	if len(res) == 0 {
		return Element{}, ErrNotFound
	}
	m, err := decodeMember(res[0])
	if err != nil {
		return Element{}, err
	}
	return Element{Key: key, RangeKey: m.rangeKey, Data: m.data}, nil
}

func (k *KV) Left(ctx context.Context, key string, rangeKey int64) (Element, error) {
	setKey := k.setKey(key)
	res, err := k.rdb.ZRevRangeByScore(ctx, setKey, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", rangeKey), Offset: 0, Count: 1,
	}).Result()
	if err != nil {
		return Element{}, err
	}
	if len(res) == 0 {
		return Element{}, ErrNotFound
	}
	m, err := decodeMember(res[0])
	if err != nil {
		return Element{}, err
	}
	return Element{Key: key, RangeKey: m.rangeKey, Data: m.data}, nil
}

func (k *KV) Query(ctx context.Context, key string, rangeMin, rangeMax int64) ([]Element, error) {
	setKey := k.setKey(key)
	res, err := k.rdb.ZRangeByScore(ctx, setKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", rangeMin), Max: fmt.Sprintf("%d", rangeMax),
	}).Result()
	if err != nil {
		return nil, err
	}
	ascending := make([]Element, 0, len(res))
	for _, s := range res {
		m, err := decodeMember(s)
		if err != nil {
			return nil, err
		}
		ascending = append(ascending, Element{Key: key, RangeKey: m.rangeKey, Data: m.data})
	}
	return prependLeft(ctx, k, key, rangeMin, ascending)
}
