package events

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/wuttem/gotsdb/log"
)

// RedisBus publishes and subscribes over Redis PUBLISH/PSUBSCRIBE,
// grounded directly on original_source/pytsdb/events.py's RedisPubSub:
// one PSUBSCRIBE per registered pattern, a background goroutine pumping
// the subscription's channel, and subscriber errors captured into
// LastError rather than propagated to the publisher.
type RedisBus struct {
	rdb    redis.UniversalClient
	prefix string
	logger interface {
		Error(msg string, ctx ...interface{})
	}

	mu      sync.Mutex
	lastErr string
	pubsubs []*redis.PubSub
}

func NewRedisBus(rdb redis.UniversalClient, prefix string) *RedisBus {
	return &RedisBus{rdb: rdb, prefix: prefix, logger: log.New("component", "events.redis")}
}

func (b *RedisBus) channel(key string) string { return b.prefix + "events:" + key }

func (b *RedisBus) Publish(ctx context.Context, channel string, ev Event) error {
	return b.rdb.Publish(ctx, b.channel(channel), ev.Encode()).Err()
}

// RegisterCallback opens one PSUBSCRIBE for pattern and dispatches every
// delivered message to cb. The subscription is not torn down by a
// context: like RedisPubSub's listener thread, it runs until Close is
// called or the client is closed.
func (b *RedisBus) RegisterCallback(pattern string, cb Callback) error {
	ps := b.rdb.PSubscribe(context.Background(), b.channel(pattern))
	if _, err := ps.Receive(context.Background()); err != nil {
		return err
	}

	b.mu.Lock()
	b.pubsubs = append(b.pubsubs, ps)
	b.mu.Unlock()

	go b.pump(ps, cb)
	return nil
}

func (b *RedisBus) pump(ps *redis.PubSub, cb Callback) {
	ch := ps.Channel()
	for msg := range ch {
		b.deliver(msg.Channel, msg.Payload, cb)
	}
}

func (b *RedisBus) deliver(channel, payload string, cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.lastErr = formatPanic(channel, r)
			b.mu.Unlock()
			b.logger.Error("subscriber callback panicked", "channel", channel, "error", r)
		}
	}()

	ev, err := Decode(payload)
	if err != nil {
		b.mu.Lock()
		b.lastErr = channel + ": " + err.Error()
		b.mu.Unlock()
		b.logger.Error("malformed event payload", "channel", channel, "error", err)
		return
	}
	cb(channel, ev)
}

func (b *RedisBus) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// Close tears down every open subscription. Safe to call more than
// once.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var firstErr error
	for _, ps := range b.pubsubs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.pubsubs = nil
	return firstErr
}
