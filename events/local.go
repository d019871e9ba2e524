package events

import (
	"context"
	"sync"

	"github.com/wuttem/gotsdb/log"
)

// LocalBus is an in-process glob-pattern router over registered
// callbacks, used by the memory storage configuration and by engine
// tests so the event contract is exercised without Redis. Grounded on
// the teacher's github.com/JekaMas/notify dependency: notify itself is
// a filesystem-event watcher, not a generic pub/sub, so it could not be
// wired directly (see DESIGN.md); what it contributes here is the
// shape it shares with every watcher library — register a callback
// under a pattern, fan out matching events to it, keep watching.
type LocalBus struct {
	mu        sync.Mutex
	callbacks map[string]Callback
	lastErr   string
	logger    interface {
		Error(msg string, ctx ...interface{})
	}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{callbacks: make(map[string]Callback), logger: log.New("component", "events.local")}
}

func (b *LocalBus) RegisterCallback(pattern string, cb Callback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks[pattern] = cb
	return nil
}

func (b *LocalBus) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *LocalBus) Publish(ctx context.Context, channel string, ev Event) error {
	b.mu.Lock()
	matches := make([]Callback, 0, 1)
	for pattern, cb := range b.callbacks {
		if globMatch(pattern, channel) {
			matches = append(matches, cb)
		}
	}
	b.mu.Unlock()

	for _, cb := range matches {
		b.invoke(channel, ev, cb)
	}
	return nil
}

// invoke calls cb, recovering a panic the way pytsdb.events.RedisPubSub
// catches and logs subscriber exceptions instead of letting them
// propagate.
func (b *LocalBus) invoke(channel string, ev Event, cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.lastErr = formatPanic(channel, r)
			b.mu.Unlock()
			b.logger.Error("subscriber callback panicked", "channel", channel, "error", r)
		}
	}()
	cb(channel, ev)
}

func formatPanic(channel string, r interface{}) string {
	return channel + ": " + toString(r)
}

func toString(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "panic"
}
