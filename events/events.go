// Package events implements the data-event pub/sub collaborator: on
// every committed insert the Engine publishes one message on a channel
// named after the metric key; subscribers register a glob pattern and
// are delivered every message on a channel that matches it.
package events

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Event is the stats record published on every committed insert,
// encoded with the same human-readable key=value format as
// engine.Stats.Encode.
type Event struct {
	Key      string
	TSMin    int64
	TSMax    int64
	Count    int64
	Appended int64
	Inserted int64
	Updated  int64
	Deleted  int64
	Splits   int64
	Merged   int64
}

// Encode renders the event as a sequence of key=value pairs, one per
// field, space-separated.
func (e Event) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "key=%s ts_min=%d ts_max=%d count=%d appended=%d inserted=%d updated=%d deleted=%d splits=%d merged=%d",
		e.Key, e.TSMin, e.TSMax, e.Count, e.Appended, e.Inserted, e.Updated, e.Deleted, e.Splits, e.Merged)
	return b.String()
}

// Decode parses the Encode format back into an Event.
func Decode(s string) (Event, error) {
	var e Event
	for _, field := range strings.Fields(s) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return Event{}, fmt.Errorf("events: malformed field %q", field)
		}
		k, v := kv[0], kv[1]
		var err error
		switch k {
		case "key":
			e.Key = v
		case "ts_min":
			e.TSMin, err = strconv.ParseInt(v, 10, 64)
		case "ts_max":
			e.TSMax, err = strconv.ParseInt(v, 10, 64)
		case "count":
			e.Count, err = strconv.ParseInt(v, 10, 64)
		case "appended":
			e.Appended, err = strconv.ParseInt(v, 10, 64)
		case "inserted":
			e.Inserted, err = strconv.ParseInt(v, 10, 64)
		case "updated":
			e.Updated, err = strconv.ParseInt(v, 10, 64)
		case "deleted":
			e.Deleted, err = strconv.ParseInt(v, 10, 64)
		case "splits":
			e.Splits, err = strconv.ParseInt(v, 10, 64)
		case "merged":
			e.Merged, err = strconv.ParseInt(v, 10, 64)
		}
		if err != nil {
			return Event{}, fmt.Errorf("events: field %q: %w", field, err)
		}
	}
	return e, nil
}

// Callback is invoked once per delivered event. Implementations must
// not block for long; the router invokes callbacks synchronously per
// channel and an exception (panic) is recovered, logged, and surfaced
// through LastError rather than propagated, per the Internal error
// kind.
type Callback func(key string, ev Event)

// Publisher publishes one event on a channel named after the metric
// key.
type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event) error
}

// Subscriber registers glob-pattern callbacks and reports the last
// callback-side error observed (the `last_error` diagnostic field of
// spec §7's Internal error kind).
type Subscriber interface {
	RegisterCallback(pattern string, cb Callback) error
	LastError() string
}

// globMatch reports whether channel matches pattern, where pattern may
// contain '*' wildcards, using the shell-glob semantics of path.Match.
func globMatch(pattern, channel string) bool {
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}
