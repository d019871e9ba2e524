package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Stats is the per-insert result record of spec.md §6: the static
// {ts_min, ts_max, count} summary of the key after the insert, plus the
// per-call deltas describing what the insert actually did.
type Stats struct {
	Key      string `json:"key"`
	TSMin    int64  `json:"ts_min"`
	TSMax    int64  `json:"ts_max"`
	Count    int64  `json:"count"`
	Appended int64  `json:"appended"`
	Inserted int64  `json:"inserted"`
	Updated  int64  `json:"updated"`
	Deleted  int64  `json:"deleted"`
	Splits   int64  `json:"splits"`
	Merged   int64  `json:"merged"`
}

// Encode renders Stats as human-readable key=value pairs, the same
// text format events.Event.Encode uses for the event payload. The cache
// does not use this encoding; it stores cache.Stats values.
func (s Stats) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "key=%s ts_min=%d ts_max=%d count=%d appended=%d inserted=%d updated=%d deleted=%d splits=%d merged=%d",
		s.Key, s.TSMin, s.TSMax, s.Count, s.Appended, s.Inserted, s.Updated, s.Deleted, s.Splits, s.Merged)
	return b.String()
}

// DecodeStats parses the Encode format back into a Stats value.
func DecodeStats(text string) (Stats, error) {
	var s Stats
	for _, field := range strings.Fields(text) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return Stats{}, fmt.Errorf("engine: malformed stats field %q", field)
		}
		k, v := kv[0], kv[1]
		var err error
		switch k {
		case "key":
			s.Key = v
		case "ts_min":
			s.TSMin, err = strconv.ParseInt(v, 10, 64)
		case "ts_max":
			s.TSMax, err = strconv.ParseInt(v, 10, 64)
		case "count":
			s.Count, err = strconv.ParseInt(v, 10, 64)
		case "appended":
			s.Appended, err = strconv.ParseInt(v, 10, 64)
		case "inserted":
			s.Inserted, err = strconv.ParseInt(v, 10, 64)
		case "updated":
			s.Updated, err = strconv.ParseInt(v, 10, 64)
		case "deleted":
			s.Deleted, err = strconv.ParseInt(v, 10, 64)
		case "splits":
			s.Splits, err = strconv.ParseInt(v, 10, 64)
		case "merged":
			s.Merged, err = strconv.ParseInt(v, 10, 64)
		}
		if err != nil {
			return Stats{}, fmt.Errorf("engine: stats field %q: %w", field, err)
		}
	}
	return s, nil
}
