// Package timeutil converts the timestamp shapes seen across device
// firmware, the feed API, and stored documents into canonical epoch
// milliseconds.
package timeutil

import (
	"math"
	"strconv"
	"time"
)

// Values below this are treated as epoch seconds, at or above as
// epoch milliseconds. 10^12 ms is Sep 2001; no device predates that.
const millisThreshold = int64(1e12)

// Epocher is implemented by external timestamp objects that know how
// to convert themselves to epoch milliseconds (e.g. the feed's
// seconds+nanos pair).
type Epocher interface {
	EpochMillis() int64
}

// Date layouts the feed and firmware have been seen emitting, tried in
// order after RFC3339.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// Normalize converts any recognized timestamp shape to epoch
// milliseconds. It is total: unrecognized or malformed input degrades
// to the current time rather than failing, because callers have no
// sensible fallback for a missing timestamp. Normalize(Normalize(v))
// == Normalize(v) for any already-normalized value.
func Normalize(v any) int64 {
	switch t := v.(type) {
	case nil:
		return nowMillis()
	case time.Time:
		if t.IsZero() {
			return nowMillis()
		}
		return t.UnixMilli()
	case Epocher:
		return t.EpochMillis()
	case string:
		return normalizeString(t)
	case int64:
		return scale(t)
	case int:
		return scale(int64(t))
	case int32:
		return scale(int64(t))
	case uint:
		return scale(int64(t))
	case uint32:
		return scale(int64(t))
	case uint64:
		return scale(int64(t))
	case float64:
		// JSON numbers decode to float64.
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nowMillis()
		}
		return scale(int64(t))
	case float32:
		return Normalize(float64(t))
	default:
		return nowMillis()
	}
}

// NormalizeTime is Normalize with a time.Time result.
func NormalizeTime(v any) time.Time {
	return time.UnixMilli(Normalize(v))
}

func normalizeString(s string) int64 {
	if s == "" {
		return nowMillis()
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return scale(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return scale(int64(f))
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return nowMillis()
}

func scale(n int64) int64 {
	if n < 0 {
		return nowMillis()
	}
	if n < millisThreshold {
		return n * 1000
	}
	return n
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
