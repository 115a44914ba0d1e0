package timeutil

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// nowTolerance bounds the drift allowed when an input degrades to "now".
const nowTolerance = int64(2000)

func assertNow(t *testing.T, got int64) {
	t.Helper()
	now := time.Now().UnixMilli()
	assert.InDelta(t, now, got, float64(nowTolerance), "expected a current-time fallback")
}

func TestNormalize_EpochMillisPassThrough(t *testing.T) {
	for _, ms := range []int64{1e12, 1700000000000, 1757000000123} {
		assert.Equal(t, ms, Normalize(ms))
	}
}

func TestNormalize_EpochSecondsScaled(t *testing.T) {
	for _, s := range []int64{1, 1700000000, 999999999999} {
		assert.Equal(t, s*1000, Normalize(s))
	}
}

func TestNormalize_NilIsNow(t *testing.T) {
	assertNow(t, Normalize(nil))
}

func TestNormalize_IntegerStrings(t *testing.T) {
	// Seconds-valued string gets scaled, millis-valued passed through.
	assert.Equal(t, int64(1700000000000), Normalize("1700000000"))
	assert.Equal(t, int64(1700000000000), Normalize("1700000000000"))
}

func TestNormalize_CalendarStrings(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC).UnixMilli()
	assert.Equal(t, want, Normalize("2025-03-14T09:26:53Z"))
	assert.Equal(t, want, Normalize("2025-03-14 09:26:53"))
}

func TestNormalize_GarbageStringIsNow(t *testing.T) {
	assertNow(t, Normalize("not a timestamp"))
	assertNow(t, Normalize(""))
}

func TestNormalize_JSONNumbers(t *testing.T) {
	// JSON decodes numbers to float64.
	assert.Equal(t, int64(1700000000000), Normalize(float64(1700000000)))
	assert.Equal(t, int64(1700000000000), Normalize(float64(1700000000000)))
	assertNow(t, Normalize(math.NaN()))
	assertNow(t, Normalize(math.Inf(1)))
}

func TestNormalize_NativeTime(t *testing.T) {
	now := time.Now()
	assert.Equal(t, now.UnixMilli(), Normalize(now))
	assertNow(t, Normalize(time.Time{}))
}

type fakeEpocher struct{ ms int64 }

func (f fakeEpocher) EpochMillis() int64 { return f.ms }

func TestNormalize_Epocher(t *testing.T) {
	assert.Equal(t, int64(1700000000000), Normalize(fakeEpocher{ms: 1700000000000}))
}

func TestNormalize_UnknownShapeIsNow(t *testing.T) {
	assertNow(t, Normalize(struct{ X int }{X: 3}))
	assertNow(t, Normalize([]string{"2024-01-01"}))
	assertNow(t, Normalize(true))
}

func TestNormalize_IdempotentOnOwnOutput(t *testing.T) {
	inputs := []any{int64(1700000000), "2025-03-14T09:26:53Z", float64(1699999999999), nil}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
		assert.Equal(t, once, Normalize(strconv.FormatInt(once, 10)))
	}
}
