package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("RFC3339 timestamp", func(t *testing.T) {
		ms, err := Parse("2026-08-30T13:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 30, 13, 0, 0, 0, time.UTC).UnixMilli(), ms)
	})

	t.Run("plain date is local midnight", func(t *testing.T) {
		ms, err := Parse("2026-08-30")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.Local).UnixMilli(), ms)
	})

	t.Run("duration is relative to now", func(t *testing.T) {
		before := time.Now().Add(-time.Hour).UnixMilli()
		ms, err := Parse("1h")
		require.NoError(t, err)
		after := time.Now().Add(-time.Hour).UnixMilli()
		assert.GreaterOrEqual(t, ms, before)
		assert.LessOrEqual(t, ms, after)
	})

	t.Run("empty spec errors", func(t *testing.T) {
		_, err := Parse("")
		assert.Error(t, err)
	})

	t.Run("garbage errors", func(t *testing.T) {
		_, err := Parse("yesterday-ish")
		assert.Error(t, err)
	})
}

func TestParseRange(t *testing.T) {
	t.Run("both bounds", func(t *testing.T) {
		since, until, err := ParseRange("2h", "1h")
		require.NoError(t, err)
		assert.Less(t, since, until)
	})

	t.Run("unbounded", func(t *testing.T) {
		since, until, err := ParseRange("", "")
		require.NoError(t, err)
		assert.Zero(t, since)
		assert.Zero(t, until)
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		_, _, err := ParseRange("1h", "2h")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--since must be before --until")
	})
}
