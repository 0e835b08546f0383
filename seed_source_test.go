package lottery

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDSeedSource(t *testing.T) {
	clock := time.Date(2024, 6, 1, 9, 30, 0, 123_456_789, time.FixedZone("BRT", -3*60*60))
	source := NewUUIDSeedSourceWithClock(func() time.Time { return clock })

	seed, timestamp, err := source.Next()
	require.NoError(t, err)

	parsed, err := uuid.Parse(seed)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.Equal(t, "2024-06-01T12:30:00.123Z", timestamp)

	again, _, err := source.Next()
	require.NoError(t, err)
	assert.NotEqual(t, seed, again)
}

func TestFixedSeedSource(t *testing.T) {
	source := NewFixedSeedSource("abc", "2024-01-01T00:00:00.000Z").
		Add("seed-1", "2024-06-01T12:30:00.000Z")

	expected := [][2]string{
		{"abc", "2024-01-01T00:00:00.000Z"},
		{"seed-1", "2024-06-01T12:30:00.000Z"},
		{"abc", "2024-01-01T00:00:00.000Z"},
	}
	for _, want := range expected {
		seed, ts, err := source.Next()
		require.NoError(t, err)
		assert.Equal(t, want[0], seed)
		assert.Equal(t, want[1], ts)
	}

	_, _, err := (&FixedSeedSource{}).Next()
	assert.ErrorIs(t, err, ErrDrawFailed)
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", FormatTimestamp(ts))
}
