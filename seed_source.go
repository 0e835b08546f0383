package lottery

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// UUIDSeedSource implements SeedSource with a random UUIDv4 seed and the current UTC time
type UUIDSeedSource struct {
	now func() time.Time
}

// NewUUIDSeedSource creates a seed source backed by crypto/rand through google/uuid
func NewUUIDSeedSource() *UUIDSeedSource {
	return &UUIDSeedSource{now: time.Now}
}

// NewUUIDSeedSourceWithClock creates a seed source with a custom clock
func NewUUIDSeedSourceWithClock(now func() time.Time) *UUIDSeedSource {
	if now == nil {
		now = time.Now
	}
	return &UUIDSeedSource{now: now}
}

// Next returns a fresh seed and the current timestamp
func (s *UUIDSeedSource) Next() (string, string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", "", ErrDrawFailed.WithCause(err)
	}
	return id.String(), FormatTimestamp(s.now()), nil
}

// FixedSeedSource replays a fixed list of seed/timestamp pairs, cycling when exhausted.
// Used to replay draws and to make settlement deterministic in tests.
type FixedSeedSource struct {
	mu    sync.Mutex
	pairs [][2]string
	next  int
}

// NewFixedSeedSource creates a source that always returns seed and timestamp
func NewFixedSeedSource(seed, timestamp string) *FixedSeedSource {
	return &FixedSeedSource{pairs: [][2]string{{seed, timestamp}}}
}

// Add appends another pair to the replay list
func (s *FixedSeedSource) Add(seed, timestamp string) *FixedSeedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = append(s.pairs, [2]string{seed, timestamp})
	return s
}

// Next returns the next configured pair
func (s *FixedSeedSource) Next() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pairs) == 0 {
		return "", "", ErrDrawFailed.WithDetails("fixed seed source is empty")
	}
	p := s.pairs[s.next%len(s.pairs)]
	s.next++
	return p[0], p[1], nil
}

// FormatTimestamp renders t in the draw timestamp layout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
