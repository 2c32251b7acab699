package form

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces instance ids for newly placed items.
type IDGenerator interface {
	NewID(kind string) string
}

// TimestampIDs generates "<kind>-<unix millis>" ids. The millisecond token
// is bumped past the previous one so two placements in the same
// millisecond still get distinct ids.
type TimestampIDs struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewTimestampIDs returns a generator reading the wall clock.
func NewTimestampIDs() *TimestampIDs {
	return &TimestampIDs{now: time.Now}
}

// NewID implements IDGenerator.
func (g *TimestampIDs) NewID(kind string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return kind + "-" + strconv.FormatInt(ms, 10)
}

// UUIDIDs generates "<kind>-<uuid>" ids.
type UUIDIDs struct{}

// NewID implements IDGenerator.
func (UUIDIDs) NewID(kind string) string {
	return kind + "-" + uuid.NewString()
}
