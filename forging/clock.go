package forging

import (
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// AdjustedClock is a clock.Clock shifted by an offset learned from the
// network, so that nodes with skewed local clocks agree on block timing.
type AdjustedClock struct {
	base   clock.Clock
	offset atomic.Int64
}

// NewAdjustedClock wraps base with a zero offset.
func NewAdjustedClock(base clock.Clock) *AdjustedClock {
	return &AdjustedClock{base: base}
}

func (c *AdjustedClock) Now() time.Time {
	return c.base.Now().Add(c.Offset())
}

func (c *AdjustedClock) TickAfter(d time.Duration) <-chan time.Time {
	return c.base.TickAfter(d)
}

// SetOffset replaces the network offset.
func (c *AdjustedClock) SetOffset(d time.Duration) { c.offset.Store(int64(d)) }

func (c *AdjustedClock) Offset() time.Duration { return time.Duration(c.offset.Load()) }

var _ clock.Clock = (*AdjustedClock)(nil)
