package cache

import (
	"sync"
	"time"

	"github.com/darshan-rambhia/herald/internal/model"
)

// ChannelStats counts delivery outcomes for one channel type.
type ChannelStats struct {
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	LastAttempt time.Time `json:"last_attempt"`
	LastError   string    `json:"last_error,omitempty"`
}

// Cache is a thread-safe in-memory tally of delivery outcomes since startup.
type Cache struct {
	mu sync.RWMutex

	Channels map[model.ChannelType]*ChannelStats
	// Unconfigured counts dispatches that found no channel.
	Unconfigured int
	Started      time.Time
}

// CacheSnapshot is a read-only deep copy of the cache state.
type CacheSnapshot struct {
	Channels     map[model.ChannelType]ChannelStats `json:"channels"`
	Unconfigured int                                `json:"unconfigured"`
	Started      time.Time                          `json:"started"`
}

// New returns an initialized Cache.
func New() *Cache {
	return &Cache{
		Channels: make(map[model.ChannelType]*ChannelStats),
		Started:  time.Now(),
	}
}

// Snapshot returns a deep copy of the cache contents.
func (c *Cache) Snapshot() CacheSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := CacheSnapshot{
		Channels:     make(map[model.ChannelType]ChannelStats, len(c.Channels)),
		Unconfigured: c.Unconfigured,
		Started:      c.Started,
	}
	for t, s := range c.Channels {
		snap.Channels[t] = *s
	}
	return snap
}

// Totals sums the per-channel counters of a snapshot.
func (s CacheSnapshot) Totals() ChannelStats {
	var total ChannelStats
	for _, st := range s.Channels {
		total.Sent += st.Sent
		total.Failed += st.Failed
		total.Skipped += st.Skipped
		if st.LastAttempt.After(total.LastAttempt) {
			total.LastAttempt = st.LastAttempt
			total.LastError = st.LastError
		}
	}
	return total
}

func (c *Cache) stats(t model.ChannelType) *ChannelStats {
	s, ok := c.Channels[t]
	if !ok {
		s = &ChannelStats{}
		c.Channels[t] = s
	}
	return s
}

// Record tallies one dispatch outcome. An empty channel type counts as
// unconfigured. A false result without error counts as skipped.
func (c *Cache) Record(t model.ChannelType, ok bool, err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t == "" {
		c.Unconfigured++
		return
	}
	s := c.stats(t)
	s.LastAttempt = at
	switch {
	case err != nil:
		s.Failed++
		s.LastError = err.Error()
	case ok:
		s.Sent++
		s.LastError = ""
	default:
		s.Skipped++
	}
}

// Reset clears all counters.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Channels = make(map[model.ChannelType]*ChannelStats)
	c.Unconfigured = 0
	c.Started = time.Now()
}
