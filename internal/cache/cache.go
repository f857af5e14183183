// Package cache holds the in-memory view of recent station activity.
package cache

import (
	"maps"
	"sync"
	"time"

	"github.com/darshan-rambhia/wxlog/internal/model"
)

// Cache is a thread-safe in-memory store for station status. The collector
// writes to it; the API and the alerter read snapshots.
type Cache struct {
	mu sync.RWMutex

	Stations   map[string]*model.StationStatus
	Latest     map[string]*model.Reading
	Rejections map[string]int64
	Storage    model.StorageHealth
}

// CacheSnapshot is a read-only deep copy of the cache state.
type CacheSnapshot struct {
	Stations   map[string]*model.StationStatus
	Latest     map[string]*model.Reading
	Rejections map[string]int64
	Storage    model.StorageHealth
}

// New returns an initialized Cache.
func New() *Cache {
	return &Cache{
		Stations:   make(map[string]*model.StationStatus),
		Latest:     make(map[string]*model.Reading),
		Rejections: make(map[string]int64),
	}
}

// Snapshot returns a deep copy of the cache contents.
func (c *Cache) Snapshot() CacheSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := CacheSnapshot{
		Stations:   make(map[string]*model.StationStatus, len(c.Stations)),
		Latest:     make(map[string]*model.Reading, len(c.Latest)),
		Rejections: make(map[string]int64, len(c.Rejections)),
		Storage:    c.Storage,
	}

	for id, st := range c.Stations {
		cp := *st
		snap.Stations[id] = &cp
	}
	for id, r := range c.Latest {
		cp := *r
		snap.Latest[id] = &cp
	}
	maps.Copy(snap.Rejections, c.Rejections)

	return snap
}

// RecordReading notes a stored reading from addr at the given time.
func (c *Cache) RecordReading(r model.Reading, addr string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.Stations[r.StationID]
	if !ok {
		st = &model.StationStatus{StationID: r.StationID, FirstSeen: at}
		c.Stations[r.StationID] = st
	}
	st.FirmwareRev = r.FirmwareRev
	st.RemoteAddr = addr
	st.LastSeen = at
	st.Readings++

	cp := r
	c.Latest[r.StationID] = &cp
}

// RecordRejection counts a dropped datagram by reason.
func (c *Cache) RecordRejection(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Rejections[reason]++
}

// RecordStorageSuccess resets the storage failure streak.
func (c *Cache) RecordStorageSuccess(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Storage.LastSuccess = at
	c.Storage.ConsecutiveErrors = 0
}

// RecordStorageFailure extends the storage failure streak.
func (c *Cache) RecordStorageFailure(err error, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Storage.LastFailure = at
	c.Storage.ConsecutiveErrors++
	if err != nil {
		c.Storage.LastError = err.Error()
	}
}
