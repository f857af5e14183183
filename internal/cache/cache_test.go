package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/darshan-rambhia/wxlog/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reading(id string, temp float64) model.Reading {
	r := model.DefaultReading()
	r.StationID = id
	r.Temp = temp
	return r
}

func TestNew(t *testing.T) {
	c := New()
	assert.NotNil(t, c.Stations)
	assert.NotNil(t, c.Latest)
	assert.NotNil(t, c.Rejections)
	assert.Zero(t, c.Storage.ConsecutiveErrors)
}

func TestRecordReading(t *testing.T) {
	c := New()
	t0 := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(16 * time.Second)

	c.RecordReading(reading("WX1", 20), "192.168.1.50:4000", t0)
	r := reading("WX1", 21)
	r.FirmwareRev = "0x000042"
	c.RecordReading(r, "192.168.1.51:4000", t1)

	snap := c.Snapshot()
	require.Contains(t, snap.Stations, "WX1")
	st := snap.Stations["WX1"]
	assert.Equal(t, t0, st.FirstSeen)
	assert.Equal(t, t1, st.LastSeen)
	assert.Equal(t, int64(2), st.Readings)
	assert.Equal(t, "0x000042", st.FirmwareRev)
	assert.Equal(t, "192.168.1.51:4000", st.RemoteAddr)
	assert.Equal(t, 21.0, snap.Latest["WX1"].Temp)
}

func TestRecordReading_MultipleStations(t *testing.T) {
	c := New()
	now := time.Now()
	c.RecordReading(reading("A", 1), "10.0.0.1:1", now)
	c.RecordReading(reading("B", 2), "10.0.0.2:1", now)

	snap := c.Snapshot()
	assert.Len(t, snap.Stations, 2)
	assert.Len(t, snap.Latest, 2)
}

func TestRecordRejection(t *testing.T) {
	c := New()
	c.RecordRejection("auth")
	c.RecordRejection("auth")
	c.RecordRejection("dialect")

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Rejections["auth"])
	assert.Equal(t, int64(1), snap.Rejections["dialect"])
}

func TestStorageStreak(t *testing.T) {
	c := New()
	now := time.Now()

	c.RecordStorageFailure(errors.New("disk full"), now)
	c.RecordStorageFailure(errors.New("disk still full"), now.Add(time.Second))
	snap := c.Snapshot()
	assert.Equal(t, 2, snap.Storage.ConsecutiveErrors)
	assert.Equal(t, "disk still full", snap.Storage.LastError)
	assert.Equal(t, now.Add(time.Second), snap.Storage.LastFailure)

	c.RecordStorageSuccess(now.Add(2 * time.Second))
	snap = c.Snapshot()
	assert.Zero(t, snap.Storage.ConsecutiveErrors)
	assert.Equal(t, now.Add(2*time.Second), snap.Storage.LastSuccess)
	assert.Equal(t, "disk still full", snap.Storage.LastError, "last error is kept for diagnostics")
}

func TestSnapshotIsIndependent(t *testing.T) {
	c := New()
	c.RecordReading(reading("WX1", 20), "addr", time.Now())

	snap := c.Snapshot()
	snap.Stations["WX1"].Readings = 99
	snap.Latest["WX1"].Temp = -99
	snap.Rejections["auth"] = 5

	fresh := c.Snapshot()
	assert.Equal(t, int64(1), fresh.Stations["WX1"].Readings)
	assert.Equal(t, 20.0, fresh.Latest["WX1"].Temp)
	assert.NotContains(t, fresh.Rejections, "auth")
}

func TestConcurrentReadWrite(t *testing.T) {
	c := New()
	var wg sync.WaitGroup

	// Writers
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.RecordReading(reading(fmt.Sprintf("WX%d", n), float64(n)), "addr", time.Now())
			c.RecordRejection("auth")
			c.RecordStorageFailure(errors.New("boom"), time.Now())
			c.RecordStorageSuccess(time.Now())
		}(i)
	}

	// Readers
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := c.Snapshot()
			_ = len(snap.Stations)
			_ = len(snap.Latest)
			_ = snap.Storage.ConsecutiveErrors
		}()
	}

	wg.Wait()
	assert.Len(t, c.Snapshot().Stations, 10)
}
