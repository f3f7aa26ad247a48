package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationCache_KeepsNewestPointPerUser(t *testing.T) {
	lc := NewLocationCache(0)
	now := time.Now()

	lc.Add(LocationPoint{UserID: "alice", Latitude: 1, Longitude: 1, ReceivedAt: now})
	lc.Add(LocationPoint{UserID: "alice", Latitude: 2, Longitude: 2, ReceivedAt: now.Add(time.Second)})
	// out of order arrival is ignored
	lc.Add(LocationPoint{UserID: "alice", Latitude: 9, Longitude: 9, ReceivedAt: now.Add(-time.Second)})
	lc.Add(LocationPoint{UserID: "bob", Latitude: 3, Longitude: 3})

	pending := lc.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, 2.0, pending["alice"].Latitude)
	assert.False(t, pending["bob"].ReceivedAt.IsZero())
}

func TestLocationCache_MarkFlushed(t *testing.T) {
	lc := NewLocationCache(0.001)
	lc.Add(LocationPoint{UserID: "alice", Latitude: 10, Longitude: 20})

	pending := lc.Pending()
	lc.MarkFlushed(pending)
	assert.Empty(t, lc.Pending())
	assert.Len(t, lc.GetAll(), 1)

	// below the threshold: nothing to persist
	lc.Add(LocationPoint{UserID: "alice", Latitude: 10.0001, Longitude: 20})
	assert.Empty(t, lc.Pending())

	lc.Add(LocationPoint{UserID: "alice", Latitude: 10.5, Longitude: 20})
	pending = lc.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 10.5, pending["alice"].Latitude)
}

func TestLocationCache_PointReplacedDuringFlushStaysPending(t *testing.T) {
	lc := NewLocationCache(0)
	lc.Add(LocationPoint{UserID: "alice", Latitude: 1, Longitude: 1})
	pending := lc.Pending()

	lc.Add(LocationPoint{UserID: "alice", Latitude: 5, Longitude: 5, ReceivedAt: time.Now().Add(time.Second)})
	lc.MarkFlushed(pending)

	again := lc.Pending()
	require.Len(t, again, 1)
	assert.Equal(t, 5.0, again["alice"].Latitude)
}

func TestLocationCache_Stats(t *testing.T) {
	lc := NewLocationCache(0.5)
	lc.Add(LocationPoint{UserID: "a"})
	lc.Add(LocationPoint{UserID: "b"})
	lc.MarkFlushed(map[string]LocationPoint{"a": lc.Pending()["a"]})

	stats := lc.Stats()
	assert.Equal(t, 1, stats["pending_users"])
	assert.Equal(t, 1, stats["persisted_users"])
	assert.Equal(t, 0.5, stats["min_delta"])
}

func TestLocationCache_Concurrent(t *testing.T) {
	lc := NewLocationCache(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lc.Add(LocationPoint{UserID: "u", Latitude: float64(i)})
			lc.MarkFlushed(lc.Pending())
			_ = lc.GetAll()
		}(i)
	}
	wg.Wait()

	assert.Len(t, lc.GetAll(), 1)
}
