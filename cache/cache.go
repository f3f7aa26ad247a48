package cache

import (
	"math"
	"sync"
	"time"
)

// LocationPoint is the latest location a user reported over the socket.
type LocationPoint struct {
	UserID     string    `json:"userid"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ReceivedAt time.Time `json:"received_at"`
}

// LocationCache keeps the latest socket-reported location per user until it
// is persisted.
type LocationCache struct {
	mu          sync.RWMutex
	latest      map[string]LocationPoint // userID -> newest point
	lastFlushed map[string]LocationPoint // userID -> last persisted point
	minDelta    float64                  // degrees a user must move to be persisted again
}

func NewLocationCache(minDelta float64) *LocationCache {
	return &LocationCache{
		latest:      make(map[string]LocationPoint),
		lastFlushed: make(map[string]LocationPoint),
		minDelta:    minDelta,
	}
}

// Add records point as the newest location of its user.
func (lc *LocationCache) Add(point LocationPoint) {
	if point.ReceivedAt.IsZero() {
		point.ReceivedAt = time.Now()
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if prev, ok := lc.latest[point.UserID]; ok && prev.ReceivedAt.After(point.ReceivedAt) {
		return
	}
	lc.latest[point.UserID] = point
}

// Pending returns the points that moved at least minDelta since they were
// last persisted.
func (lc *LocationCache) Pending() map[string]LocationPoint {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	pending := make(map[string]LocationPoint)
	for userID, point := range lc.latest {
		if prev, ok := lc.lastFlushed[userID]; ok {
			moved := math.Max(math.Abs(point.Latitude-prev.Latitude), math.Abs(point.Longitude-prev.Longitude))
			if moved < lc.minDelta {
				continue
			}
		}
		pending[userID] = point
	}
	return pending
}

// MarkFlushed records points as persisted. Entries that were replaced by a
// newer point in the meantime stay pending.
func (lc *LocationCache) MarkFlushed(points map[string]LocationPoint) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	for userID, point := range points {
		lc.lastFlushed[userID] = point
		if cur, ok := lc.latest[userID]; ok && cur.ReceivedAt.Equal(point.ReceivedAt) {
			delete(lc.latest, userID)
		}
	}
}

// GetAll returns a copy of every cached point, persisted or not.
func (lc *LocationCache) GetAll() []LocationPoint {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	seen := make(map[string]LocationPoint, len(lc.lastFlushed)+len(lc.latest))
	for userID, p := range lc.lastFlushed {
		seen[userID] = p
	}
	for userID, p := range lc.latest {
		seen[userID] = p
	}

	all := make([]LocationPoint, 0, len(seen))
	for _, p := range seen {
		all = append(all, p)
	}
	return all
}

// Stats returns counters about the cache.
func (lc *LocationCache) Stats() map[string]interface{} {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	return map[string]interface{}{
		"pending_users":   len(lc.latest),
		"persisted_users": len(lc.lastFlushed),
		"min_delta":       lc.minDelta,
	}
}
