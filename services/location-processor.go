package services

import (
	"context"
	"time"

	"grocery-sync/cache"
	"grocery-sync/repositories"

	log "github.com/sirupsen/logrus"
)

// LocationProcessor buffers locations peers stream over the socket and
// periodically persists them as the users' last known location.
type LocationProcessor struct {
	cache    *cache.LocationCache
	users    repositories.UserRepository
	interval time.Duration
}

func NewLocationProcessor(users repositories.UserRepository, interval time.Duration, minDelta float64) *LocationProcessor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &LocationProcessor{
		cache:    cache.NewLocationCache(minDelta),
		users:    users,
		interval: interval,
	}
}

// Start flushes on every tick until ctx is cancelled, then flushes once more.
// The returned channel is closed after that last flush.
func (lp *LocationProcessor) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(lp.interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				lp.flushAndLog(ctx)
			case <-ctx.Done():
				lp.flushAndLog(context.Background())
				return
			}
		}
	}()
	return done
}

// Flush persists every pending location and returns how many users were updated.
func (lp *LocationProcessor) Flush(ctx context.Context) (int, error) {
	pending := lp.cache.Pending()
	if len(pending) == 0 {
		return 0, nil
	}

	locs := make(map[string]repositories.Location, len(pending))
	for userID, p := range pending {
		locs[userID] = repositories.Location{Latitude: p.Latitude, Longitude: p.Longitude}
	}

	n, err := lp.users.UpdateLocations(ctx, locs)
	if err != nil {
		return 0, err
	}
	lp.cache.MarkFlushed(pending)
	return n, nil
}

func (lp *LocationProcessor) flushAndLog(ctx context.Context) {
	n, err := lp.Flush(ctx)
	if err != nil {
		log.WithError(err).Error("failed to persist cached locations")
		return
	}
	if n > 0 {
		log.Printf("Persisted %d cached user locations", n)
	}
}

func (lp *LocationProcessor) AddLocation(userID string, latitude, longitude float64) {
	lp.cache.Add(cache.LocationPoint{UserID: userID, Latitude: latitude, Longitude: longitude})
}

func (lp *LocationProcessor) GetAllCachedLocations() []cache.LocationPoint {
	return lp.cache.GetAll()
}

func (lp *LocationProcessor) GetCacheStats() map[string]interface{} {
	return lp.cache.Stats()
}
