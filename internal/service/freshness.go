package service

import (
	"time"

	"animesync/internal/model"
)

// DefaultTTL is how long a cached record is served without a remote refresh.
const DefaultTTL = time.Hour

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// IsStale reports whether a record refreshed at lastUpdated is older than ttl at now.
// A record exactly ttl old is still fresh.
func IsStale(lastUpdated, now time.Time, ttl time.Duration) bool {
	return now.Sub(lastUpdated) > ttl
}

// OldestUpdate returns the earliest LastUpdated in list, or the zero time for an empty list.
// A collection is as stale as its oldest member.
func OldestUpdate(list []model.Anime) time.Time {
	var oldest time.Time
	for i, a := range list {
		if i == 0 || a.LastUpdated.Before(oldest) {
			oldest = a.LastUpdated
		}
	}
	return oldest
}
