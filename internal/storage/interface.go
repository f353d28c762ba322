package storage

import (
	"time"

	"github.com/don-licenciao/MapyChat-web/internal/model"
)

// Storage holds per-client rate entries for the lifetime of the process.
type Storage interface {
	// Mutate runs fn with the current entry for key (nil if absent) inside an
	// exclusive critical section and stores what fn returns; nil deletes.
	Mutate(key string, fn func(entry *model.RateEntry) *model.RateEntry)

	// Evict removes up to max entries that have expired at now and reports
	// how many were dropped. max <= 0 means no bound.
	Evict(now time.Time, max int) int

	Len() int
}

// PreferenceStore is a flat key-value store for client preferences.
type PreferenceStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}
