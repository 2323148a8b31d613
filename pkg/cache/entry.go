package cache

import (
	"encoding/json"
	"time"
)

// Entry represents a cached origin payload.
type Entry struct {
	// Data is the origin response body, stored verbatim.
	Data json.RawMessage `json:"data"`

	// Expires is when the entry stops being served.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`
}

// newEntry copies value so later mutations by the caller cannot leak into the cache.
func newEntry(value json.RawMessage, now time.Time, ttl time.Duration) *Entry {
	data := make(json.RawMessage, len(value))
	copy(data, value)
	return &Entry{
		Data:     data,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// payload returns a copy of Data so callers cannot modify the stored entry.
func (e *Entry) payload() json.RawMessage {
	data := make(json.RawMessage, len(e.Data))
	copy(data, e.Data)
	return data
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return e.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the entry is stale at the given instant.
// An entry is only served while now < Expires.
func (e *Entry) ExpiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
