package state

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultTTL is used when a store is built with a non-positive TTL.
const DefaultTTL = time.Hour

// Store maps a user or chat id to a session value. Entries expire after the
// configured TTL of inactivity; every Put refreshes the deadline.
type Store[T any] struct {
	cache *cache.Cache
}

// NewStore builds a Store whose entries expire after ttl. Expired entries are
// purged every ttl/6, but never more often than once a second.
func NewStore[T any](ttl time.Duration) *Store[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cleanup := ttl / 6
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &Store[T]{cache: cache.New(ttl, cleanup)}
}

// OnEvicted registers fn to run when an entry is deleted or expires.
func (s *Store[T]) OnEvicted(fn func(id int64, v T)) {
	s.cache.OnEvicted(func(key string, x any) {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return
		}
		if v, ok := x.(T); ok {
			fn(id, v)
		}
	})
}

// Get returns the live session for id.
func (s *Store[T]) Get(id int64) (T, bool) {
	var zero T
	x, found := s.cache.Get(key(id))
	if !found {
		return zero, false
	}
	v, ok := x.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Put stores v for id and resets its expiry.
func (s *Store[T]) Put(id int64, v T) {
	s.cache.Set(key(id), v, cache.DefaultExpiration)
}

// Delete drops the session for id, if any.
func (s *Store[T]) Delete(id int64) {
	s.cache.Delete(key(id))
}

// Len counts stored sessions, including expired ones not yet purged.
func (s *Store[T]) Len() int {
	return s.cache.ItemCount()
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
