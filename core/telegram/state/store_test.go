package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type draft struct{ name string }

func TestStorePutGetDelete(t *testing.T) {
	s := NewStore[*draft](time.Minute)

	_, ok := s.Get(42)
	assert.False(t, ok)

	s.Put(42, &draft{name: "Blue Mug"})
	got, ok := s.Get(42)
	require.True(t, ok)
	assert.Equal(t, "Blue Mug", got.name)
	assert.Equal(t, 1, s.Len())

	s.Delete(42)
	_, ok = s.Get(42)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestStoreExpires(t *testing.T) {
	s := NewStore[string](20 * time.Millisecond)
	s.Put(1, "x")

	assert.Eventually(t, func() bool {
		_, ok := s.Get(1)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestStoreOnEvicted(t *testing.T) {
	s := NewStore[string](time.Minute)
	evicted := make(chan int64, 1)
	s.OnEvicted(func(id int64, v string) {
		assert.Equal(t, "x", v)
		evicted <- id
	})

	s.Put(7, "x")
	s.Delete(7)

	select {
	case id := <-evicted:
		assert.Equal(t, int64(7), id)
	case <-time.After(time.Second):
		t.Fatal("eviction callback not called")
	}
}

func TestNewStoreDefaultsTTL(t *testing.T) {
	s := NewStore[int](0)
	s.Put(1, 5)
	v, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, 5, v)
}
