package cache

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_GetPut(t *testing.T) {
	c := NewLRU[string](3)

	c.Put("a", "A")
	c.Put("b", "B")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	evicted, ok := c.Put("c", 3)

	assert.True(t, ok)
	assert.Equal(t, "a", evicted)

	_, ok = c.Get("a")
	assert.False(t, ok, "a should have been evicted")

	v, ok := c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_AccessPromotesEntry(t *testing.T) {
	c := NewLRU[int](2)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")

	evicted, _ := c.Put("c", 3)
	assert.Equal(t, "b", evicted)

	_, ok := c.Get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")
}

func TestLRU_ReplaceExisting(t *testing.T) {
	c := NewLRU[string](2)

	c.Put("a", "A1")
	_, evicted := c.Put("a", "A2")
	assert.False(t, evicted)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_MinimumCapacity(t *testing.T) {
	c := NewLRU[int](0)

	c.Put("a", 1)
	c.Put("b", 2)

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestLRU_Update(t *testing.T) {
	c := NewLRU[int](2)
	c.Put("a", 1)

	require.NoError(t, c.Update("a", func(v int) (int, error) { return v + 1, nil }))
	v, _ := c.Get("a")
	assert.Equal(t, 2, v)

	boom := errors.New("boom")
	err := c.Update("a", func(int) (int, error) { return 99, boom })
	assert.ErrorIs(t, err, boom)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v, "failed update leaves value untouched")

	err = c.Update("missing", func(v int) (int, error) { return v, nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](16)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				key := strconv.Itoa((g*100 + i) % 32)
				c.Put(key, i)
				c.Get(key)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}
