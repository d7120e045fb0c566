package requests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrleave/internal/domain/apperror"
)

type countingTypeStore struct {
	calls   atomic.Int32
	types   []RequestType
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *countingTypeStore) ListRequestTypes(context.Context) ([]RequestType, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
		<-s.release
	}
	return s.types, s.err
}

func TestCatalogCachesUntilTTL(t *testing.T) {
	store := &countingTypeStore{types: []RequestType{vacationType, lateType}}
	clock := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	c := NewCatalog(store, time.Minute)
	c.now = func() time.Time { return clock }

	types, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 2)

	rt, err := c.Get(context.Background(), "t-late")
	require.NoError(t, err)
	assert.Equal(t, "late_arrival", rt.Name)
	assert.EqualValues(t, 1, store.calls.Load())

	clock = clock.Add(2 * time.Minute)
	_, err = c.List(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.calls.Load())

	_, err = c.Get(context.Background(), "t-late")
	require.NoError(t, err)
	assert.EqualValues(t, 2, store.calls.Load(), "a reload restarts the TTL")
}

func TestCatalogGetUnknownReloadsOnce(t *testing.T) {
	store := &countingTypeStore{types: []RequestType{vacationType}}
	c := NewCatalog(store, time.Hour)

	_, err := c.List(context.Background())
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.EqualValues(t, 2, store.calls.Load())
}

func TestCatalogPropagatesStoreError(t *testing.T) {
	boom := errors.New("db down")
	c := NewCatalog(&countingTypeStore{err: boom}, time.Hour)

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = c.Get(context.Background(), "t-vac")
	assert.ErrorIs(t, err, boom)
}

func TestCatalogSharesConcurrentLoads(t *testing.T) {
	store := &countingTypeStore{
		types:   []RequestType{vacationType},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := NewCatalog(store, time.Hour)

	var wg sync.WaitGroup
	results := make(chan int, 8)
	load := func() {
		defer wg.Done()
		types, err := c.List(context.Background())
		if err == nil {
			results <- len(types)
		}
	}

	wg.Add(1)
	go load()
	<-store.entered

	for i := 0; i < 7; i++ {
		wg.Add(1)
		go load()
	}
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()
	close(results)

	count := 0
	for n := range results {
		assert.Equal(t, 1, n)
		count++
	}
	assert.Equal(t, 8, count)
	assert.EqualValues(t, 1, store.calls.Load())
}
