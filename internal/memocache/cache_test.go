package memocache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestCache_SetGet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewWithClock(clock.now)

	c.Set("k", "v", time.Minute)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
}

func TestCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewWithClock(clock.now)

	c.Set("k", 42, time.Minute)

	clock.advance(59 * time.Second)
	_, ok := c.Get("k")
	require.True(t, ok)

	clock.advance(2 * time.Second)
	_, ok = c.Get("k")
	require.False(t, ok)

	// Expired entry was evicted on lookup.
	require.Equal(t, 0, c.Len())
}

func TestCache_MissingKey(t *testing.T) {
	c := New()
	_, ok := c.Get("absent")
	require.False(t, ok)
}

func TestWithCache_MemoizesWhileFresh(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := NewWithClock(clock.now)

	calls := 0
	producer := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	ctx := context.Background()
	v1, err := WithCache(ctx, c, "list", time.Minute, producer)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, v1)

	v2, err := WithCache(ctx, c, "list", time.Minute, producer)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Equal(t, 1, calls)

	clock.advance(2 * time.Minute)
	_, err = WithCache(ctx, c, "list", time.Minute, producer)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestWithCache_ErrorNotCached(t *testing.T) {
	c := New()
	boom := errors.New("upstream down")

	calls := 0
	producer := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}
		return 7, nil
	}

	ctx := context.Background()
	_, err := WithCache(ctx, c, "k", time.Minute, producer)
	require.ErrorIs(t, err, boom)

	v, err := WithCache(ctx, c, "k", time.Minute, producer)
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Equal(t, 2, calls)
}
