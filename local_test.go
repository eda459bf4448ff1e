package stashy

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocal(t *testing.T) {
	st := NewLocal()
	assert.True(t, st.IsEmpty())
	assert.Equal(t, 0, st.Len())
}

func TestLocal_Stash(t *testing.T) {
	ctx := context.Background()

	t.Run("stash and fetch", func(t *testing.T) {
		st := NewLocal()

		prev, ok, err := st.Stash(ctx, "user:1:name", "Alice")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, prev)

		value, ok, err := st.Fetch(ctx, "user:1:name")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Alice", value)
	})

	t.Run("multiple keys", func(t *testing.T) {
		st := NewLocal()
		for key, value := range map[string]string{
			"test":        "value123",
			"user:1:name": "Alice",
			"user:2:name": "Bob",
			"user:3:name": "Charlie",
		} {
			_, ok, err := st.Stash(ctx, key, value)
			require.NoError(t, err)
			assert.False(t, ok)
		}
		assert.Equal(t, 4, st.Len())

		value, ok, err := st.Fetch(ctx, "user:2:name")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Bob", value)
	})

	t.Run("overwrite returns previous value", func(t *testing.T) {
		st := NewLocal()

		_, ok, err := st.Stash(ctx, "test", "value123")
		require.NoError(t, err)
		assert.False(t, ok)

		prev, ok, err := st.Stash(ctx, "test", "value1234")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "value123", prev)

		value, ok, err := st.Fetch(ctx, "test")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "value1234", value)
		assert.Equal(t, 1, st.Len(), "overwrite should not duplicate the key")
	})

	t.Run("invalid keys rejected, store unchanged", func(t *testing.T) {
		st := NewLocal()
		for _, key := range []string{"", "invalid key", ":bad", "a::b", "trailing:"} {
			_, _, err := st.Stash(ctx, key, "value")
			require.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
		}
		assert.True(t, st.IsEmpty())
	})
}

func TestLocal_Fetch(t *testing.T) {
	ctx := context.Background()
	st := NewLocal()

	t.Run("missing key", func(t *testing.T) {
		value, ok, err := st.Fetch(ctx, "never:set")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, value)
	})

	t.Run("malformed key misses without error", func(t *testing.T) {
		value, ok, err := st.Fetch(ctx, "not a valid key")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, value)
	})
}

func TestLocal_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete existing keys", func(t *testing.T) {
		st := NewLocal()
		for i := 1; i <= 3; i++ {
			_, _, err := st.Stash(ctx, fmt.Sprintf("key%d", i), fmt.Sprintf("%d", i))
			require.NoError(t, err)
		}
		assert.Equal(t, 3, st.Len())

		removed, ok, err := st.Delete(ctx, "key3")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "3", removed)

		_, ok, err = st.Fetch(ctx, "key3")
		require.NoError(t, err)
		assert.False(t, ok)

		_, _, err = st.Delete(ctx, "key1")
		require.NoError(t, err)
		_, _, err = st.Delete(ctx, "key2")
		require.NoError(t, err)
		assert.True(t, st.IsEmpty())
	})

	t.Run("delete on empty store", func(t *testing.T) {
		st := NewLocal()
		removed, ok, err := st.Delete(ctx, "never:set")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, removed)
	})

	t.Run("delete malformed key is a no-op miss", func(t *testing.T) {
		st := NewLocal()
		_, ok, err := st.Delete(ctx, "bad key")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLocal_Concurrent(t *testing.T) {
	ctx := context.Background()
	st := NewLocal()

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("worker:%d", n)
			_, _, err := st.Stash(ctx, key, fmt.Sprintf("value-%d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// no lost updates, every key independently retrievable
	assert.Equal(t, workers, st.Len())
	for i := 0; i < workers; i++ {
		value, ok, err := st.Fetch(ctx, fmt.Sprintf("worker:%d", i))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, fmt.Sprintf("value-%d", i), value)
	}
}

func TestLocal_ConcurrentMixed(t *testing.T) {
	ctx := context.Background()
	st := NewLocal()

	_, _, err := st.Stash(ctx, "shared", "initial")
	require.NoError(t, err)

	// mixed fetch/stash/delete must not race, run with -race
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_, _, _ = st.Fetch(ctx, "shared")
		}()
		go func(n int) {
			defer wg.Done()
			_, _, _ = st.Stash(ctx, "shared", fmt.Sprintf("v%d", n))
		}(i)
		go func() {
			defer wg.Done()
			_, _, _ = st.Delete(ctx, "shared")
		}()
	}
	wg.Wait()
}
