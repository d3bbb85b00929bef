package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type storeFactory func(t *testing.T) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"yaml": func(t *testing.T) Store {
			s, err := NewYAMLFileStore(filepath.Join(t.TempDir(), "store.yaml"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "store.db"))
			require.NoError(t, err)
			s, err := NewSQLiteStore(dsn)
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			defer func() {
				require.NoError(t, s.Close())
			}()

			v, ok, err := s.Get(ctx, KeyMultilogue)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, "", v)

			require.NoError(t, s.Set(ctx, KeyMultilogue, "user:\nHi"))
			v, ok, err = s.Get(ctx, KeyMultilogue)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "user:\nHi", v)

			swapped, err := s.CompareAndSwap(ctx, KeyMultilogue, "stale", "lost")
			require.NoError(t, err)
			assert.False(t, swapped)
			v, err = GetString(ctx, s, KeyMultilogue)
			require.NoError(t, err)
			assert.Equal(t, "user:\nHi", v)

			swapped, err = s.CompareAndSwap(ctx, KeyMultilogue, "user:\nHi", "user:\nHi\n\ngrok:\nHello")
			require.NoError(t, err)
			assert.True(t, swapped)

			swapped, err = s.CompareAndSwap(ctx, KeyThoughts, "", "first thought")
			require.NoError(t, err)
			assert.True(t, swapped, "absent key compares equal to empty")

			swapped, err = s.CompareAndSwap(ctx, KeyThoughts, "", "second thought")
			require.NoError(t, err)
			assert.False(t, swapped)

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{KeyMultilogue, KeyThoughts}, keys)

			require.NoError(t, s.Delete(ctx, KeyThoughts))
			_, ok, err = s.Get(ctx, KeyThoughts)
			require.NoError(t, err)
			assert.False(t, ok)
			require.NoError(t, s.Delete(ctx, "never-set"))
		})
	}
}

func TestStoreClosed(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			require.NoError(t, s.Close())
			require.NoError(t, s.Close())

			_, _, err := s.Get(ctx, KeyMultilogue)
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, s.Set(ctx, KeyMultilogue, "x"), ErrClosed)
			_, err = s.Subscribe(ctx)
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestStoreSubscribe(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			s := factory(t)
			defer func() {
				_ = s.Close()
			}()

			changes, err := s.Subscribe(ctx)
			require.NoError(t, err)

			require.NoError(t, s.Set(ctx, KeyMultilogue, "user:\nHi"))
			select {
			case c := <-changes:
				assert.Equal(t, Change{Key: KeyMultilogue, Value: "user:\nHi"}, c)
			case <-time.After(5 * time.Second):
				t.Fatal("no change received")
			}

			swapped, err := s.CompareAndSwap(ctx, KeyMultilogue, "nope", "x")
			require.NoError(t, err)
			require.False(t, swapped)

			require.NoError(t, s.Delete(ctx, KeyMultilogue))
			select {
			case c := <-changes:
				assert.Equal(t, Change{Key: KeyMultilogue, Deleted: true}, c, "a failed swap publishes nothing")
			case <-time.After(5 * time.Second):
				t.Fatal("no change received")
			}
		})
	}
}

func TestSubscriptionEndsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewMemoryStore()
	changes, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestYAMLFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "store.yaml")

	s, err := NewYAMLFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyMultilogue, "Alex:\nHello\n\n  indented"))
	require.NoError(t, s.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "values:")

	reopened, err := NewYAMLFileStore(path)
	require.NoError(t, err)
	defer func() {
		_ = reopened.Close()
	}()
	v, err := GetString(ctx, reopened, KeyMultilogue)
	require.NoError(t, err)
	assert.Equal(t, "Alex:\nHello\n\n  indented", v)
}

func TestYAMLFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte("values: [unclosed"), 0o644))
	_, err := NewYAMLFileStore(path)
	assert.Error(t, err)
}

func TestYAMLFileStoreSharedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.yaml")

	a, err := NewYAMLFileStore(path)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	require.NoError(t, a.Set(ctx, KeyMultilogue, "user:\nHi"))

	b, err := NewYAMLFileStore(path)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	require.NoError(t, b.Set(ctx, KeyMultilogue, "user:\nHi\n\nAlex:\nhuman edit"))

	swapped, err := a.CompareAndSwap(ctx, KeyMultilogue, "user:\nHi", "user:\nHi\n\nassistant:\nreply")
	require.NoError(t, err)
	assert.False(t, swapped, "a stale writer must see the change made through the other store")

	v, err := GetString(ctx, a, KeyMultilogue)
	require.NoError(t, err)
	assert.Equal(t, "user:\nHi\n\nAlex:\nhuman edit", v)

	swapped, err = a.CompareAndSwap(ctx, KeyMultilogue, v, v+"\n\nassistant:\nreply")
	require.NoError(t, err)
	assert.True(t, swapped)

	reopened, err := NewYAMLFileStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	v, err = GetString(ctx, reopened, KeyMultilogue)
	require.NoError(t, err)
	assert.Equal(t, "user:\nHi\n\nAlex:\nhuman edit\n\nassistant:\nreply", v)
}

func TestSQLiteStoreSharedFile(t *testing.T) {
	ctx := context.Background()
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)

	a, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := NewSQLiteStore(dsn)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.Set(ctx, KeyMultilogue, "v1"))
	v, err := GetString(ctx, b, KeyMultilogue)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	swapped, err := b.CompareAndSwap(ctx, KeyMultilogue, "v1", "v2")
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = a.CompareAndSwap(ctx, KeyMultilogue, "v1", "v3")
	require.NoError(t, err)
	assert.False(t, swapped, "second writer must see the first writer's change")
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	_, err = Open(Config{Type: "redis"})
	assert.Error(t, err)

	_, err = Open(Config{Type: TypeSQLite})
	assert.Error(t, err)
}
