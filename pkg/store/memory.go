package store

import (
	"context"
	"sort"
	"sync"
)

// persistFunc writes the full set of values to durable storage. It is called
// with the store lock held after every mutation; an error rolls the mutation back.
type persistFunc func(values map[string]string) error

// restoreFunc locks durable storage and returns the values it currently holds,
// together with the function releasing the lock. Exclusive locks are taken for
// mutations.
type restoreFunc func(exclusive bool) (values map[string]string, unlock func(), err error)

// MemoryStore is a thread-safe in-process Store. File-backed stores reuse it
// with a restore and a persist hook, so every operation sees what is on disk.
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string]string
	feed    *changeFeed
	persist persistFunc
	restore restoreFunc
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: map[string]string{},
		feed:   newChangeFeed(),
	}
}

// NewMemoryStoreWithValues seeds the store, mostly for tests.
func NewMemoryStoreWithValues(values map[string]string) *MemoryStore {
	s := NewMemoryStore()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// begin takes the store lock and, for file-backed stores, the durable lock,
// reloading the values. The returned function releases both.
func (s *MemoryStore) begin(exclusive bool) (func(), error) {
	if s.restore == nil {
		if exclusive {
			s.mu.Lock()
			return s.mu.Unlock, s.checkOpen()
		}
		s.mu.RLock()
		return s.mu.RUnlock, s.checkOpen()
	}

	s.mu.Lock()
	if err := s.checkOpen(); err != nil {
		return s.mu.Unlock, err
	}
	values, unlock, err := s.restore(exclusive)
	if err != nil {
		return s.mu.Unlock, err
	}
	s.values = values
	return func() {
		unlock()
		s.mu.Unlock()
	}, nil
}

func (s *MemoryStore) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	end, err := s.begin(false)
	defer end()
	if err != nil {
		return "", false, err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value string) error {
	end, err := s.begin(true)
	if err == nil {
		err = s.applyLocked(key, value, false)
	}
	end()
	if err != nil {
		return err
	}

	s.feed.publish(Change{Key: key, Value: value})
	return nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, key string, old string, value string) (bool, error) {
	end, err := s.begin(true)
	if err != nil {
		end()
		return false, err
	}
	if s.values[key] != old {
		end()
		return false, nil
	}
	err = s.applyLocked(key, value, false)
	end()
	if err != nil {
		return false, err
	}

	s.feed.publish(Change{Key: key, Value: value})
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	end, err := s.begin(true)
	if err != nil {
		end()
		return err
	}
	if _, ok := s.values[key]; !ok {
		end()
		return nil
	}
	err = s.applyLocked(key, "", true)
	end()
	if err != nil {
		return err
	}

	s.feed.publish(Change{Key: key, Deleted: true})
	return nil
}

func (s *MemoryStore) applyLocked(key string, value string, deleted bool) error {
	prev, existed := s.values[key]
	if deleted {
		delete(s.values, key)
	} else {
		s.values[key] = value
	}
	if s.persist == nil {
		return nil
	}
	if err := s.persist(s.snapshotLocked()); err != nil {
		if existed {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	end, err := s.begin(false)
	defer end()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context) (<-chan Change, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return s.feed.subscribe(ctx)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.feed.close()
}

func (s *MemoryStore) snapshotLocked() map[string]string {
	ret := make(map[string]string, len(s.values))
	for k, v := range s.values {
		ret[k] = v
	}
	return ret
}

var _ Store = (*MemoryStore)(nil)
