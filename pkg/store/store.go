// Package store persists the dialogue text and the thoughts channel as string
// values under fixed keys, and publishes every change so displays can refresh.
package store

import (
	"context"

	"github.com/pkg/errors"
)

const (
	// KeyMultilogue holds the Plato text of the dialogue.
	KeyMultilogue = "multilogue"
	// KeyThoughts holds the latest reasoning text of the machine.
	KeyThoughts = "thoughts"
)

var (
	ErrClosed   = errors.New("store is closed")
	ErrConflict = errors.New("value changed concurrently")
)

// Change is published after a key was written or deleted.
type Change struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Store is a string key/value store. An absent key reads as ("", false).
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	// CompareAndSwap writes value only if the current value equals old. An
	// absent key compares equal to "".
	CompareAndSwap(ctx context.Context, key string, old string, value string) (bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	// Subscribe delivers changes until ctx is done or the store is closed.
	Subscribe(ctx context.Context) (<-chan Change, error)
	Close() error
}

// GetString returns the value of key or "" when absent.
func GetString(ctx context.Context, s Store, key string) (string, error) {
	v, _, err := s.Get(ctx, key)
	return v, err
}
