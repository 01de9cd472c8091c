// Package inmemory provides a map-backed storage driver, used for
// --history memory and in tests.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of conversations
	mu sync.RWMutex

	// conversations is keyed by conversation ID. Values are private copies.
	conversations map[string]*chat.Conversation
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[string]*chat.Conversation),
	}
}

// Put stores a copy of c, replacing any earlier copy.
func (s *Driver) Put(_ context.Context, c *chat.Conversation) error {
	if c == nil {
		return errors.New("cannot store nil conversation")
	}
	if c.ID == "" {
		return errors.New("cannot store conversation without an ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[c.ID] = clone(c)
	return nil
}

// Get retrieves a conversation by its ID.
func (s *Driver) Get(_ context.Context, id string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return clone(c), nil
}

// List returns conversations newest first.
func (s *Driver) List(_ context.Context, limit int) ([]*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*chat.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, clone(c))
	}

	slices.SortFunc(out, func(a, b *chat.Conversation) int {
		if n := b.StartedAt.Compare(a.StartedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a conversation.
func (s *Driver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return storage.NotFoundError{ID: id}
	}
	delete(s.conversations, id)
	return nil
}

// Count returns the number of conversations in the in-memory store.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Close is a no-op for the in-memory storer.
func (s *Driver) Close() error {
	return nil
}

func clone(c *chat.Conversation) *chat.Conversation {
	cp := *c
	cp.Messages = slices.Clone(c.Messages)
	cp.Errors = slices.Clone(c.Errors)
	return &cp
}
