// Package storage defines the conversation history backends used by
// shopstream commands.
package storage

import (
	"context"

	"github.com/papercomputeco/shopstream/pkg/chat"
)

// Driver defines the interface for persisting and retrieving conversations
// in a storage backend.
type Driver interface {
	// Put stores a conversation, replacing any earlier copy with the same ID.
	// A conversation is saved while it streams and again once it completes.
	Put(ctx context.Context, c *chat.Conversation) error

	// Get retrieves a conversation by its ID.
	Get(ctx context.Context, id string) (*chat.Conversation, error)

	// List returns conversations newest first. A limit of zero or less
	// returns all of them.
	List(ctx context.Context, limit int) ([]*chat.Conversation, error)

	// Delete removes a conversation. Deleting an unknown ID is an error.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
