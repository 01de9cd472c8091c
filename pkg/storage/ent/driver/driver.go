// Package entdriver implements storage.Driver on top of database/sql using
// ent's dialect-aware SQL builder. It is database-agnostic and is embedded by
// the sqlite and postgres drivers.
package entdriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/papercomputeco/shopstream/pkg/chat"
	"github.com/papercomputeco/shopstream/pkg/storage"
)

const (
	table = "conversations"

	colID          = "id"
	colQuery       = "query"
	colStatus      = "status"
	colStartedAt   = "started_at"
	colCompletedAt = "completed_at"
	colBody        = "body"
)

// EntDriver provides storage operations over a *sql.DB for one ent dialect.
type EntDriver struct {
	DB      *sql.DB
	Dialect string
}

// New wraps db and runs ent's auto-migration for the conversations table.
// Migration is append-only: new tables, columns and indexes.
func New(ctx context.Context, db *sql.DB, dialect string) (*EntDriver, error) {
	migrate, err := schema.NewMigrate(entsql.OpenDB(dialect, db))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare migration: %w", err)
	}
	if err := migrate.Create(ctx, Tables...); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &EntDriver{DB: db, Dialect: dialect}, nil
}

// Put upserts a conversation keyed by its ID.
func (ed *EntDriver) Put(ctx context.Context, c *chat.Conversation) error {
	if c == nil {
		return errors.New("cannot store nil conversation")
	}
	if c.ID == "" {
		return errors.New("cannot store conversation without an ID")
	}

	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	var completed int64
	if !c.CompletedAt.IsZero() {
		completed = c.CompletedAt.UnixNano()
	}

	query, args := entsql.Dialect(ed.Dialect).
		Insert(table).
		Columns(colID, colQuery, colStatus, colStartedAt, colCompletedAt, colBody).
		Values(c.ID, c.Query, string(c.Status), c.StartedAt.UnixNano(), completed, string(body)).
		OnConflict(
			entsql.ConflictColumns(colID),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if _, err := ed.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("could not store conversation %s: %w", c.ID, err)
	}
	return nil
}

// Get retrieves a conversation by its ID.
func (ed *EntDriver) Get(ctx context.Context, id string) (*chat.Conversation, error) {
	query, args := entsql.Dialect(ed.Dialect).
		Select(colBody).
		From(entsql.Table(table)).
		Where(entsql.EQ(colID, id)).
		Query()

	var body string
	err := ed.DB.QueryRowContext(ctx, query, args...).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return decode(body)
}

// List returns conversations newest first.
func (ed *EntDriver) List(ctx context.Context, limit int) ([]*chat.Conversation, error) {
	selector := entsql.Dialect(ed.Dialect).
		Select(colBody).
		From(entsql.Table(table)).
		OrderBy(entsql.Desc(colStartedAt), entsql.Asc(colID))
	if limit > 0 {
		selector.Limit(limit)
	}
	query, args := selector.Query()

	rows, err := ed.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []*chat.Conversation
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		c, err := decode(body)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a conversation.
func (ed *EntDriver) Delete(ctx context.Context, id string) error {
	query, args := entsql.Dialect(ed.Dialect).
		Delete(table).
		Where(entsql.EQ(colID, id)).
		Query()

	res, err := ed.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

// Close closes the database connection.
func (ed *EntDriver) Close() error {
	return ed.DB.Close()
}

func decode(body string) (*chat.Conversation, error) {
	c := &chat.Conversation{}
	if err := json.Unmarshal([]byte(body), c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return c, nil
}
