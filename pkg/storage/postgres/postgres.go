// Package postgres provides a PostgreSQL-backed storage driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx PostgreSQL driver as "pgx"

	entdriver "github.com/papercomputeco/shopstream/pkg/storage/ent/driver"
)

// Driver implements storage.Driver using PostgreSQL via the ent driver.
type Driver struct {
	*entdriver.EntDriver
}

// NewDriver creates a new PostgreSQL-backed storer.
// The connStr is a PostgreSQL connection string, e.g.
// "host=localhost port=5432 user=shopstream dbname=shopstream sslmode=disable"
// or a connection URI like "postgres://shopstream@localhost:5432/shopstream?sslmode=disable".
func NewDriver(ctx context.Context, connStr string) (*Driver, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify the connection is reachable
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ed, err := entdriver.New(ctx, db, dialect.Postgres)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{EntDriver: ed}, nil
}
