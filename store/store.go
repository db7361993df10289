package store

import (
	"database/sql"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Store is the bun-backed data layer for orders, products, refunds and
// tickets. It is handed to the engine and the tool registry explicitly; there
// is no package-level connection.
type Store struct {
	db *bun.DB
}

type Config struct {
	DatabaseURL string        `envconfig:"DATABASE_URL" split_words:"true" required:"true"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func New(db *bun.DB) *Store {
	db.RegisterModel((*OrderDiscount)(nil))
	return &Store{db: db}
}

// Open dials Postgres and returns a Store plus the underlying bun handle for
// components that need their own queries (the conversation store).
func Open(cfg Config) (*Store, *bun.DB, error) {
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DatabaseURL),
		pgdriver.WithTimeout(cfg.Timeout),
	)
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.Ping(); err != nil {
		return nil, nil, err
	}
	return New(db), db, nil
}
