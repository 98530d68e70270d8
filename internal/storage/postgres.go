package storage

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to PostgreSQL and verifies connectivity
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{sqlStore{db: db, logger: logger}}, nil
}

// Migrate applies the schema; statements are idempotent
func (s *PostgresStore) Migrate() error {
	if _, err := s.db.Exec(SchemaPostgres); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}
