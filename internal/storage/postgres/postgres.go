package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"pickup-service/internal/storage"

	_ "github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// WithTx runs fn inside one transaction. Every capacity mutation goes
// through here; a failure or panic anywhere inside fn rolls back the whole
// unit, so a booking row and its slot counter can never diverge.
func (s *Storage) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	const op = "storage.postgres.WithTx"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	return nil
}

// Tx implements storage.Tx over a live *sql.Tx.
type Tx struct {
	tx *sql.Tx
}
