package requests

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"hrleave/internal/domain/balance"
	"hrleave/internal/platform/querier"
)

type Store struct {
	DB querier.Pool
}

func NewStore(db querier.Pool) *Store {
	return &Store{DB: db}
}

type txStore struct {
	*balance.PGStore
	tx pgx.Tx
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("request tx rollback failed", "err", err)
		}
	}()

	if err := fn(ctx, &txStore{PGStore: balance.NewPGStore(tx), tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (t *txStore) LockRequest(ctx context.Context, id string) (Request, error) {
	return getRequest(ctx, t.tx, id, true)
}

func (t *txStore) InsertRequest(ctx context.Context, r Request) error {
	return insertRequest(ctx, t.tx, r)
}

func (t *txStore) UpdateRequest(ctx context.Context, r Request) error {
	return updateRequest(ctx, t.tx, r)
}
