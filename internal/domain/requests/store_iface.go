package requests

import (
	"context"

	"hrleave/internal/domain/balance"
)

// TxStore is the view of storage available inside one unit of work.
// LockRequest and the embedded balance GetOrCreate hold their row until
// the unit ends.
type TxStore interface {
	balance.Store
	LockRequest(ctx context.Context, id string) (Request, error)
	InsertRequest(ctx context.Context, r Request) error
	UpdateRequest(ctx context.Context, r Request) error
}

type StoreAPI interface {
	TypeStore
	// InTx runs fn atomically. Any error from fn discards every write.
	InTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
	GetRequest(ctx context.Context, id string) (Request, error)
	ListRequests(ctx context.Context, filter Filter) (ListResult, error)
}
