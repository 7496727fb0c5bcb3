// internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"finance-tracker/internal/domain"
)

// Cursor marks a position in the (occurred_on desc, id desc) transaction order.
type Cursor struct {
	OccurredOn time.Time
	ID         int64
}

// TransactionFilter selects a user's transactions. Zero fields match everything.
// To is exclusive.
type TransactionFilter struct {
	From          time.Time
	To            time.Time
	Kind          domain.Kind
	CategoryID    int64
	PaymentMethod string
	After         *Cursor
	Limit         int
	Offset        int
}

// Purged counts what DeleteAll removed.
type Purged struct {
	Transactions int `json:"transactions"`
	Categories   int `json:"categories"`
	Positions    int `json:"positions"`
	Lots         int `json:"lots"`
}

// Tx is a unit of work scoped to a single user. Records owned by other users
// are invisible: looking them up yields domain.ErrNotFound.
type Tx interface {
	GetCategory(ctx context.Context, id int64) (domain.Category, error)
	ListCategories(ctx context.Context, kind domain.Kind) ([]domain.Category, error)
	UpsertCategory(ctx context.Context, c domain.Category) (domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CountTransactions(ctx context.Context, categoryID int64) (int, error)
	ReassignTransactions(ctx context.Context, fromCategory, toCategory int64) (int, error)

	GetTransaction(ctx context.Context, id int64) (domain.Transaction, error)
	// ListTransactions orders by occurred_on desc, then id desc.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error)
	UpsertTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	GetPosition(ctx context.Context, ticker string) (domain.Position, error)
	// ListPositions orders by ticker.
	ListPositions(ctx context.Context) ([]domain.Position, error)
	UpsertPosition(ctx context.Context, p domain.Position) (domain.Position, error)
	AppendLot(ctx context.Context, e domain.LotEvent) (domain.LotEvent, error)
	// ListLots orders by occurred_on, then id. An empty ticker lists all lots.
	ListLots(ctx context.Context, ticker string) ([]domain.LotEvent, error)

	// DeleteAll removes every record of the user.
	DeleteAll(ctx context.Context) (Purged, error)
}

// Store is the transactional boundary. Update commits when fn returns nil and
// rolls back otherwise; writers for the same user are serialized. View sees a
// consistent snapshot and never observes a partial Update.
type Store interface {
	Update(ctx context.Context, user domain.UserID, fn func(tx Tx) error) error
	View(ctx context.Context, user domain.UserID, fn func(tx Tx) error) error
}
