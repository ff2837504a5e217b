package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"autoscapeAi/internal/design"
)

// ErrNotFound indicates that a design or account could not be located.
var ErrNotFound = errors.New("record not found")

// ErrInsufficientCredits indicates a debit larger than the balance.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Credit transaction types.
const (
	TxPurchase   = "purchase"
	TxUse        = "use"
	TxRefund     = "refund"
	TxReserve    = "reserve"
	TxRelease    = "release"
	TxAdminGrant = "admin_grant"
)

// Credit transaction statuses.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxReversed  = "reversed"
)

// CreditAccount tracks a user's generation credits.
type CreditAccount struct {
	UserID          string `json:"user_id"`
	Credits         int    `json:"credits"`
	FreeCreditsUsed int    `json:"free_credits_used"`
	TotalPurchased  int    `json:"total_purchased"`
}

// CreditTransaction is one ledger entry. IdempotencyKey deduplicates
// retried submissions of the same logical operation.
type CreditTransaction struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Type           string    `json:"type"`
	Amount         int       `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store defines the persistence behaviors the application relies on.
type Store interface {
	SaveDesign(ctx context.Context, record design.Record) (design.Record, error)
	GetDesign(ctx context.Context, shortID string) (design.Record, error)
	ListDesigns(ctx context.Context, ownerID string) ([]design.Record, error)
	DeleteDesign(ctx context.Context, id string) error

	GetAccount(ctx context.Context, userID string) (CreditAccount, error)
	ApplyTransaction(ctx context.Context, tx CreditTransaction) (CreditTransaction, error)
	UpdateTransactionStatus(ctx context.Context, id, status string) error
	Close()
}

// NewStore selects a backing store based on whether a database URL is provided.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// balanceDelta maps a transaction type to its effect on the credit balance.
func balanceDelta(tx CreditTransaction) (int, error) {
	switch tx.Type {
	case TxPurchase, TxAdminGrant, TxRefund, TxRelease:
		return tx.Amount, nil
	case TxUse, TxReserve:
		return -tx.Amount, nil
	default:
		return 0, fmt.Errorf("unknown transaction type %q", tx.Type)
	}
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS designs (
        id TEXT PRIMARY KEY,
        short_id TEXT UNIQUE NOT NULL,
        owner_id TEXT,
        yard_image_url TEXT,
        style TEXT,
        result JSONB NOT NULL DEFAULT '{}'::jsonb,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
		`CREATE TABLE IF NOT EXISTS credit_accounts (
        user_id TEXT PRIMARY KEY,
        credits INTEGER NOT NULL DEFAULT 0,
        free_credits_used INTEGER NOT NULL DEFAULT 0,
        total_purchased INTEGER NOT NULL DEFAULT 0
    )`,
		`CREATE TABLE IF NOT EXISTS credit_transactions (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        type TEXT NOT NULL,
        amount INTEGER NOT NULL,
        idempotency_key TEXT UNIQUE,
        status TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
		`CREATE INDEX IF NOT EXISTS designs_owner_idx ON designs (owner_id, created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
