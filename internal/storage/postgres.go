package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoscapeAi/internal/design"
)

// PostgresStore persists designs and credit ledger entries in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// SaveDesign stores the provided design record.
func (s *PostgresStore) SaveDesign(ctx context.Context, record design.Record) (design.Record, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ShortID == "" {
		record.ShortID = design.NewShortID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	result, err := json.Marshal(record.Result)
	if err != nil {
		return design.Record{}, fmt.Errorf("encode result: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO designs (id, short_id, owner_id, yard_image_url, style, result, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         ON CONFLICT (id) DO UPDATE SET result = EXCLUDED.result`,
		record.ID, record.ShortID, record.OwnerID, record.YardImageURL, record.Style, result, record.CreatedAt); err != nil {
		return design.Record{}, fmt.Errorf("insert design: %w", err)
	}

	return record, nil
}

// GetDesign returns the design identified by its share id.
func (s *PostgresStore) GetDesign(ctx context.Context, shortID string) (design.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, short_id, owner_id, yard_image_url, style, result, created_at FROM designs WHERE short_id = $1`,
		shortID)

	rec, err := scanDesign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return design.Record{}, ErrNotFound
		}
		return design.Record{}, fmt.Errorf("query design: %w", err)
	}
	return rec, nil
}

// ListDesigns returns the most recent designs, optionally scoped to an owner.
func (s *PostgresStore) ListDesigns(ctx context.Context, ownerID string) ([]design.Record, error) {
	query := `SELECT id, short_id, owner_id, yard_image_url, style, result, created_at FROM designs ORDER BY created_at DESC LIMIT 50`
	args := []any{}
	if ownerID != "" {
		query = `SELECT id, short_id, owner_id, yard_image_url, style, result, created_at FROM designs WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 50`
		args = append(args, ownerID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query designs: %w", err)
	}
	defer rows.Close()

	records := []design.Record{}
	for rows.Next() {
		rec, err := scanDesign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DeleteDesign removes a design by primary id.
func (s *PostgresStore) DeleteDesign(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM designs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete design: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAccount returns the credit account for a user, zero-valued if absent.
func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (CreditAccount, error) {
	acct := CreditAccount{UserID: userID}
	err := s.pool.QueryRow(ctx,
		`SELECT credits, free_credits_used, total_purchased FROM credit_accounts WHERE user_id = $1`,
		userID).Scan(&acct.Credits, &acct.FreeCreditsUsed, &acct.TotalPurchased)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return acct, nil
		}
		return CreditAccount{}, fmt.Errorf("query account: %w", err)
	}
	return acct, nil
}

// ApplyTransaction records a ledger entry and adjusts the balance atomically.
// A repeated idempotency key returns the original entry without re-applying.
func (s *PostgresStore) ApplyTransaction(ctx context.Context, txn CreditTransaction) (CreditTransaction, error) {
	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return CreditTransaction{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer dbtx.Rollback(ctx)

	if txn.IdempotencyKey != "" {
		existing := CreditTransaction{}
		err := dbtx.QueryRow(ctx,
			`SELECT id, user_id, type, amount, idempotency_key, status, created_at FROM credit_transactions WHERE idempotency_key = $1`,
			txn.IdempotencyKey).Scan(&existing.ID, &existing.UserID, &existing.Type, &existing.Amount, &existing.IdempotencyKey, &existing.Status, &existing.CreatedAt)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return CreditTransaction{}, fmt.Errorf("query transaction: %w", err)
		}
	}

	delta, err := balanceDelta(txn)
	if err != nil {
		return CreditTransaction{}, err
	}

	var balance int
	err = dbtx.QueryRow(ctx,
		`INSERT INTO credit_accounts (user_id, credits, total_purchased)
         VALUES ($1, $2, $3)
         ON CONFLICT (user_id) DO UPDATE SET
             credits = credit_accounts.credits + $2,
             total_purchased = credit_accounts.total_purchased + $3
         RETURNING credits`,
		txn.UserID, delta, purchaseAmount(txn)).Scan(&balance)
	if err != nil {
		return CreditTransaction{}, fmt.Errorf("update balance: %w", err)
	}
	if balance < 0 {
		return CreditTransaction{}, ErrInsufficientCredits
	}

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	if _, err := dbtx.Exec(ctx,
		`INSERT INTO credit_transactions (id, user_id, type, amount, idempotency_key, status, created_at)
         VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.IdempotencyKey, txn.Status, txn.CreatedAt); err != nil {
		return CreditTransaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return CreditTransaction{}, fmt.Errorf("commit transaction: %w", err)
	}
	return txn, nil
}

// UpdateTransactionStatus transitions a ledger entry to a new status.
func (s *PostgresStore) UpdateTransactionStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE credit_transactions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func purchaseAmount(txn CreditTransaction) int {
	if txn.Type == TxPurchase {
		return txn.Amount
	}
	return 0
}

func scanDesign(row pgx.Row) (design.Record, error) {
	var rec design.Record
	var result []byte
	if err := row.Scan(&rec.ID, &rec.ShortID, &rec.OwnerID, &rec.YardImageURL, &rec.Style, &result, &rec.CreatedAt); err != nil {
		return design.Record{}, err
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &rec.Result); err != nil {
			return design.Record{}, fmt.Errorf("decode result: %w", err)
		}
	}
	return rec, nil
}
