// Package credits implements the reserve/complete/refund protocol that
// charges a generation credit before the pipeline runs and returns it when
// the run fails.
package credits

import (
	"context"
	"fmt"

	"autoscapeAi/internal/storage"
)

// GenerationCost is the number of credits one design run consumes.
const GenerationCost = 1

// Ledger wraps the store's transaction log with the two-phase spend used by
// design generation.
type Ledger struct {
	store storage.Store
}

func NewLedger(store storage.Store) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	acct, err := l.store.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acct.Credits, nil
}

// Grant adds credits to an account, for purchases and promotional grants.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int, txType, idempotencyKey string) error {
	if txType != storage.TxPurchase && txType != storage.TxAdminGrant {
		return fmt.Errorf("grant with transaction type %q", txType)
	}
	_, err := l.store.ApplyTransaction(ctx, storage.CreditTransaction{
		UserID:         userID,
		Type:           txType,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
		Status:         storage.TxCompleted,
	})
	return err
}

// Reserve debits the generation cost up front and returns the pending
// transaction id. The caller must settle it with Complete or Refund.
func (l *Ledger) Reserve(ctx context.Context, userID, idempotencyKey string) (string, error) {
	txn, err := l.store.ApplyTransaction(ctx, storage.CreditTransaction{
		UserID:         userID,
		Type:           storage.TxReserve,
		Amount:         GenerationCost,
		IdempotencyKey: idempotencyKey,
		Status:         storage.TxPending,
	})
	if err != nil {
		return "", err
	}
	return txn.ID, nil
}

// Complete settles a reservation after a successful run. The debit stands.
func (l *Ledger) Complete(ctx context.Context, reservationID string) error {
	return l.store.UpdateTransactionStatus(ctx, reservationID, storage.TxCompleted)
}

// Refund reverses a reservation after a failed run, crediting the amount
// back. The release entry carries a derived idempotency key so a retried
// refund of the same reservation credits at most once.
func (l *Ledger) Refund(ctx context.Context, userID, reservationID string) error {
	if _, err := l.store.ApplyTransaction(ctx, storage.CreditTransaction{
		UserID:         userID,
		Type:           storage.TxRelease,
		Amount:         GenerationCost,
		IdempotencyKey: "release:" + reservationID,
		Status:         storage.TxCompleted,
	}); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return l.store.UpdateTransactionStatus(ctx, reservationID, storage.TxReversed)
}
