package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoscapeAi/internal/design"
)

// InMemoryStore keeps designs and credit balances in process memory.
// It backs tests and local development when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	designs  map[string]design.Record
	byShort  map[string]string
	accounts map[string]CreditAccount
	txs      map[string]CreditTransaction
	byIdem   map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		designs:  make(map[string]design.Record),
		byShort:  make(map[string]string),
		accounts: make(map[string]CreditAccount),
		txs:      make(map[string]CreditTransaction),
		byIdem:   make(map[string]string),
	}
}

func (s *InMemoryStore) SaveDesign(_ context.Context, record design.Record) (design.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ShortID == "" {
		record.ShortID = design.NewShortID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.designs[record.ID] = record
	s.byShort[record.ShortID] = record.ID
	return record, nil
}

func (s *InMemoryStore) GetDesign(_ context.Context, shortID string) (design.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byShort[shortID]
	if !ok {
		return design.Record{}, ErrNotFound
	}
	return s.designs[id], nil
}

func (s *InMemoryStore) ListDesigns(_ context.Context, ownerID string) ([]design.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]design.Record, 0, len(s.designs))
	for _, rec := range s.designs {
		if ownerID == "" || rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) DeleteDesign(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.designs[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.designs, id)
	delete(s.byShort, rec.ShortID)
	return nil
}

func (s *InMemoryStore) GetAccount(_ context.Context, userID string) (CreditAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[userID]
	if !ok {
		return CreditAccount{UserID: userID}, nil
	}
	return acct, nil
}

func (s *InMemoryStore) ApplyTransaction(_ context.Context, tx CreditTransaction) (CreditTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.IdempotencyKey != "" {
		if existing, ok := s.byIdem[tx.IdempotencyKey]; ok {
			return s.txs[existing], nil
		}
	}

	delta, err := balanceDelta(tx)
	if err != nil {
		return CreditTransaction{}, err
	}
	acct := s.accounts[tx.UserID]
	acct.UserID = tx.UserID
	if acct.Credits+delta < 0 {
		return CreditTransaction{}, ErrInsufficientCredits
	}
	acct.Credits += delta
	if tx.Type == TxPurchase {
		acct.TotalPurchased += tx.Amount
	}
	s.accounts[tx.UserID] = acct

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.txs[tx.ID] = tx
	if tx.IdempotencyKey != "" {
		s.byIdem[tx.IdempotencyKey] = tx.ID
	}
	return tx, nil
}

func (s *InMemoryStore) UpdateTransactionStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return ErrNotFound
	}
	tx.Status = status
	s.txs[id] = tx
	return nil
}

func (s *InMemoryStore) Close() {}
