package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Metadata keys written by the engines. Direction distinguishes the sender
// and recipient rows of a transfer, which otherwise share type and amount.
const (
	MetaDirection   = "direction"
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

type inMemoryStore struct {
	mu            sync.RWMutex
	wallets       map[string]Wallet
	walletsByUser map[string]string
	txByReference map[string]Transaction
	txOrder       []string
}

// NewInMemory creates a concurrency-safe in-memory store. The single mutex is
// the per-wallet serialization point required for check-then-debit sequences.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:       make(map[string]Wallet),
		walletsByUser: make(map[string]string),
		txByReference: make(map[string]Transaction),
	}
}

func (s *inMemoryStore) CreateWallet(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.ID]; exists {
		return ErrDuplicateReference
	}
	if _, exists := s.walletsByUser[w.UserID]; exists {
		return ErrDuplicateReference
	}
	s.wallets[w.ID] = w
	s.walletsByUser[w.UserID] = w.ID
	return nil
}

func (s *inMemoryStore) Wallet(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *inMemoryStore) WalletByUser(_ context.Context, userID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.walletsByUser[userID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.wallets[id], nil
}

func (s *inMemoryStore) Post(_ context.Context, p Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole posting before touching any state.
	deltas := make(map[string]decimal.Decimal)
	for _, e := range p.Entries {
		deltas[e.WalletID] = deltas[e.WalletID].Add(e.Amount)
	}
	for walletID, delta := range deltas {
		w, ok := s.wallets[walletID]
		if !ok {
			return ErrWalletNotFound
		}
		if !w.IsActive {
			return ErrWalletInactive
		}
		if w.Balance.Add(delta).IsNegative() {
			return ErrInsufficientFunds
		}
	}

	seen := make(map[string]struct{}, len(p.Records))
	for _, rec := range p.Records {
		if _, dup := s.txByReference[rec.Reference]; dup {
			return ErrDuplicateReference
		}
		if _, dup := seen[rec.Reference]; dup {
			return ErrDuplicateReference
		}
		seen[rec.Reference] = struct{}{}
	}

	for _, u := range p.Updates {
		existing, ok := s.txByReference[u.Reference]
		if !ok || existing.Status != StatusPending {
			return ErrTransactionNotFound
		}
	}

	for walletID, delta := range deltas {
		w := s.wallets[walletID]
		w.Balance = w.Balance.Add(delta)
		s.wallets[walletID] = w
	}
	for _, rec := range p.Records {
		rec.Metadata = copyMetadata(rec.Metadata)
		s.txByReference[rec.Reference] = rec
		s.txOrder = append(s.txOrder, rec.Reference)
	}
	for _, u := range p.Updates {
		tx := s.txByReference[u.Reference]
		tx.Status = u.Status
		s.txByReference[u.Reference] = tx
	}
	return nil
}

func (s *inMemoryStore) TransactionByReference(_ context.Context, reference string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txByReference[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	tx.Metadata = copyMetadata(tx.Metadata)
	return tx, nil
}

func (s *inMemoryStore) TransactionsByUser(_ context.Context, userID string, limit int) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transaction
	for i := len(s.txOrder) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		tx := s.txByReference[s.txOrder[i]]
		if tx.UserID == userID {
			tx.Metadata = copyMetadata(tx.Metadata)
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *inMemoryStore) CompletedTransferTotalSince(_ context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, tx := range s.txByReference {
		if tx.UserID != userID || tx.Type != TxTransfer || tx.Status != StatusCompleted {
			continue
		}
		if tx.Metadata[MetaDirection] == DirectionCredit {
			continue
		}
		if tx.CreatedAt.Before(since) {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total, nil
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
