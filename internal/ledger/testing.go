package ledger

import "github.com/shopspring/decimal"

// SeedBalance sets a wallet balance directly when using the in-memory store.
// Test helper only.
func SeedBalance(s Store, walletID string, amount decimal.Decimal) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[walletID]
		w.Balance = amount
		mem.wallets[walletID] = w
	}
}

// Deactivate closes a wallet to postings when using the in-memory store.
// Test helper only.
func Deactivate(s Store, walletID string) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[walletID]
		w.IsActive = false
		mem.wallets[walletID] = w
	}
}
