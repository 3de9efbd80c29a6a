package runtime

import (
	"crypto/ed25519"
	"sync"

	"github.com/code-payments/token-manager-server/pkg/solana"
)

// lockTable tracks the accounts held by in-flight transactions. Writable
// accounts are held exclusively and readonly accounts are shared. Acquisition
// never blocks: a conflict fails the transaction with AccountInUse and the
// client is expected to retry.
type lockTable struct {
	mu       sync.Mutex
	writable map[string]struct{}
	readonly map[string]int
}

func newLockTable() *lockTable {
	return &lockTable{
		writable: make(map[string]struct{}),
		readonly: make(map[string]int),
	}
}

func (t *lockTable) lock(writable, readonly []ed25519.PublicKey) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range writable {
		if _, ok := t.writable[string(key)]; ok {
			return solana.TransactionErrorAccountInUse
		}
		if t.readonly[string(key)] > 0 {
			return solana.TransactionErrorAccountInUse
		}
	}
	for _, key := range readonly {
		if _, ok := t.writable[string(key)]; ok {
			return solana.TransactionErrorAccountInUse
		}
	}

	for _, key := range writable {
		t.writable[string(key)] = struct{}{}
	}
	for _, key := range readonly {
		t.readonly[string(key)]++
	}
	return nil
}

func (t *lockTable) unlock(writable, readonly []ed25519.PublicKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, key := range writable {
		delete(t.writable, string(key))
	}
	for _, key := range readonly {
		t.readonly[string(key)]--
		if t.readonly[string(key)] <= 0 {
			delete(t.readonly, string(key))
		}
	}
}
