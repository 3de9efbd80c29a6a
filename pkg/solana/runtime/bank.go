package runtime

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
	"sync"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/computebudget"
	"github.com/code-payments/token-manager-server/pkg/solana/memo"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
)

const (
	// DefaultLamportsPerSignature is the base fee charged per transaction signature.
	DefaultLamportsPerSignature = 5000

	// MaxProcessingAge is the number of slots a blockhash remains valid for.
	//
	// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/clock.rs#L133
	MaxProcessingAge = 150
)

// Bank is an in-process ledger that executes transactions against an account
// store. Transactions that touch disjoint writable accounts may execute
// concurrently. A failed transaction leaves no trace: no fee is charged and no
// signature status is recorded.
type Bank struct {
	log                  *logrus.Entry
	rent                 system.Rent
	lamportsPerSignature uint64

	locks *lockTable

	programsMu sync.RWMutex
	programs   map[string]Program

	mu          sync.RWMutex
	accounts    map[string]*Account
	slot        uint64
	blockhash   solana.Blockhash
	blockhashes map[solana.Blockhash]uint64
	statuses    map[solana.Signature]*solana.SignatureStatus
}

type Option func(b *Bank)

// WithRent overrides the default rent configuration.
func WithRent(rent system.Rent) Option {
	return func(b *Bank) {
		b.rent = rent
	}
}

// WithLamportsPerSignature overrides the base signature fee.
func WithLamportsPerSignature(lamports uint64) Option {
	return func(b *Bank) {
		b.lamportsPerSignature = lamports
	}
}

// WithProgram registers an additional program at genesis.
func WithProgram(id ed25519.PublicKey, program Program) Option {
	return func(b *Bank) {
		b.RegisterProgram(id, program)
	}
}

// New returns a bank at slot zero with the native programs and the rent
// sysvar loaded.
func New(opts ...Option) *Bank {
	b := &Bank{
		log:                  logrus.StandardLogger().WithField("type", "solana/runtime"),
		rent:                 system.DefaultRent,
		lamportsPerSignature: DefaultLamportsPerSignature,
		locks:                newLockTable(),
		programs:             make(map[string]Program),
		accounts:             make(map[string]*Account),
		blockhashes:          make(map[solana.Blockhash]uint64),
		statuses:             make(map[solana.Signature]*solana.SignatureStatus),
	}

	b.blockhash = sha256.Sum256([]byte("genesis"))
	b.blockhashes[b.blockhash] = 0

	b.RegisterProgram(system.ProgramKey[:], ProgramFunc(processSystem))
	b.RegisterProgram(token.ProgramKey, ProgramFunc(processToken))
	b.RegisterProgram(token.AssociatedTokenAccountProgramKey, ProgramFunc(processAssociatedToken))
	b.RegisterProgram(memo.ProgramKey, ProgramFunc(processMemo))
	b.RegisterProgram(computebudget.ProgramKey, ProgramFunc(processComputeBudget))

	for _, opt := range opts {
		opt(b)
	}

	// The sysvar reflects the final rent configuration.
	b.accounts[string(system.RentSysVar)] = &Account{
		Lamports: b.rent.MinimumBalance(system.RentSize),
		Data:     b.rent.Marshal(),
		Owner:    system.SysvarOwner,
	}

	return b
}

// RegisterProgram loads an executable account for program at id.
func (b *Bank) RegisterProgram(id ed25519.PublicKey, program Program) {
	b.programsMu.Lock()
	b.programs[string(id)] = program
	b.programsMu.Unlock()

	b.mu.Lock()
	b.accounts[string(id)] = &Account{
		Lamports:   1,
		Owner:      NativeLoader,
		Executable: true,
	}
	b.mu.Unlock()
}

func (b *Bank) getProgram(id ed25519.PublicKey) (Program, bool) {
	b.programsMu.RLock()
	defer b.programsMu.RUnlock()

	p, ok := b.programs[string(id)]
	return p, ok
}

// Rent returns the bank's rent configuration.
func (b *Bank) Rent() system.Rent {
	return b.rent
}

// Slot returns the current slot.
func (b *Bank) Slot() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.slot
}

// Blockhash returns the most recent blockhash.
func (b *Bank) Blockhash() solana.Blockhash {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.blockhash
}

// AdvanceSlots moves the bank forward n slots, producing a blockhash for each.
func (b *Bank) AdvanceSlots(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := uint64(0); i < n; i++ {
		b.advance()
	}
}

// GetAccount returns a copy of the account at key, if it exists.
func (b *Bank) GetAccount(key ed25519.PublicKey) (*Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, ok := b.accounts[string(key)]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// SetAccount overwrites the account at key, bypassing execution. It is meant
// for seeding state in tests and local environments.
func (b *Bank) SetAccount(key ed25519.PublicKey, account *Account) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if account == nil || account.Lamports == 0 {
		delete(b.accounts, string(key))
		return
	}
	b.accounts[string(key)] = account.Clone()
}

// Airdrop credits lamports to key, creating a system account if needed.
func (b *Bank) Airdrop(key ed25519.PublicKey, lamports uint64) (solana.Signature, error) {
	var sig solana.Signature
	if _, err := rand.Read(sig[:]); err != nil {
		return sig, errors.Wrap(err, "failed to generate signature")
	}

	writable := []ed25519.PublicKey{key}
	if err := b.locks.lock(writable, nil); err != nil {
		return sig, solana.NewTransactionError(solana.TransactionErrorAccountInUse)
	}
	defer b.locks.unlock(writable, nil)

	b.mu.Lock()
	defer b.mu.Unlock()

	account, ok := b.accounts[string(key)]
	if !ok {
		account = newEmptyAccount()
	} else {
		account = account.Clone()
	}

	var carry uint64
	account.Lamports, carry = bits.Add64(account.Lamports, lamports, 0)
	if carry != 0 {
		return sig, errors.New("airdrop overflows account balance")
	}
	if account.Lamports == 0 {
		return sig, errors.New("airdrop of zero lamports")
	}

	b.accounts[string(key)] = account
	b.statuses[sig] = b.newStatus()
	b.advance()

	b.log.WithFields(logrus.Fields{
		"method":   "Airdrop",
		"account":  base58.Encode(key),
		"lamports": lamports,
	}).Debug("airdrop processed")

	return sig, nil
}

// advance must be called with mu held.
func (b *Bank) advance() {
	b.slot++

	var slot [8]byte
	binary.LittleEndian.PutUint64(slot[:], b.slot)

	h := sha256.New()
	h.Write(b.blockhash[:])
	h.Write(slot[:])
	copy(b.blockhash[:], h.Sum(nil))
	b.blockhashes[b.blockhash] = b.slot

	if b.slot > MaxProcessingAge {
		for hash, s := range b.blockhashes {
			if s+MaxProcessingAge < b.slot {
				delete(b.blockhashes, hash)
			}
		}
	}
}

// isBlockhashValid must be called with mu held.
func (b *Bank) isBlockhashValid(hash solana.Blockhash) bool {
	slot, ok := b.blockhashes[hash]
	return ok && slot+MaxProcessingAge >= b.slot
}

// newStatus must be called with mu held.
func (b *Bank) newStatus() *solana.SignatureStatus {
	return &solana.SignatureStatus{
		Slot:               b.slot,
		ConfirmationStatus: solana.CommitmentFinalized.Commitment,
	}
}
