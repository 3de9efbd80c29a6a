package runtime

import (
	"bytes"
	"crypto/ed25519"
	"sort"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
)

// Client returns a solana.Client backed by the bank. Every commitment level
// is satisfied as soon as a transaction is processed.
func (b *Bank) Client() solana.Client {
	return &client{bank: b}
}

type client struct {
	bank *Bank
}

func (c *client) GetAccountInfo(key ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	account, ok := c.bank.GetAccount(key)
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	return solana.AccountInfo{
		Data:       account.Data,
		Owner:      account.Owner,
		Lamports:   account.Lamports,
		Executable: account.Executable,
	}, nil
}

func (c *client) GetBalance(key ed25519.PublicKey) (uint64, error) {
	account, ok := c.bank.GetAccount(key)
	if !ok {
		return 0, nil
	}
	return account.Lamports, nil
}

func (c *client) GetFilteredProgramAccounts(program ed25519.PublicKey, offset uint, filterValue []byte) ([]string, uint64, error) {
	c.bank.mu.RLock()
	defer c.bank.mu.RUnlock()

	var res []string
	for key, account := range c.bank.accounts {
		if !account.IsOwnedBy(program) {
			continue
		}

		end := int(offset) + len(filterValue)
		if end > len(account.Data) || !bytes.Equal(account.Data[offset:end], filterValue) {
			continue
		}

		res = append(res, base58.Encode([]byte(key)))
	}
	sort.Strings(res)

	return res, c.bank.slot, nil
}

func (c *client) GetLatestBlockhash() (solana.Blockhash, error) {
	return c.bank.Blockhash(), nil
}

func (c *client) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	return c.bank.rent.MinimumBalance(size), nil
}

func (c *client) GetSignatureStatus(sig solana.Signature, _ solana.Commitment) (*solana.SignatureStatus, error) {
	statuses, err := c.GetSignatureStatuses([]solana.Signature{sig})
	if err != nil {
		return nil, err
	}
	if statuses[0] == nil {
		return nil, solana.ErrSignatureNotFound
	}
	return statuses[0], nil
}

func (c *client) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.bank.mu.RLock()
	defer c.bank.mu.RUnlock()

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if status, ok := c.bank.statuses[sig]; ok {
			clone := *status
			statuses[i] = &clone
		}
	}
	return statuses, nil
}

func (c *client) GetSlot(_ solana.Commitment) (uint64, error) {
	return c.bank.Slot(), nil
}

func (c *client) GetTokenAccountBalance(key ed25519.PublicKey) (uint64, uint64, error) {
	c.bank.mu.RLock()
	defer c.bank.mu.RUnlock()

	account, ok := c.bank.accounts[string(key)]
	if !ok || !account.IsOwnedBy(token.ProgramKey) {
		return 0, 0, solana.ErrNoBalance
	}

	var tokenAccount token.Account
	if !tokenAccount.Unmarshal(account.Data) || !tokenAccount.IsInitialized() {
		return 0, 0, solana.ErrNoBalance
	}
	return tokenAccount.Amount, c.bank.slot, nil
}

func (c *client) RequestAirdrop(key ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	return c.bank.Airdrop(key, lamports)
}

func (c *client) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	return c.bank.ProcessTransaction(txn)
}
