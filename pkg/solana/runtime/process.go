package runtime

import (
	"crypto/ed25519"
	"math/bits"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/computebudget"
)

// ProcessTransaction executes txn atomically. On failure the returned error
// is a *solana.TransactionError and the bank is left untouched.
func (b *Bank) ProcessTransaction(txn solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	if len(txn.Signatures) > 0 {
		sig = txn.Signatures[0]
	}

	log := b.log.WithFields(logrus.Fields{
		"method":    "ProcessTransaction",
		"signature": sig.ToBase58(),
	})

	if err := txn.VerifySignatures(); err != nil {
		log.WithError(err).Debug("transaction rejected")
		if errors.Is(err, solana.ErrMalformedMessage) {
			return sig, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
		}
		return sig, solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
	}

	instructions, err := txn.Message.DecompileInstructions()
	if err != nil {
		return sig, solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	budget, err := computebudget.ParseBudget(instructions)
	if err != nil {
		return sig, toTransactionError(err)
	}

	var writable, readonly []ed25519.PublicKey
	for i, key := range txn.Message.Accounts {
		if txn.Message.IsWritable(i) {
			writable = append(writable, key)
		} else {
			readonly = append(readonly, key)
		}
	}

	if err := b.locks.lock(writable, readonly); err != nil {
		log.Debug("account in use")
		return sig, solana.NewTransactionError(solana.TransactionErrorAccountInUse)
	}
	defer b.locks.unlock(writable, readonly)

	tx, err := b.load(txn, budget)
	if err != nil {
		log.WithError(err).Debug("transaction failed to load")
		return sig, toTransactionError(err)
	}

	for i, ix := range instructions {
		program, _ := b.getProgram(ix.Program)

		accounts := make([]AccountInfo, len(ix.Accounts))
		for j, meta := range ix.Accounts {
			accounts[j] = AccountInfo{
				Key:        meta.PublicKey,
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
				Account:    tx.accounts[string(meta.PublicKey)],
			}
		}

		frame := tx.newFrame(ix.Program, accounts, 0)
		if err := frame.process(program, ix.Data); err != nil {
			txErr := toTransactionError(solana.NewInstructionError(i, err))
			log.WithError(txErr).Debug("transaction failed")
			return sig, txErr
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Checked again under the write lock: an identical transaction may have
	// committed while this one was loading.
	if _, ok := b.statuses[sig]; ok {
		return sig, solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}

	for _, key := range writable {
		account := tx.accounts[string(key)]
		if account.Lamports == 0 {
			delete(b.accounts, string(key))
			continue
		}
		b.accounts[string(key)] = account
	}

	b.statuses[sig] = b.newStatus()
	b.advance()

	log.WithField("slot", b.slot).Debug("transaction processed")
	return sig, nil
}

// load resolves the transaction's accounts into a working set and charges the
// fee against it.
func (b *Bank) load(txn solana.Transaction, budget *computebudget.Budget) (*txContext, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sig := txn.Signatures[0]
	if !b.isBlockhashValid(txn.Message.RecentBlockhash) {
		return nil, solana.TransactionErrorBlockhashNotFound
	}
	if _, ok := b.statuses[sig]; ok {
		return nil, solana.TransactionErrorDuplicateSignature
	}

	tx := &txContext{
		bank:     b,
		log:      b.log.WithField("signature", sig.ToBase58()),
		accounts: make(map[string]*Account, len(txn.Message.Accounts)),
	}

	for _, key := range txn.Message.Accounts {
		if account, ok := b.accounts[string(key)]; ok {
			tx.accounts[string(key)] = account.Clone()
		} else {
			tx.accounts[string(key)] = newEmptyAccount()
		}
	}

	payer, ok := b.accounts[string(txn.Message.Accounts[0])]
	if !ok {
		return nil, solana.TransactionErrorAccountNotFound
	}

	fee, carry := bits.Add64(b.lamportsPerSignature*uint64(len(txn.Signatures)), budget.PriorityFee(), 0)
	if carry != 0 || payer.Lamports < fee {
		return nil, solana.TransactionErrorInsufficientFundsForFee
	}
	tx.accounts[string(txn.Message.Accounts[0])].Lamports -= fee

	for _, c := range txn.Message.Instructions {
		key := txn.Message.Accounts[c.ProgramIndex]

		account, ok := b.accounts[string(key)]
		if !ok {
			return nil, solana.TransactionErrorProgramAccountNotFound
		}
		if _, registered := b.getProgram(key); !registered || !account.Executable {
			tx.log.Debugf("%s is not an executable program", base58.Encode(key))
			return nil, solana.TransactionErrorInvalidProgramForExecution
		}
	}

	return tx, nil
}

func toTransactionError(err error) *solana.TransactionError {
	switch v := err.(type) {
	case *solana.TransactionError:
		return v
	case solana.TransactionErrorKey:
		return solana.NewTransactionError(v)
	case *solana.InstructionError:
		txErr, jsonErr := solana.TransactionErrorFromInstructionError(v)
		if jsonErr != nil {
			return solana.NewTransactionError(solana.TransactionErrorInternal)
		}
		return txErr
	default:
		return solana.NewTransactionError(solana.TransactionErrorInternal)
	}
}

// SignAndProcess builds a transaction paid for by the first signer against the
// latest blockhash, signs it with every signer and processes it.
func (b *Bank) SignAndProcess(signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	if len(signers) == 0 {
		return solana.Signature{}, errors.New("at least one signer is required")
	}

	txn := solana.NewTransaction(signers[0].Public().(ed25519.PublicKey), instructions...)
	txn.SetBlockhash(b.Blockhash())
	if err := txn.Sign(signers...); err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to sign transaction")
	}

	return b.ProcessTransaction(txn)
}
