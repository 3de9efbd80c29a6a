package runtime

import (
	"bytes"
	"crypto/ed25519"
	"math/bits"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
)

// MaxCallDepth is the maximum number of nested cross-program invocations
// below a top-level instruction.
const MaxCallDepth = 4

// Program is a program the runtime can execute.
type Program interface {
	Process(ic *InvokeContext, data []byte) error
}

// ProgramFunc adapts a function to a Program.
type ProgramFunc func(ic *InvokeContext, data []byte) error

func (f ProgramFunc) Process(ic *InvokeContext, data []byte) error {
	return f(ic, data)
}

// txContext is the state shared by every frame of a transaction.
type txContext struct {
	bank     *Bank
	log      *logrus.Entry
	accounts map[string]*Account
	stack    []ed25519.PublicKey
}

// InvokeContext is the view an executing program has of its instruction.
type InvokeContext struct {
	tx        *txContext
	programID ed25519.PublicKey
	accounts  []AccountInfo
	depth     int
	pre       map[string]*Account
}

func (tx *txContext) newFrame(programID ed25519.PublicKey, accounts []AccountInfo, depth int) *InvokeContext {
	return &InvokeContext{
		tx:        tx,
		programID: programID,
		accounts:  accounts,
		depth:     depth,
	}
}

// ProgramID returns the id of the executing program.
func (ic *InvokeContext) ProgramID() ed25519.PublicKey {
	return ic.programID
}

// Depth returns the invocation depth, zero for a top-level instruction.
func (ic *InvokeContext) Depth() int {
	return ic.depth
}

// Accounts returns the accounts passed to the instruction, in order.
func (ic *InvokeContext) Accounts() []AccountInfo {
	return ic.accounts
}

// Account returns the account at index, or NotEnoughAccountKeys.
func (ic *InvokeContext) Account(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(ic.accounts) {
		return nil, solana.InstructionErrorNotEnoughAccountKeys
	}
	return &ic.accounts[index], nil
}

// RequireAccounts fails with NotEnoughAccountKeys when fewer than n accounts
// were passed.
func (ic *InvokeContext) RequireAccounts(n int) error {
	if len(ic.accounts) < n {
		return solana.InstructionErrorNotEnoughAccountKeys
	}
	return nil
}

// Rent returns the rent configuration of the bank.
func (ic *InvokeContext) Rent() system.Rent {
	return ic.tx.bank.rent
}

// Instruction rebuilds the instruction being executed.
func (ic *InvokeContext) Instruction(data []byte) solana.Instruction {
	metas := make([]solana.AccountMeta, len(ic.accounts))
	for i, a := range ic.accounts {
		metas[i] = solana.AccountMeta{
			PublicKey:  a.Key,
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		}
	}
	return solana.NewInstruction(ic.programID, data, metas...)
}

// Log writes a program log line.
func (ic *InvokeContext) Log(format string, args ...interface{}) {
	ic.tx.log.WithFields(logrus.Fields{
		"program": base58.Encode(ic.programID),
		"depth":   ic.depth,
	}).Debugf(format, args...)
}

// Invoke executes ix as a cross-program invocation. Each entry of signerSeeds
// is the full seed list, bump included, of a program address derived from
// the invoking program. Those addresses are granted signer privilege for the
// duration of the call.
func (ic *InvokeContext) Invoke(ix solana.Instruction, signerSeeds ...[][]byte) error {
	if ic.depth+1 > MaxCallDepth {
		return solana.InstructionErrorCallDepth
	}
	for _, id := range ic.tx.stack {
		if bytes.Equal(id, ix.Program) && !bytes.Equal(id, ic.programID) {
			return solana.InstructionErrorReentrancyNotAllowed
		}
	}

	pdaSigners := make(map[string]struct{})
	for _, seeds := range signerSeeds {
		addr, err := solana.CreateProgramAddress(ic.programID, seeds...)
		switch err {
		case nil:
			pdaSigners[string(addr)] = struct{}{}
		case solana.ErrMaxSeedLengthExceeded, solana.ErrTooManySeeds:
			return solana.InstructionErrorMaxSeedLengthExceeded
		default:
			// Seeds that land on the curve derive no address, so they sign
			// for nothing.
			ic.Log("signer seeds do not derive a program address: %v", err)
		}
	}

	programAccount := ic.find(ix.Program)
	if programAccount == nil {
		return solana.InstructionErrorMissingAccount
	}
	if !programAccount.Executable {
		return solana.InstructionErrorAccountNotExecutable
	}
	program, ok := ic.tx.bank.getProgram(ix.Program)
	if !ok {
		return solana.InstructionErrorUnsupportedProgramID
	}

	accounts := make([]AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		caller := ic.find(meta.PublicKey)
		if caller == nil {
			ic.Log("instruction references an unknown account %s", base58.Encode(meta.PublicKey))
			return solana.InstructionErrorMissingAccount
		}

		if meta.IsWritable && !ic.isWritable(meta.PublicKey) {
			ic.Log("%s writable privilege escalated", base58.Encode(meta.PublicKey))
			return solana.InstructionErrorPrivilegeEscalation
		}

		if meta.IsSigner && !ic.isSigner(meta.PublicKey) {
			if _, ok := pdaSigners[string(meta.PublicKey)]; !ok {
				ic.Log("%s signer privilege escalated", base58.Encode(meta.PublicKey))
				return solana.InstructionErrorPrivilegeEscalation
			}
		}

		accounts[i] = AccountInfo{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			Account:    caller.Account,
		}
	}

	if err := ic.verify(); err != nil {
		return err
	}

	callee := ic.tx.newFrame(ix.Program, accounts, ic.depth+1)
	if err := callee.process(program, ix.Data); err != nil {
		return err
	}

	ic.snapshot()
	return nil
}

func (ic *InvokeContext) process(program Program, data []byte) error {
	ic.tx.stack = append(ic.tx.stack, ic.programID)
	defer func() {
		ic.tx.stack = ic.tx.stack[:len(ic.tx.stack)-1]
	}()

	ic.snapshot()

	if err := program.Process(ic, data); err != nil {
		ic.Log("program failed: %v", err)
		return err
	}

	return ic.verify()
}

func (ic *InvokeContext) find(key ed25519.PublicKey) *AccountInfo {
	for i := range ic.accounts {
		if bytes.Equal(ic.accounts[i].Key, key) {
			return &ic.accounts[i]
		}
	}
	return nil
}

func (ic *InvokeContext) isWritable(key ed25519.PublicKey) bool {
	for _, a := range ic.accounts {
		if a.IsWritable && bytes.Equal(a.Key, key) {
			return true
		}
	}
	return false
}

func (ic *InvokeContext) isSigner(key ed25519.PublicKey) bool {
	for _, a := range ic.accounts {
		if a.IsSigner && bytes.Equal(a.Key, key) {
			return true
		}
	}
	return false
}

func (ic *InvokeContext) snapshot() {
	ic.pre = make(map[string]*Account, len(ic.accounts))
	for _, a := range ic.accounts {
		ic.pre[string(a.Key)] = a.Account.Clone()
	}
}

// verify checks the changes made to the frame's accounts since the last
// snapshot against the account ownership rules.
func (ic *InvokeContext) verify() error {
	var preHi, preLo, postHi, postLo uint64
	var carry uint64

	for key, pre := range ic.pre {
		info := ic.find(ed25519.PublicKey(key))
		if err := verifyAccount(ic.programID, pre, info.Account, ic.isWritable(info.Key)); err != nil {
			ic.Log("account %s failed verification: %v", base58.Encode(info.Key), err)
			return err
		}

		preLo, carry = bits.Add64(preLo, pre.Lamports, 0)
		preHi += carry
		postLo, carry = bits.Add64(postLo, info.Lamports, 0)
		postHi += carry
	}

	if preHi != postHi || preLo != postLo {
		return solana.InstructionErrorUnbalancedInstruction
	}
	return nil
}

func verifyAccount(programID ed25519.PublicKey, pre, post *Account, writable bool) error {
	owned := pre.IsOwnedBy(programID)

	if !bytes.Equal(pre.Owner, post.Owner) {
		if !writable || pre.Executable || !owned || !isZeroed(post.Data) {
			return solana.InstructionErrorModifiedProgramID
		}
	}

	if pre.Lamports != post.Lamports {
		if !writable {
			return solana.InstructionErrorReadonlyLamportChange
		}
		if post.Lamports < pre.Lamports && !owned {
			return solana.InstructionErrorExternalAccountLamportSpend
		}
	}

	if len(pre.Data) != len(post.Data) && !(writable && owned) {
		return solana.InstructionErrorAccountDataSizeChanged
	}

	if !bytes.Equal(pre.Data, post.Data) {
		if !writable {
			return solana.InstructionErrorReadonlyDataModified
		}
		if !owned {
			return solana.InstructionErrorExternalAccountDataModified
		}
	}

	if pre.Executable != post.Executable {
		return solana.InstructionErrorExecutableModified
	}

	return nil
}

// mapDecodeError reports instruction decoding failures the way programs do.
func mapDecodeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(solana.InstructionErrorInvalidInstructionData, err.Error())
}
