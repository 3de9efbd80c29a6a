package runtime

import (
	"bytes"
	"crypto/ed25519"
	"math/bits"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
)

// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/runtime/src/system_instruction_processor.rs
func processSystem(ic *InvokeContext, data []byte) error {
	cmd, err := system.GetCommand(data)
	if err != nil {
		return mapDecodeError(err)
	}

	ix := ic.Instruction(data)

	switch cmd {
	case system.CommandCreateAccount:
		if err := ic.RequireAccounts(2); err != nil {
			return err
		}
		args, err := system.DecompileCreateAccount(ix)
		if err != nil {
			return mapDecodeError(err)
		}

		from, _ := ic.Account(0)
		to, _ := ic.Account(1)
		if to.Lamports > 0 {
			ic.Log("create account: %s already in use", base58.Encode(args.Address))
			return system.ErrorAccountAlreadyInUse
		}
		if err := allocate(ic, to, args.Size); err != nil {
			return err
		}
		if err := assign(ic, to, args.Owner); err != nil {
			return err
		}
		return transfer(ic, from, to, args.Lamports)

	case system.CommandAssign:
		if err := ic.RequireAccounts(1); err != nil {
			return err
		}
		args, err := system.DecompileAssign(ix)
		if err != nil {
			return mapDecodeError(err)
		}

		account, _ := ic.Account(0)
		return assign(ic, account, args.Owner)

	case system.CommandTransfer:
		if err := ic.RequireAccounts(2); err != nil {
			return err
		}
		args, err := system.DecompileTransfer(ix)
		if err != nil {
			return mapDecodeError(err)
		}

		from, _ := ic.Account(0)
		to, _ := ic.Account(1)
		return transfer(ic, from, to, args.Lamports)

	case system.CommandAllocate:
		if err := ic.RequireAccounts(1); err != nil {
			return err
		}
		args, err := system.DecompileAllocate(ix)
		if err != nil {
			return mapDecodeError(err)
		}

		account, _ := ic.Account(0)
		return allocate(ic, account, args.Size)

	default:
		ic.Log("unsupported system command: %d", cmd)
		return solana.InstructionErrorInvalidInstructionData
	}
}

func allocate(ic *InvokeContext, account *AccountInfo, size uint64) error {
	if !account.IsSigner {
		ic.Log("allocate: %s must sign", base58.Encode(account.Key))
		return solana.InstructionErrorMissingRequiredSignature
	}
	if len(account.Data) != 0 || !account.IsOwnedBy(system.ProgramKey[:]) {
		ic.Log("allocate: %s already in use", base58.Encode(account.Key))
		return system.ErrorAccountAlreadyInUse
	}
	if size > system.MaxPermittedDataLength {
		return system.ErrorInvalidAccountDataLength
	}

	account.Data = make([]byte, size)
	return nil
}

func assign(ic *InvokeContext, account *AccountInfo, owner ed25519.PublicKey) error {
	if account.IsOwnedBy(owner) {
		return nil
	}
	if !account.IsSigner {
		ic.Log("assign: %s must sign", base58.Encode(account.Key))
		return solana.InstructionErrorMissingRequiredSignature
	}

	account.Owner = append(ed25519.PublicKey{}, owner...)
	return nil
}

func transfer(ic *InvokeContext, from, to *AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		ic.Log("transfer: %s must sign", base58.Encode(from.Key))
		return solana.InstructionErrorMissingRequiredSignature
	}
	if len(from.Data) != 0 {
		ic.Log("transfer: from must not carry data")
		return solana.InstructionErrorInvalidArgument
	}
	if from.Lamports < lamports {
		ic.Log("transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return system.ErrorResultWithNegativeLamports
	}

	// A self transfer leaves the balance untouched.
	if bytes.Equal(from.Key, to.Key) {
		return nil
	}

	sum, carry := bits.Add64(to.Lamports, lamports, 0)
	if carry != 0 {
		return solana.InstructionErrorArithmeticOverflow
	}

	from.Lamports -= lamports
	to.Lamports = sum
	return nil
}
