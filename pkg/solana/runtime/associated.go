package runtime

import (
	"bytes"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/0639953c7dd0f5228c3ceda3ba68fece3b46ff1d/associated-token-account/program/src/processor.rs
func processAssociatedToken(ic *InvokeContext, data []byte) error {
	if err := ic.RequireAccounts(6); err != nil {
		return err
	}

	args, err := token.DecompileCreateAssociatedAccount(ic.Instruction(data))
	if err != nil {
		return mapDecodeError(err)
	}

	payer, _ := ic.Account(0)
	associated, _ := ic.Account(1)

	address, bump, err := token.GetAssociatedAccountAndBump(args.Owner, args.Mint)
	if err != nil {
		return solana.InstructionErrorInvalidSeeds
	}
	if !bytes.Equal(address, associated.Key) {
		ic.Log("associated address does not match seed derivation")
		return solana.InstructionErrorInvalidSeeds
	}

	if args.Idempotent && associated.IsOwnedBy(token.ProgramKey) {
		account, err := loadTokenAccount(associated)
		if err != nil {
			return err
		}
		if !bytes.Equal(account.Owner, args.Owner) {
			ic.Log("associated account %s is owned by %s", base58.Encode(address), base58.Encode(account.Owner))
			return token.ErrorInvalidAssociatedOwner
		}
		return nil
	}

	if !associated.IsOwnedBy(system.ProgramKey[:]) {
		return solana.InstructionErrorIllegalOwner
	}

	seeds := [][]byte{args.Owner, token.ProgramKey, args.Mint, {bump}}
	required := ic.Rent().MinimumBalance(token.AccountSize)

	if associated.Lamports > 0 {
		if associated.Lamports < required {
			if err := ic.Invoke(system.Transfer(payer.Key, address, required-associated.Lamports)); err != nil {
				return err
			}
		}
		if err := ic.Invoke(system.Allocate(address, token.AccountSize), seeds); err != nil {
			return err
		}
		if err := ic.Invoke(system.Assign(address, token.ProgramKey), seeds); err != nil {
			return err
		}
	} else {
		if err := ic.Invoke(system.CreateAccount(payer.Key, address, token.ProgramKey, required, token.AccountSize), seeds); err != nil {
			return err
		}
	}

	return ic.Invoke(token.InitializeAccount3(address, args.Mint, args.Owner))
}
