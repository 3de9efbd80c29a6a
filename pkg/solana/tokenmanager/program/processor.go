// Package program is the token manager program as executed by the runtime.
package program

import (
	"crypto/ed25519"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/runtime"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
	"github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

// New returns the token manager program.
func New() runtime.Program {
	return runtime.ProgramFunc(process)
}

// Register installs the program on bank at its well known address.
func Register(bank *runtime.Bank) {
	bank.RegisterProgram(tokenmanager.ProgramKey, New())
}

func process(ic *runtime.InvokeContext, data []byte) error {
	instructionType, err := tokenmanager.GetInstructionType(data)
	if err != nil {
		return solana.InstructionErrorInvalidInstructionData
	}

	switch instructionType {
	case tokenmanager.InstructionTypeCreateTokenManager:
		args, err := tokenmanager.DecompileCreateTokenManager(ic.Instruction(data))
		if err != nil {
			return solana.InstructionErrorInvalidInstructionData
		}
		return createTokenManager(ic, args)

	case tokenmanager.InstructionTypeMintTokenSupply:
		if _, err := tokenmanager.DecompileMintTokenSupply(ic.Instruction(data)); err != nil {
			return solana.InstructionErrorInvalidInstructionData
		}
		return mintTokenSupply(ic)

	default:
		return solana.InstructionErrorInvalidInstructionData
	}
}

// createProgramAccount creates a rent exempt account at a program address,
// topping up lamports already sent to it.
func createProgramAccount(ic *runtime.InvokeContext, payer, target *runtime.AccountInfo, owner ed25519.PublicKey, size uint64, signerSeeds ...[][]byte) error {
	required := ic.Rent().MinimumBalance(size)

	if target.Lamports == 0 {
		return ic.Invoke(system.CreateAccount(payer.Key, target.Key, owner, required, size), signerSeeds...)
	}

	if target.Lamports < required {
		if err := ic.Invoke(system.Transfer(payer.Key, target.Key, required-target.Lamports)); err != nil {
			return err
		}
	}
	if err := ic.Invoke(system.Allocate(target.Key, size), signerSeeds...); err != nil {
		return err
	}
	return ic.Invoke(system.Assign(target.Key, owner), signerSeeds...)
}

// loadTokenManager loads and validates the manager governing mint. The
// manager's address must re-derive from its stored seeds and bump.
func loadTokenManager(ic *runtime.InvokeContext, info, mint *runtime.AccountInfo) (*tokenmanager.TokenManagerAccount, error) {
	if !info.IsOwnedBy(ic.ProgramID()) {
		return nil, solana.InstructionErrorInvalidAccountOwner
	}

	var manager tokenmanager.TokenManagerAccount
	if err := manager.Unmarshal(info.Data); err != nil {
		return nil, tokenmanager.ErrorInvalidAccountData
	}

	if !mint.Key.Equal(manager.Mint) {
		return nil, tokenmanager.ErrorMintMismatch
	}

	seeds, err := manager.SignerSeeds()
	if err != nil {
		return nil, tokenmanager.ErrorInvalidAccountData
	}
	address, err := solana.CreateProgramAddress(ic.ProgramID(), seeds...)
	if err != nil || !address.Equal(info.Key) {
		return nil, tokenmanager.ErrorDerivationMismatch
	}

	return &manager, nil
}

// mintFromManager ensures owner's associated account exists and mints amount
// to it, signed by the manager.
func mintFromManager(ic *runtime.InvokeContext, payer, owner, destination, mint, managerInfo *runtime.AccountInfo, manager *tokenmanager.TokenManagerAccount, amount uint64) error {
	if destination.IsOwnedBy(token.ProgramKey) {
		var account token.Account
		if !account.Unmarshal(destination.Data) || !account.IsInitialized() {
			return tokenmanager.ErrorInvalidAccountData
		}
		if !owner.Key.Equal(account.Owner) {
			ic.Log("token account is owned by another principal")
			return tokenmanager.ErrorTokenAccountOwnerMismatch
		}
		if !mint.Key.Equal(account.Mint) {
			return tokenmanager.ErrorMintMismatch
		}
	}

	address, err := token.GetAssociatedAccount(owner.Key, mint.Key)
	if err != nil {
		return solana.InstructionErrorInvalidSeeds
	}
	if !address.Equal(destination.Key) {
		return tokenmanager.ErrorAssociatedAddressMismatch
	}

	if !destination.IsOwnedBy(token.ProgramKey) {
		create, _, err := token.CreateAssociatedTokenAccountIdempotent(payer.Key, owner.Key, mint.Key)
		if err != nil {
			return solana.InstructionErrorInvalidSeeds
		}
		if err := ic.Invoke(create); err != nil {
			return err
		}
	}

	seeds, err := manager.SignerSeeds()
	if err != nil {
		return tokenmanager.ErrorInvalidAccountData
	}
	return ic.Invoke(token.MintTo(mint.Key, destination.Key, managerInfo.Key, amount), seeds)
}
