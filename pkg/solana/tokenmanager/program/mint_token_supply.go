package program

import (
	"math/bits"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/runtime"
	"github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

// Accounts:
//
//  0. [writable, signer] payer
//  1. [] recipient
//  2. [writable] recipient associated token account
//  3. [writable] mint
//  4. [writable] token manager
//  5. [signer when delegated] authority
//  6. [] system program
//  7. [] token program
//  8. [] associated token program
//  9. [] rent sysvar
//
// The system and associated token programs and the rent sysvar are only
// resolved when the recipient's token account has to be created.
func mintTokenSupply(ic *runtime.InvokeContext) error {
	payer, _ := ic.Account(0)
	recipient, _ := ic.Account(1)
	destination, _ := ic.Account(2)
	mint, _ := ic.Account(3)
	managerInfo, _ := ic.Account(4)
	authority, _ := ic.Account(5)

	if !payer.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}

	manager, err := loadTokenManager(ic, managerInfo, mint)
	if err != nil {
		return err
	}

	if !authority.Key.Equal(manager.Authority) {
		ic.Log("authority does not match the token manager")
		return tokenmanager.ErrorUnauthorizedAuthority
	}
	if manager.SeedScheme.IsDelegated() && !authority.IsSigner {
		ic.Log("delegated authority did not sign")
		return tokenmanager.ErrorUnauthorizedAuthority
	}

	count, carry := bits.Add64(manager.TotalMintCount, 1, 0)
	if carry != 0 {
		return tokenmanager.ErrorCounterOverflow
	}

	if err := mintFromManager(ic, payer, recipient, destination, mint, managerInfo, manager, manager.MintAmount); err != nil {
		return err
	}

	manager.TotalMintCount = count
	copy(managerInfo.Data, manager.Marshal())

	ic.Log("minted %d to %s, count=%d", manager.MintAmount, base58.Encode(recipient.Key), count)
	return nil
}
