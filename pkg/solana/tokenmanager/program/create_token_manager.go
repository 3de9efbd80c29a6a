package program

import (
	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/runtime"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
	"github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

// Accounts:
//
//  0. [writable, signer] payer
//  1. [writable, signer when fresh] mint
//  2. [writable] token manager
//  3. [writable] payer token account, used for the initial supply
//  4. [] system program
//  5. [] token program
//  6. [] associated token program
//  7. [] rent sysvar
func createTokenManager(ic *runtime.InvokeContext, args *tokenmanager.DecompiledCreateTokenManager) error {
	payer, _ := ic.Account(0)
	mint, _ := ic.Account(1)
	managerInfo, _ := ic.Account(2)
	payerTokenAccount, _ := ic.Account(3)

	if !payer.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	if !args.Args.SeedScheme.IsValid() {
		return tokenmanager.ErrorInvalidSeedScheme
	}
	if args.Args.MintAmount == 0 {
		return tokenmanager.ErrorInvalidMintAmount
	}

	// A self-managed manager records its creator
	authority := args.Args.Authority
	if !args.Args.SeedScheme.IsDelegated() {
		authority = payer.Key
	}

	seeds, err := args.Args.SeedScheme.Seeds(mint.Key, authority)
	if err != nil {
		return tokenmanager.ErrorInvalidSeedScheme
	}
	address, bump, err := solana.FindProgramAddressAndBump(ic.ProgramID(), seeds...)
	if err != nil {
		return solana.InstructionErrorInvalidSeeds
	}
	if !address.Equal(managerInfo.Key) {
		ic.Log("expected token manager %s, got %s", base58.Encode(address), base58.Encode(managerInfo.Key))
		return tokenmanager.ErrorDerivationMismatch
	}
	if managerInfo.IsOwnedBy(ic.ProgramID()) {
		return solana.InstructionErrorAccountAlreadyInitialized
	}

	signerSeeds := append(seeds, []byte{bump})
	if err := createProgramAccount(ic, payer, managerInfo, ic.ProgramID(), tokenmanager.TokenManagerAccountSize, signerSeeds); err != nil {
		return err
	}

	decimals := args.Args.Decimals
	if mint.IsOwnedBy(token.ProgramKey) {
		state, err := handOverMint(ic, payer, mint, managerInfo)
		if err != nil {
			return err
		}
		decimals = state.Decimals
	} else {
		if !mint.IsSigner {
			return solana.InstructionErrorMissingRequiredSignature
		}
		if err := createMint(ic, payer, mint, managerInfo, decimals); err != nil {
			return err
		}
	}

	manager := &tokenmanager.TokenManagerAccount{
		Mint:       mint.Key,
		Authority:  authority,
		MintAmount: args.Args.MintAmount,
		Bump:       bump,
		SeedScheme: args.Args.SeedScheme,
		Decimals:   decimals,
	}
	copy(managerInfo.Data, manager.Marshal())

	ic.Log("created %s", manager)

	// The initial supply is not a Mint-Supply, so the counter stays at zero
	if args.Args.InitialSupply > 0 {
		return mintFromManager(ic, payer, payer, payerTokenAccount, mint, managerInfo, manager, args.Args.InitialSupply)
	}
	return nil
}

func createMint(ic *runtime.InvokeContext, payer, mint, managerInfo *runtime.AccountInfo, decimals uint8) error {
	if err := createProgramAccount(ic, payer, mint, token.ProgramKey, token.MintSize); err != nil {
		return err
	}
	return ic.Invoke(token.InitializeMint2(mint.Key, managerInfo.Key, managerInfo.Key, decimals))
}

// handOverMint moves both authorities of an existing mint from the payer to
// the manager.
func handOverMint(ic *runtime.InvokeContext, payer, mint, managerInfo *runtime.AccountInfo) (*token.Mint, error) {
	var state token.Mint
	if !state.Unmarshal(mint.Data) || !state.IsInitialized {
		return nil, tokenmanager.ErrorInvalidAccountData
	}

	if !payer.Key.Equal(state.MintAuthority) || !payer.Key.Equal(state.FreezeAuthority) {
		ic.Log("payer does not control mint %s", base58.Encode(mint.Key))
		return nil, tokenmanager.ErrorUnauthorizedAuthority
	}

	for _, authorityType := range []token.AuthorityType{token.AuthorityTypeMintTokens, token.AuthorityTypeFreezeAccount} {
		if err := ic.Invoke(token.SetAuthority(mint.Key, payer.Key, managerInfo.Key, authorityType)); err != nil {
			return nil, err
		}
	}
	return &state, nil
}
