package runtime

import (
	"bytes"
	"math/bits"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
)

// processToken implements the subset of the SPL token program the service
// relies on.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/processor.rs
func processToken(ic *InvokeContext, data []byte) error {
	ix := ic.Instruction(data)

	cmd, err := token.GetCommand(ix)
	if err != nil {
		return mapDecodeError(err)
	}

	switch cmd {
	case token.CommandInitializeMint, token.CommandInitializeMint2:
		if err := ic.RequireAccounts(1); err != nil {
			return err
		}
		args, err := token.DecompileInitializeMint(ix)
		if err != nil {
			return mapDecodeError(err)
		}
		mint, _ := ic.Account(0)
		return initializeMint(ic, mint, args)

	case token.CommandInitializeAccount, token.CommandInitializeAccount3:
		if err := ic.RequireAccounts(2); err != nil {
			return err
		}
		args, err := token.DecompileInitializeAccount(ix)
		if err != nil {
			return mapDecodeError(err)
		}
		account, _ := ic.Account(0)
		mint, _ := ic.Account(1)
		return initializeAccount(ic, account, mint, args)

	case token.CommandTransfer:
		if err := ic.RequireAccounts(3); err != nil {
			return err
		}
		args, err := token.DecompileTransfer(ix)
		if err != nil {
			return mapDecodeError(err)
		}
		source, _ := ic.Account(0)
		destination, _ := ic.Account(1)
		owner, _ := ic.Account(2)
		return transferTokens(ic, source, destination, owner, args.Amount)

	case token.CommandSetAuthority:
		if err := ic.RequireAccounts(2); err != nil {
			return err
		}
		args, err := token.DecompileSetAuthority(ix)
		if err != nil {
			return mapDecodeError(err)
		}
		account, _ := ic.Account(0)
		authority, _ := ic.Account(1)
		return setAuthority(ic, account, authority, args)

	case token.CommandMintTo:
		if err := ic.RequireAccounts(3); err != nil {
			return err
		}
		args, err := token.DecompileMintTo(ix)
		if err != nil {
			return mapDecodeError(err)
		}
		mint, _ := ic.Account(0)
		destination, _ := ic.Account(1)
		authority, _ := ic.Account(2)
		return mintTo(ic, mint, destination, authority, args.Amount)

	default:
		ic.Log("unsupported token command: %d", cmd)
		return token.ErrorInvalidInstruction
	}
}

func initializeMint(ic *InvokeContext, info *AccountInfo, args *token.DecompiledInitializeMint) error {
	if !info.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if len(info.Data) != token.MintSize {
		return solana.InstructionErrorInvalidAccountData
	}

	var mint token.Mint
	mint.Unmarshal(info.Data)
	if mint.IsInitialized {
		ic.Log("mint %s already initialized", base58.Encode(info.Key))
		return token.ErrorAlreadyInUse
	}
	if !ic.Rent().IsExempt(info.Lamports, uint64(len(info.Data))) {
		return token.ErrorNotRentExempt
	}

	mint = token.Mint{
		MintAuthority:   args.MintAuthority,
		Decimals:        args.Decimals,
		IsInitialized:   true,
		FreezeAuthority: args.FreezeAuthority,
	}
	copy(info.Data, mint.Marshal())
	return nil
}

func initializeAccount(ic *InvokeContext, info, mintInfo *AccountInfo, args *token.DecompiledInitializeAccount) error {
	if !info.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}
	if len(info.Data) != token.AccountSize {
		return solana.InstructionErrorInvalidAccountData
	}

	var account token.Account
	account.Unmarshal(info.Data)
	if account.IsInitialized() {
		ic.Log("token account %s already initialized", base58.Encode(info.Key))
		return token.ErrorAlreadyInUse
	}
	if !ic.Rent().IsExempt(info.Lamports, uint64(len(info.Data))) {
		return token.ErrorNotRentExempt
	}
	if _, err := loadMint(mintInfo); err != nil {
		return token.ErrorInvalidMint
	}

	account = token.Account{
		Mint:  args.Mint,
		Owner: args.Owner,
		State: token.AccountStateInitialized,
	}
	copy(info.Data, account.Marshal())
	return nil
}

func transferTokens(ic *InvokeContext, sourceInfo, destinationInfo, ownerInfo *AccountInfo, amount uint64) error {
	source, err := loadTokenAccount(sourceInfo)
	if err != nil {
		return err
	}
	destination, err := loadTokenAccount(destinationInfo)
	if err != nil {
		return err
	}

	if source.State == token.AccountStateFrozen || destination.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if source.Amount < amount {
		return token.ErrorInsufficientFunds
	}
	if !bytes.Equal(source.Mint, destination.Mint) {
		return token.ErrorMintMismatch
	}
	if err := validateOwner(ic, source.Owner, ownerInfo); err != nil {
		return err
	}

	if bytes.Equal(sourceInfo.Key, destinationInfo.Key) {
		return nil
	}

	source.Amount -= amount
	var carry uint64
	destination.Amount, carry = bits.Add64(destination.Amount, amount, 0)
	if carry != 0 {
		return token.ErrorOverflow
	}

	copy(sourceInfo.Data, source.Marshal())
	copy(destinationInfo.Data, destination.Marshal())
	return nil
}

func setAuthority(ic *InvokeContext, info, authorityInfo *AccountInfo, args *token.DecompiledSetAuthority) error {
	if !info.IsOwnedBy(token.ProgramKey) {
		return solana.InstructionErrorIncorrectProgramID
	}

	switch len(info.Data) {
	case token.MintSize:
		mint, err := loadMint(info)
		if err != nil {
			return err
		}

		switch args.Type {
		case token.AuthorityTypeMintTokens:
			if mint.MintAuthority == nil {
				return token.ErrorFixedSupply
			}
			if err := validateOwner(ic, mint.MintAuthority, authorityInfo); err != nil {
				return err
			}
			mint.MintAuthority = args.NewAuthority
		case token.AuthorityTypeFreezeAccount:
			if mint.FreezeAuthority == nil {
				return token.ErrorMintCannotFreeze
			}
			if err := validateOwner(ic, mint.FreezeAuthority, authorityInfo); err != nil {
				return err
			}
			mint.FreezeAuthority = args.NewAuthority
		default:
			return token.ErrorAuthorityTypeNotSupported
		}

		copy(info.Data, mint.Marshal())
		return nil

	case token.AccountSize:
		account, err := loadTokenAccount(info)
		if err != nil {
			return err
		}
		if account.State == token.AccountStateFrozen {
			return token.ErrorAccountFrozen
		}

		switch args.Type {
		case token.AuthorityTypeAccountHolder:
			if err := validateOwner(ic, account.Owner, authorityInfo); err != nil {
				return err
			}
			if args.NewAuthority == nil {
				return token.ErrorInvalidInstruction
			}
			account.Owner = args.NewAuthority
			account.Delegate = nil
			account.DelegatedAmount = 0
		case token.AuthorityTypeCloseAccount:
			current := account.CloseAuthority
			if current == nil {
				current = account.Owner
			}
			if err := validateOwner(ic, current, authorityInfo); err != nil {
				return err
			}
			account.CloseAuthority = args.NewAuthority
		default:
			return token.ErrorAuthorityTypeNotSupported
		}

		copy(info.Data, account.Marshal())
		return nil

	default:
		return solana.InstructionErrorInvalidAccountData
	}
}

func mintTo(ic *InvokeContext, mintInfo, destinationInfo, authorityInfo *AccountInfo, amount uint64) error {
	destination, err := loadTokenAccount(destinationInfo)
	if err != nil {
		return err
	}
	if destination.State == token.AccountStateFrozen {
		return token.ErrorAccountFrozen
	}
	if !bytes.Equal(destination.Mint, mintInfo.Key) {
		return token.ErrorMintMismatch
	}

	mint, err := loadMint(mintInfo)
	if err != nil {
		return err
	}
	if mint.MintAuthority == nil {
		return token.ErrorFixedSupply
	}
	if err := validateOwner(ic, mint.MintAuthority, authorityInfo); err != nil {
		return err
	}

	var carry uint64
	destination.Amount, carry = bits.Add64(destination.Amount, amount, 0)
	if carry != 0 {
		return token.ErrorOverflow
	}
	mint.Supply, carry = bits.Add64(mint.Supply, amount, 0)
	if carry != 0 {
		return token.ErrorOverflow
	}

	copy(destinationInfo.Data, destination.Marshal())
	copy(mintInfo.Data, mint.Marshal())
	return nil
}

func validateOwner(ic *InvokeContext, expected []byte, authorityInfo *AccountInfo) error {
	if !bytes.Equal(expected, authorityInfo.Key) {
		ic.Log("owner mismatch: expected %s, got %s", base58.Encode(expected), base58.Encode(authorityInfo.Key))
		return token.ErrorOwnerMismatch
	}
	if !authorityInfo.IsSigner {
		return solana.InstructionErrorMissingRequiredSignature
	}
	return nil
}

func loadMint(info *AccountInfo) (*token.Mint, error) {
	if !info.IsOwnedBy(token.ProgramKey) {
		return nil, solana.InstructionErrorIncorrectProgramID
	}

	var mint token.Mint
	if !mint.Unmarshal(info.Data) {
		return nil, solana.InstructionErrorInvalidAccountData
	}
	if !mint.IsInitialized {
		return nil, solana.InstructionErrorUninitializedAccount
	}
	return &mint, nil
}

func loadTokenAccount(info *AccountInfo) (*token.Account, error) {
	if !info.IsOwnedBy(token.ProgramKey) {
		return nil, solana.InstructionErrorIncorrectProgramID
	}

	var account token.Account
	if !account.Unmarshal(info.Data) {
		return nil, solana.InstructionErrorInvalidAccountData
	}
	if !account.IsInitialized() {
		return nil, solana.InstructionErrorUninitializedAccount
	}
	return &account, nil
}
