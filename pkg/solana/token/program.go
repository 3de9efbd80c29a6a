package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
)

// ProgramKey is the SPL token program: TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 215, 101, 161, 147, 217, 203, 225, 70, 206, 235, 121, 172, 28, 180, 133, 237, 95, 91, 55, 145, 58, 140, 245, 133, 126, 255, 0, 169}

type Command byte

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs
const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount
	CommandFreezeAccount
	CommandThawAccount
	CommandTransfer2
	CommandApprove2
	CommandMintTo2
	CommandBurn2
	CommandInitializeAccount2
	CommandSyncNative
	CommandInitializeAccount3
	CommandInitializeMultisig2
	CommandInitializeMint2

	CommandUnknown = Command(math.MaxUint8)
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/error.rs
const (
	ErrorNotRentExempt solana.CustomError = iota
	ErrorInsufficientFunds
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
	ErrorFixedSupply
	ErrorAlreadyInUse
	ErrorInvalidNumberOfProvidedSigners
	ErrorInvalidNumberOfRequiredSigners
	ErrorUninitializedState
	ErrorNativeNotSupported
	ErrorNonNativeHasBalance
	ErrorInvalidInstruction
	ErrorInvalidState
	ErrorOverflow
	ErrorAuthorityTypeNotSupported
	ErrorMintCannotFreeze
	ErrorAccountFrozen
	ErrorMintDecimalsMismatch
)

type AuthorityType byte

const (
	AuthorityTypeMintTokens AuthorityType = iota
	AuthorityTypeFreezeAccount
	AuthorityTypeAccountHolder
	AuthorityTypeCloseAccount
)

// GetCommand returns the token command of an instruction.
func GetCommand(i solana.Instruction) (Command, error) {
	if !bytes.Equal(i.Program, ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}

	return Command(i.Data[0]), nil
}

// InitializeMint initializes a mint account. The freeze authority is optional.
//
// Accounts: mint (w), rent sysvar.
func InitializeMint(mint, mintAuthority, freezeAuthority ed25519.PublicKey, decimals byte) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		encodeInitializeMint(CommandInitializeMint, mintAuthority, freezeAuthority, decimals),
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

// InitializeMint2 is InitializeMint without the rent sysvar account.
func InitializeMint2(mint, mintAuthority, freezeAuthority ed25519.PublicKey, decimals byte) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		encodeInitializeMint(CommandInitializeMint2, mintAuthority, freezeAuthority, decimals),
		solana.NewAccountMeta(mint, false),
	)
}

func encodeInitializeMint(command Command, mintAuthority, freezeAuthority ed25519.PublicKey, decimals byte) []byte {
	data := append([]byte{byte(command), decimals}, mintAuthority...)
	return appendOptionalKey(data, freezeAuthority)
}

type DecompiledInitializeMint struct {
	Mint            ed25519.PublicKey
	Decimals        byte
	MintAuthority   ed25519.PublicKey
	FreezeAuthority ed25519.PublicKey
}

// DecompileInitializeMint decompiles either InitializeMint or InitializeMint2.
func DecompileInitializeMint(i solana.Instruction) (*DecompiledInitializeMint, error) {
	cmd, err := GetCommand(i)
	if err != nil {
		return nil, err
	}

	minAccounts := 1
	switch cmd {
	case CommandInitializeMint:
		minAccounts = 2
	case CommandInitializeMint2:
	default:
		return nil, solana.ErrIncorrectInstruction
	}
	if err := checkAccounts(i, minAccounts); err != nil {
		return nil, err
	}
	if cmd == CommandInitializeMint && !bytes.Equal(system.RentSysVar, i.Accounts[1].PublicKey) {
		return nil, errors.New("invalid rent sysvar")
	}

	const authorityEnd = 2 + ed25519.PublicKeySize
	freezeAuthority, err := decodeOptionalKey(i.Data, authorityEnd)
	if err != nil {
		return nil, err
	}

	return &DecompiledInitializeMint{
		Mint:            i.Accounts[0].PublicKey,
		Decimals:        i.Data[1],
		MintAuthority:   i.Data[2:authorityEnd],
		FreezeAuthority: freezeAuthority,
	}, nil
}

// InitializeAccount initializes a token account holding mint for owner.
//
// Accounts: account (w), mint, owner, rent sysvar.
func InitializeAccount(account, mint, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

// InitializeAccount3 is InitializeAccount with the owner in the instruction
// data and no rent sysvar.
func InitializeAccount3(account, mint, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		append([]byte{byte(CommandInitializeAccount3)}, owner...),
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
	)
}

type DecompiledInitializeAccount struct {
	Account ed25519.PublicKey
	Mint    ed25519.PublicKey
	Owner   ed25519.PublicKey
}

// DecompileInitializeAccount decompiles either InitializeAccount or InitializeAccount3.
func DecompileInitializeAccount(i solana.Instruction) (*DecompiledInitializeAccount, error) {
	cmd, err := GetCommand(i)
	if err != nil {
		return nil, err
	}

	var owner ed25519.PublicKey
	switch cmd {
	case CommandInitializeAccount:
		if err := checkDataSize(i, 1); err != nil {
			return nil, err
		}
		if len(i.Accounts) != 4 {
			return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
		}
		if !bytes.Equal(system.RentSysVar, i.Accounts[3].PublicKey) {
			return nil, errors.New("invalid rent sysvar")
		}
		owner = i.Accounts[2].PublicKey
	case CommandInitializeAccount3:
		if err := checkDataSize(i, 1+ed25519.PublicKeySize); err != nil {
			return nil, err
		}
		if err := checkAccounts(i, 2); err != nil {
			return nil, err
		}
		owner = i.Data[1:]
	default:
		return nil, solana.ErrIncorrectInstruction
	}

	return &DecompiledInitializeAccount{
		Account: i.Accounts[0].PublicKey,
		Mint:    i.Accounts[1].PublicKey,
		Owner:   owner,
	}, nil
}

// SetAuthority changes or revokes (nil newAuthority) an authority of a mint
// or token account.
//
// Accounts: mint or account (w), current authority (s).
func SetAuthority(account, currentAuthority, newAuthority ed25519.PublicKey, authorityType AuthorityType) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		appendOptionalKey([]byte{byte(CommandSetAuthority), byte(authorityType)}, newAuthority),
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
	)
}

type DecompiledSetAuthority struct {
	Account          ed25519.PublicKey
	CurrentAuthority ed25519.PublicKey
	NewAuthority     ed25519.PublicKey
	Type             AuthorityType
}

func DecompileSetAuthority(i solana.Instruction) (*DecompiledSetAuthority, error) {
	cmd, err := GetCommand(i)
	if err != nil {
		return nil, err
	}
	if cmd != CommandSetAuthority {
		return nil, solana.ErrIncorrectInstruction
	}
	if err := checkAccounts(i, 2); err != nil {
		return nil, err
	}
	if len(i.Data) < 3 {
		return nil, errors.Errorf("invalid data size: %d (expect at least 3)", len(i.Data))
	}

	newAuthority, err := decodeOptionalKey(i.Data, 2)
	if err != nil {
		return nil, err
	}

	return &DecompiledSetAuthority{
		Account:          i.Accounts[0].PublicKey,
		CurrentAuthority: i.Accounts[1].PublicKey,
		NewAuthority:     newAuthority,
		Type:             AuthorityType(i.Data[1]),
	}, nil
}

// MintTo mints amount new tokens into destination.
//
// Accounts: mint (w), destination (w), mint authority (s).
func MintTo(mint, destination, authority ed25519.PublicKey, amount uint64) solana.Instruction {
	return amountInstruction(CommandMintTo, mint, destination, authority, amount)
}

type DecompiledMintTo struct {
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Authority   ed25519.PublicKey
	Amount      uint64
}

func DecompileMintTo(i solana.Instruction) (*DecompiledMintTo, error) {
	mint, destination, authority, amount, err := decompileAmountInstruction(i, CommandMintTo)
	if err != nil {
		return nil, err
	}
	return &DecompiledMintTo{
		Mint:        mint,
		Destination: destination,
		Authority:   authority,
		Amount:      amount,
	}, nil
}

// Transfer moves amount tokens between two accounts of the same mint.
//
// Accounts: source (w), destination (w), source owner (s).
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	return amountInstruction(CommandTransfer, source, dest, owner, amount)
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
}

func DecompileTransfer(i solana.Instruction) (*DecompiledTransfer, error) {
	source, destination, owner, amount, err := decompileAmountInstruction(i, CommandTransfer)
	if err != nil {
		return nil, err
	}
	return &DecompiledTransfer{
		Source:      source,
		Destination: destination,
		Owner:       owner,
		Amount:      amount,
	}, nil
}

// amountInstruction builds the shared layout of MintTo and Transfer: two
// writable accounts, a signing authority and a little endian amount.
func amountInstruction(command Command, first, second, authority ed25519.PublicKey, amount uint64) solana.Instruction {
	data := binary.LittleEndian.AppendUint64([]byte{byte(command)}, amount)
	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(first, false),
		solana.NewAccountMeta(second, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func decompileAmountInstruction(i solana.Instruction, expected Command) (first, second, authority ed25519.PublicKey, amount uint64, err error) {
	cmd, err := GetCommand(i)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	if cmd != expected {
		return nil, nil, nil, 0, solana.ErrIncorrectInstruction
	}
	if err := checkAccounts(i, 3); err != nil {
		return nil, nil, nil, 0, err
	}
	if err := checkDataSize(i, 9); err != nil {
		return nil, nil, nil, 0, err
	}

	return i.Accounts[0].PublicKey, i.Accounts[1].PublicKey, i.Accounts[2].PublicKey, binary.LittleEndian.Uint64(i.Data[1:]), nil
}

func checkAccounts(i solana.Instruction, n int) error {
	if len(i.Accounts) < n {
		return errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	return nil
}

func checkDataSize(i solana.Instruction, size int) error {
	if len(i.Data) != size {
		return errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}
	return nil
}

func appendOptionalKey(data []byte, key ed25519.PublicKey) []byte {
	if len(key) == 0 {
		return append(data, 0)
	}
	return append(append(data, 1), key...)
}

// decodeOptionalKey reads a 1 byte tagged optional key that must end the data.
func decodeOptionalKey(data []byte, offset int) (ed25519.PublicKey, error) {
	if len(data) < offset+1 {
		return nil, errors.Errorf("invalid data size: %d", len(data))
	}

	switch data[offset] {
	case 0:
		if len(data) != offset+1 {
			return nil, errors.Errorf("invalid data size: %d (expect %d)", len(data), offset+1)
		}
		return nil, nil
	case 1:
		if len(data) != offset+1+ed25519.PublicKeySize {
			return nil, errors.Errorf("invalid data size: %d (expect %d)", len(data), offset+1+ed25519.PublicKeySize)
		}
		return data[offset+1:], nil
	default:
		return nil, errors.Errorf("invalid option tag: %d", data[offset])
	}
}
