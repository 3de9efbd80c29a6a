package tokenmanager

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/binary"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
)

const (
	CreateTokenManagerInstructionArgsSize = (1 + // seed_scheme
		32 + // authority
		1 + // decimals
		8 + // mint_amount
		8) // initial_supply

	CreateTokenManagerInstructionAccountCount = 8
)

type CreateTokenManagerInstructionArgs struct {
	SeedScheme    SeedScheme
	Authority     ed25519.PublicKey
	Decimals      uint8
	MintAmount    uint64
	InitialSupply uint64
}

type CreateTokenManagerInstructionAccounts struct {
	Payer             ed25519.PublicKey
	Mint              ed25519.PublicKey
	TokenManager      ed25519.PublicKey
	PayerTokenAccount ed25519.PublicKey

	// FreshMint marks the mint as a new account created by the instruction,
	// which requires the mint keypair to sign.
	FreshMint bool
}

// NewCreateTokenManagerInstruction creates a token manager for a mint. With a
// fresh mint the program creates and initializes the mint itself. Otherwise
// the payer must be the mint's current mint and freeze authority, and hands
// both over to the manager.
func NewCreateTokenManagerInstruction(
	accounts *CreateTokenManagerInstructionAccounts,
	args *CreateTokenManagerInstructionArgs,
) solana.Instruction {
	var offset int

	// Serialize instruction arguments
	data := make([]byte, 1+CreateTokenManagerInstructionArgsSize)

	authority := args.Authority
	if authority == nil {
		authority = make([]byte, ed25519.PublicKeySize)
	}

	putInstructionType(data, InstructionTypeCreateTokenManager, &offset)
	binary.PutUint8(data[offset:], uint8(args.SeedScheme), &offset)
	binary.PutKey32(data[offset:], authority, &offset)
	binary.PutUint8(data[offset:], args.Decimals, &offset)
	binary.PutUint64(data[offset:], args.MintAmount, &offset)
	binary.PutUint64(data[offset:], args.InitialSupply, &offset)

	return solana.Instruction{
		Program: ProgramKey,

		// Instruction args
		Data: data,

		// Instruction accounts
		Accounts: []solana.AccountMeta{
			{
				PublicKey:  accounts.Payer,
				IsWritable: true,
				IsSigner:   true,
			},
			{
				PublicKey:  accounts.Mint,
				IsWritable: true,
				IsSigner:   accounts.FreshMint,
			},
			{
				PublicKey:  accounts.TokenManager,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.PayerTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  system.ProgramKey[:],
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  token.ProgramKey,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  token.AssociatedTokenAccountProgramKey,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  system.RentSysVar,
				IsWritable: false,
				IsSigner:   false,
			},
		},
	}
}

type DecompiledCreateTokenManager struct {
	Accounts CreateTokenManagerInstructionAccounts
	Args     CreateTokenManagerInstructionArgs
}

// DecompileCreateTokenManager parses a create instruction. Only the leading
// accounts are required, program references are resolved by the runtime.
func DecompileCreateTokenManager(i solana.Instruction) (*DecompiledCreateTokenManager, error) {
	if !bytes.Equal(i.Program, ProgramKey) {
		return nil, ErrInvalidProgram
	}
	if len(i.Data) != 1+CreateTokenManagerInstructionArgsSize {
		return nil, ErrInvalidInstructionData
	}
	if len(i.Accounts) < 4 {
		return nil, ErrInvalidInstructionData
	}

	var offset int
	var instructionType InstructionType
	getInstructionType(i.Data, &instructionType, &offset)
	if instructionType != InstructionTypeCreateTokenManager {
		return nil, ErrInvalidInstructionData
	}

	var res DecompiledCreateTokenManager
	var scheme uint8
	binary.GetUint8(i.Data[offset:], &scheme, &offset)
	binary.GetKey32(i.Data[offset:], &res.Args.Authority, &offset)
	binary.GetUint8(i.Data[offset:], &res.Args.Decimals, &offset)
	binary.GetUint64(i.Data[offset:], &res.Args.MintAmount, &offset)
	binary.GetUint64(i.Data[offset:], &res.Args.InitialSupply, &offset)
	res.Args.SeedScheme = SeedScheme(scheme)

	res.Accounts = CreateTokenManagerInstructionAccounts{
		Payer:             i.Accounts[0].PublicKey,
		Mint:              i.Accounts[1].PublicKey,
		TokenManager:      i.Accounts[2].PublicKey,
		PayerTokenAccount: i.Accounts[3].PublicKey,
		FreshMint:         i.Accounts[1].IsSigner,
	}

	return &res, nil
}
