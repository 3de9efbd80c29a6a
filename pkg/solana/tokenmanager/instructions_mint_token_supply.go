package tokenmanager

import (
	"bytes"
	"crypto/ed25519"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
)

const MintTokenSupplyInstructionAccountCount = 10

type MintTokenSupplyInstructionAccounts struct {
	Payer                 ed25519.PublicKey
	Recipient             ed25519.PublicKey
	RecipientTokenAccount ed25519.PublicKey
	Mint                  ed25519.PublicKey
	TokenManager          ed25519.PublicKey
	Authority             ed25519.PublicKey

	// AuthoritySigns is set for managers with a delegated authority
	AuthoritySigns bool
}

// NewMintTokenSupplyInstruction mints the manager's fixed amount to the
// recipient's associated token account, creating it when absent.
func NewMintTokenSupplyInstruction(accounts *MintTokenSupplyInstructionAccounts) solana.Instruction {
	var offset int

	data := make([]byte, 1)
	putInstructionType(data, InstructionTypeMintTokenSupply, &offset)

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
				PublicKey:  accounts.Recipient,
				IsWritable: false,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.RecipientTokenAccount,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Mint,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.TokenManager,
				IsWritable: true,
				IsSigner:   false,
			},
			{
				PublicKey:  accounts.Authority,
				IsWritable: false,
				IsSigner:   accounts.AuthoritySigns,
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

type DecompiledMintTokenSupply struct {
	Accounts MintTokenSupplyInstructionAccounts
}

func DecompileMintTokenSupply(i solana.Instruction) (*DecompiledMintTokenSupply, error) {
	if !bytes.Equal(i.Program, ProgramKey) {
		return nil, ErrInvalidProgram
	}
	if len(i.Data) != 1 || InstructionType(i.Data[0]) != InstructionTypeMintTokenSupply {
		return nil, ErrInvalidInstructionData
	}
	if len(i.Accounts) < 6 {
		return nil, ErrInvalidInstructionData
	}

	return &DecompiledMintTokenSupply{
		Accounts: MintTokenSupplyInstructionAccounts{
			Payer:                 i.Accounts[0].PublicKey,
			Recipient:             i.Accounts[1].PublicKey,
			RecipientTokenAccount: i.Accounts[2].PublicKey,
			Mint:                  i.Accounts[3].PublicKey,
			TokenManager:          i.Accounts[4].PublicKey,
			Authority:             i.Accounts[5].PublicKey,
			AuthoritySigns:        i.Accounts[5].IsSigner,
		},
	}, nil
}
