package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
)

func TestGetCommand_Error(t *testing.T) {
	keys := generateKeys(t, 2)

	// invalid program
	cmd, err := GetCommand(solana.NewInstruction(keys[1], []byte{}))
	assert.Equal(t, CommandUnknown, cmd)
	assert.Equal(t, solana.ErrIncorrectProgram, err)

	// no data
	cmd, err = GetCommand(solana.NewInstruction(ProgramKey, []byte{}))
	assert.Equal(t, CommandUnknown, cmd)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "missing data")
}

func TestInitializeMint(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := InitializeMint(keys[0], keys[1], keys[2], 9)
	require.Len(t, instruction.Data, 67)
	assert.EqualValues(t, CommandInitializeMint, instruction.Data[0])
	assert.EqualValues(t, 9, instruction.Data[1])
	assert.EqualValues(t, keys[1], instruction.Data[2:34])
	assert.EqualValues(t, 1, instruction.Data[34])
	assert.EqualValues(t, keys[2], instruction.Data[35:])

	assert.False(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.EqualValues(t, system.RentSysVar, instruction.Accounts[1].PublicKey)

	decompiled, err := DecompileInitializeMint(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Mint)
	assert.EqualValues(t, keys[1], decompiled.MintAuthority)
	assert.EqualValues(t, keys[2], decompiled.FreezeAuthority)
	assert.EqualValues(t, 9, decompiled.Decimals)

	noFreeze := InitializeMint2(keys[0], keys[1], nil, 6)
	require.Len(t, noFreeze.Data, 35)
	require.Len(t, noFreeze.Accounts, 1)

	decompiled, err = DecompileInitializeMint(noFreeze)
	require.NoError(t, err)
	assert.Nil(t, decompiled.FreezeAuthority)
	assert.EqualValues(t, 6, decompiled.Decimals)

	noFreeze.Data[34] = 2
	_, err = DecompileInitializeMint(noFreeze)
	assert.Error(t, err)

	instruction.Accounts[1].PublicKey = keys[2]
	_, err = DecompileInitializeMint(instruction)
	assert.Error(t, err)
}

func TestInitializeAccount(t *testing.T) {
	keys := generateKeys(t, 4)

	instruction := InitializeAccount(keys[0], keys[1], keys[2])

	assert.Equal(t, []byte{1}, instruction.Data)
	assert.False(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	for i := 1; i < 4; i++ {
		assert.False(t, instruction.Accounts[i].IsSigner)
		assert.False(t, instruction.Accounts[i].IsWritable)
	}

	decompiled, err := DecompileInitializeAccount(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Account)
	assert.Equal(t, keys[1], decompiled.Mint)
	assert.Equal(t, keys[2], decompiled.Owner)

	cmd, err := GetCommand(instruction)
	require.NoError(t, err)
	assert.Equal(t, CommandInitializeAccount, cmd)

	instruction.Accounts[3].PublicKey = keys[3]
	_, err = DecompileInitializeAccount(instruction)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rent sysvar")

	instruction.Accounts = instruction.Accounts[:2]
	_, err = DecompileInitializeAccount(instruction)
	assert.Error(t, err)

	instruction3 := InitializeAccount3(keys[0], keys[1], keys[2])
	assert.Len(t, instruction3.Accounts, 2)

	decompiled, err = DecompileInitializeAccount(instruction3)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Account)
	assert.Equal(t, keys[1], decompiled.Mint)
	assert.EqualValues(t, keys[2], decompiled.Owner)
}

func TestSetAuthority(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := SetAuthority(keys[0], keys[1], keys[2], AuthorityTypeMintTokens)
	assert.Equal(t, []byte{byte(CommandSetAuthority), 0, 1}, instruction.Data[:3])
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsSigner)
	assert.False(t, instruction.Accounts[1].IsWritable)

	decompiled, err := DecompileSetAuthority(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Account)
	assert.Equal(t, keys[1], decompiled.CurrentAuthority)
	assert.EqualValues(t, keys[2], decompiled.NewAuthority)
	assert.Equal(t, AuthorityTypeMintTokens, decompiled.Type)

	revoke := SetAuthority(keys[0], keys[1], nil, AuthorityTypeFreezeAccount)
	assert.Equal(t, []byte{byte(CommandSetAuthority), 1, 0}, revoke.Data)

	decompiled, err = DecompileSetAuthority(revoke)
	require.NoError(t, err)
	assert.Nil(t, decompiled.NewAuthority)
	assert.Equal(t, AuthorityTypeFreezeAccount, decompiled.Type)

	revoke.Data = append(revoke.Data, 1)
	_, err = DecompileSetAuthority(revoke)
	assert.Error(t, err)
}

func TestMintTo(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := MintTo(keys[0], keys[1], keys[2], 100_000_000_000)

	amount := make([]byte, 8)
	binary.LittleEndian.PutUint64(amount, 100_000_000_000)
	assert.EqualValues(t, CommandMintTo, instruction.Data[0])
	assert.Equal(t, amount, instruction.Data[1:])

	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)
	assert.False(t, instruction.Accounts[2].IsWritable)

	decompiled, err := DecompileMintTo(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Mint)
	assert.Equal(t, keys[1], decompiled.Destination)
	assert.Equal(t, keys[2], decompiled.Authority)
	assert.EqualValues(t, 100_000_000_000, decompiled.Amount)

	_, err = DecompileTransfer(instruction)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)

	instruction.Data = instruction.Data[:5]
	_, err = DecompileMintTo(instruction)
	assert.Error(t, err)
}

func TestTransfer(t *testing.T) {
	keys := generateKeys(t, 3)

	instruction := Transfer(keys[0], keys[1], keys[2], 123456789)

	expectedAmount := make([]byte, 8)
	binary.LittleEndian.PutUint64(expectedAmount, 123456789)

	assert.EqualValues(t, CommandTransfer, instruction.Data[0])
	assert.EqualValues(t, expectedAmount, instruction.Data[1:])

	assert.False(t, instruction.Accounts[0].IsSigner)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.False(t, instruction.Accounts[1].IsSigner)
	assert.True(t, instruction.Accounts[1].IsWritable)
	assert.True(t, instruction.Accounts[2].IsSigner)
	assert.False(t, instruction.Accounts[2].IsWritable)

	decompiled, err := DecompileTransfer(instruction)
	require.NoError(t, err)
	assert.Equal(t, keys[0], decompiled.Source)
	assert.Equal(t, keys[1], decompiled.Destination)
	assert.Equal(t, keys[2], decompiled.Owner)
	assert.EqualValues(t, 123456789, decompiled.Amount)

	instruction.Accounts = instruction.Accounts[:2]
	_, err = DecompileTransfer(instruction)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number of accounts")
}

func generateKeys(t *testing.T, amount int) []ed25519.PublicKey {
	keys := make([]ed25519.PublicKey, amount)

	for i := 0; i < amount; i++ {
		pub, _, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = pub
	}

	return keys
}
