package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Taken from: https://github.com/solana-labs/solana/blob/14339dec0a960e8161d1165b6a8e5cfb73e78f23/sdk/src/transaction.rs#L523
const rustGenerated = "AUc7Cbu+gZalFSGeSFdukHhP7oSGaSdmdNEd5ZokaSysdoMWfIOzjrAbdaBZZuDMAfyNAogAJdrhgVya+jthsgoBAAEDnON0wdcmjhYIDuXvd10F2qEjAyEAJGSe/CGhYbk+WWMBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

// The above example does not have the correct public key encoded in the keypair.
// This is the above example with the correctly generated keypair.
const rustGeneratedAdjusted = "ATMfBMZ8phHEheLph8K9TJhRKhnE4qNZvWiXdUdJRmlTCRsQjWmW2CkQJeRHBCcsqFm2gynjL40M9mTe0Dxp4QIBAAEDfEya6wnC7f3Cv53qnOEywwIJ928rIdqAlfXYI1adXroBAQEEBQYHCAkJCQkJCQkJCQkJCQkJCQkIBwYFBAEBAQICAgQFBgcICQEBAQEBAQEBAQEBAQEBCQgHBgUEAgICAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAABAgIAAQMBAgM="

// An encoded mainnet transaction.
const mainnetTransaction = "AaZAGNONKTsNypCfvwHGipcWmAX/J03VfLQEHgMDSuHz0ktydqlLb7I4tZnX0Yw8KMTbma28M+yiZPaRolOJGgwBAAgQCR2hNbdxjAiYwC9CSEo2Vso3yq8OXlgoCbepyseaRXoIFE8MTz2ZtOsdNl55fj/zi0S+ArjIP4zJ3Y+MC4tKyQu7s1JPy6Hur6YbU0nF+1XBJYwii/dKtLsNFU/pTo19J7jOgutpJBZbNIhC5ppqC/OYlbzW1KqamkV3p+cslAoyBJxvWrSMXX+X0Ih0+sEzarslIYSV0T/NuLFcjpX8S7ajCdht+3+POhvGcGFzDyc4kIgjN/SAdypJM1Grs+eEtzXhQGM4VMy0p0J2CiOH+k2kwfya5F7fSaYXWOi3CJUGp9UXGSxWjuCKhF9z0peIzwNcMUWyGrNE2AYuqUAAAAan1RcZLFxRIYzJTD1K8X9Y2u4Im6H9ROPb2YoAAAAABt324ddloZPZy+FGzut5rBy0he1fWzeROoz1hX7/AKlDDB9w5G7eh4xhLJIgxblM0E4dxW+ZTABRcCVBt2LcH8b6evO+2606PWXzaqvJdDGxu+TC0vbg5HymAgNFL11hDcYoaKd+VYB6HNWIyaKadms+4q7NwH3gjP6RB91LMWUAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAMGRm/lIRcy/+ytunLDm+e8jOW7xfcSayxDmzpAAAAAjJclj04kifG7PRApFI4NgwtaE5na/xCEBI572Nvp+FmMVCZzhQC2pwD9u6aAm8haUDNRSZG/a7c1U/ltYtc+KAUNAwIHAAQEAAAADgAJA+gDAAAAAAAADgAFAkjoAQAPBwADCgsNCQgBAQwLAAUBBAwMBgwMAwlcCAoCAAAAmhMJCgIAAAAAAUgAAABlmEW1THFmZqyjBehuSli5bMSJBNiQMkZcr19LINSM4KF/whE1IayV174tmVwC9MMlQSmG3j6aJVhIDGMUITUNXRMTAAAAAAA="

func TestLegacyTransaction_CrossImpl(t *testing.T) {
	keypair := ed25519.PrivateKey{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75, 156, 227, 116, 193, 215, 38, 142, 22, 8,
		14, 229, 239, 119, 93, 5, 218, 161, 35, 3, 33, 0, 36, 100, 158, 252, 33, 161, 97, 185,
		62, 89, 99}
	programID := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4,
		2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	tx := NewTransaction(
		keypair.Public().(ed25519.PublicKey),
		NewInstruction(
			programID,
			[]byte{1, 2, 3},
			NewAccountMeta(keypair.Public().(ed25519.PublicKey), true),
			NewAccountMeta(to, false),
		),
	)
	require.NoError(t, tx.Sign(keypair))

	generated, err := base64.StdEncoding.DecodeString(rustGenerated)
	require.NoError(t, err)
	assert.Equal(t, generated, tx.Marshal())
}

func TestLegacyTransaction_GenerateValidCrossImpl(t *testing.T) {
	keypair := ed25519.NewKeyFromSeed([]byte{48, 83, 2, 1, 1, 48, 5, 6, 3, 43, 101, 112, 4, 34, 4, 32, 255, 101, 36, 24, 124, 23,
		167, 21, 132, 204, 155, 5, 185, 58, 121, 75})
	programID := ed25519.PublicKey{2, 2, 2, 4, 5, 6, 7, 8, 9, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 9, 8, 7, 6, 5, 4,
		2, 2, 2}
	to := ed25519.PublicKey{1, 1, 1, 4, 5, 6, 7, 8, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 8, 7, 6, 5, 4, 1, 1, 1}

	tx := NewTransaction(
		keypair.Public().(ed25519.PublicKey),
		NewInstruction(
			programID,
			[]byte{1, 2, 3},
			NewAccountMeta(keypair.Public().(ed25519.PublicKey), true),
			NewAccountMeta(to, false),
		),
	)
	require.NoError(t, tx.Sign(keypair))
	assert.Equal(t, rustGeneratedAdjusted, base64.StdEncoding.EncodeToString(tx.Marshal()))
}

func TestLegacyTransaction_RoundTrip(t *testing.T) {
	keys := generateKeys(t, 3)
	payer, program := keys[0], keys[1]

	for name, tx := range map[string]Transaction{
		"no blockhash": NewTransaction(public(payer), NewInstruction(public(program), []byte{1, 2, 3}, NewAccountMeta(public(payer), false))),
		"no data":      NewTransaction(public(payer), NewInstruction(public(program), nil, NewReadonlyAccountMeta(public(keys[2]), false))),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tx.Sign(payer))

			var decoded Transaction
			require.NoError(t, decoded.Unmarshal(tx.Marshal()))
			assert.Equal(t, tx.Marshal(), decoded.Marshal())
		})
	}

	encoded, err := base64.StdEncoding.DecodeString(mainnetTransaction)
	require.NoError(t, err)
	var txn Transaction
	require.NoError(t, txn.Unmarshal(encoded))
	assert.Equal(t, encoded, txn.Marshal())
}

func TestLegacyTransaction_UnmarshalInvalid(t *testing.T) {
	keys := generateKeys(t, 2)
	build := func() Transaction {
		return NewTransaction(public(keys[0]), NewInstruction(public(keys[1]), []byte{1}, NewAccountMeta(public(keys[0]), true)))
	}

	var tx Transaction
	assert.Error(t, tx.Unmarshal(nil))

	outOfRangeProgram := build()
	outOfRangeProgram.Message.Instructions[0].ProgramIndex = 2
	assert.Error(t, tx.Unmarshal(outOfRangeProgram.Marshal()))

	outOfRangeAccount := build()
	outOfRangeAccount.Message.Instructions[0].Accounts = []byte{2}
	assert.Error(t, tx.Unmarshal(outOfRangeAccount.Marshal()))

	truncated := build().Marshal()
	assert.Error(t, tx.Unmarshal(truncated[:len(truncated)-1]))

	versioned := build()
	versioned.Message.Header.NumSignatures |= 0x80
	assert.Error(t, tx.Unmarshal(versioned.Marshal()))
}

// accountLayout is the expected position and privilege of an account in a
// compiled message.
type accountLayout struct {
	key      ed25519.PublicKey
	signer   bool
	writable bool
}

func assertLayout(t *testing.T, tx Transaction, expected []accountLayout) {
	require.Len(t, tx.Message.Accounts, len(expected))

	message := tx.Message.Marshal()
	for i, account := range expected {
		assert.Equal(t, account.key, tx.Message.Accounts[i], "account %d", i)
		assert.Equal(t, account.signer, tx.Message.IsSigner(i), "signer %d", i)
		assert.Equal(t, account.writable, tx.Message.IsWritable(i), "writable %d", i)

		if account.signer {
			assert.True(t, ed25519.Verify(account.key, message, tx.Signatures[i][:]), "signature %d", i)
		}
	}
}

func sortedKeys(t *testing.T, amount int) []ed25519.PrivateKey {
	keys := generateKeys(t, amount)
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(public(keys[i]), public(keys[j])) < 0
	})
	return keys
}

func TestNewTransaction_AccountOrdering(t *testing.T) {
	payer, program := generateKeys(t, 1)[0], generateKeys(t, 1)[0]
	keys := sortedKeys(t, 4)
	data := []byte{1, 2, 3}

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			data,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
		),
	)

	// Signing order doesn't matter
	require.NoError(t, tx.Sign(keys[0], keys[3], payer))
	require.Len(t, tx.Signatures, 3)

	assert.EqualValues(t, 3, tx.Message.Header.NumSignatures)
	assert.EqualValues(t, 1, tx.Message.Header.NumReadonlySigned)
	assert.EqualValues(t, 2, tx.Message.Header.NumReadOnly)

	assertLayout(t, tx, []accountLayout{
		{public(payer), true, true},
		{public(keys[3]), true, true},
		{public(keys[0]), true, false},
		{public(keys[2]), false, true},
		{public(keys[1]), false, false},
		{public(program), false, false},
	})

	ix := tx.Message.Instructions[0]
	assert.EqualValues(t, 5, ix.ProgramIndex)
	assert.Equal(t, data, ix.Data)
	assert.Equal(t, []byte{2, 4, 3, 1}, ix.Accounts)
}

func TestNewTransaction_PrivilegePromotion(t *testing.T) {
	payer, program := generateKeys(t, 1)[0], generateKeys(t, 1)[0]
	keys := sortedKeys(t, 4)

	// Repeated accounts take the union of their privileges
	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			nil,
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
			NewAccountMeta(public(keys[0]), false),
			NewReadonlyAccountMeta(public(keys[1]), true),
			NewReadonlyAccountMeta(public(keys[2]), false),
			NewReadonlyAccountMeta(public(keys[3]), false),
		),
	)
	require.NoError(t, tx.Sign(keys[0], keys[1], keys[3], payer))
	require.Len(t, tx.Signatures, 4)

	assert.EqualValues(t, 4, tx.Message.Header.NumSignatures)
	assert.EqualValues(t, 1, tx.Message.Header.NumReadonlySigned)
	assert.EqualValues(t, 1, tx.Message.Header.NumReadOnly)

	assertLayout(t, tx, []accountLayout{
		{public(payer), true, true},
		{public(keys[0]), true, true},
		{public(keys[3]), true, true},
		{public(keys[1]), true, false},
		{public(keys[2]), false, true},
		{public(program), false, false},
	})
	assert.Equal(t, []byte{1, 3, 4, 2, 1, 3, 4, 2}, tx.Message.Instructions[0].Accounts)
}

func TestNewTransaction_MultipleInstructions(t *testing.T) {
	programs := sortedKeys(t, 3)
	payer, program, program2 := programs[0], programs[1], programs[2]
	keys := sortedKeys(t, 6)

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program2),
			[]byte{1, 2, 3},
			NewReadonlyAccountMeta(public(keys[0]), true),
			NewReadonlyAccountMeta(public(keys[1]), false),
			NewAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[3]), true),
		),
		NewInstruction(
			public(program),
			[]byte{3, 4, 5},
			NewReadonlyAccountMeta(public(keys[3]), false),
			NewReadonlyAccountMeta(public(keys[2]), false),
			NewAccountMeta(public(keys[0]), false),
			NewAccountMeta(public(keys[1]), true),
			NewAccountMeta(public(keys[4]), true),
			NewReadonlyAccountMeta(public(keys[5]), false),
		),
	)
	require.NoError(t, tx.Sign(payer, keys[0], keys[1], keys[3], keys[4]))
	require.Len(t, tx.Signatures, 5)

	assert.EqualValues(t, 5, tx.Message.Header.NumSignatures)
	assert.EqualValues(t, 0, tx.Message.Header.NumReadonlySigned)
	assert.EqualValues(t, 3, tx.Message.Header.NumReadOnly)

	assertLayout(t, tx, []accountLayout{
		{public(payer), true, true},
		{public(keys[0]), true, true},
		{public(keys[1]), true, true},
		{public(keys[3]), true, true},
		{public(keys[4]), true, true},
		{public(keys[2]), false, true},
		{public(keys[5]), false, false},
		{public(program), false, false},
		{public(program2), false, false},
	})

	assert.EqualValues(t, 8, tx.Message.Instructions[0].ProgramIndex)
	assert.Equal(t, []byte{1, 2, 5, 3}, tx.Message.Instructions[0].Accounts)
	assert.EqualValues(t, 7, tx.Message.Instructions[1].ProgramIndex)
	assert.Equal(t, []byte{3, 5, 1, 2, 4, 6}, tx.Message.Instructions[1].Accounts)
}

func TestTransaction_VerifySignatures(t *testing.T) {
	keys := generateKeys(t, 3)
	payer, signer, program := keys[0], keys[1], keys[2]

	tx := NewTransaction(
		public(payer),
		NewInstruction(
			public(program),
			[]byte{1},
			NewAccountMeta(public(signer), true),
		),
	)
	tx.SetBlockhash(Blockhash{1, 2, 3})

	require.NoError(t, tx.Sign(payer))
	assert.True(t, errors.Is(tx.VerifySignatures(), ErrMissingSignature))

	require.NoError(t, tx.Sign(signer))
	assert.NoError(t, tx.VerifySignatures())

	tx.Signatures[1][0] ^= 0xff
	assert.True(t, errors.Is(tx.VerifySignatures(), ErrInvalidSignature))

	tx.Signatures[1][0] ^= 0xff
	tx.SetBlockhash(Blockhash{4, 5, 6})
	assert.True(t, errors.Is(tx.VerifySignatures(), ErrInvalidSignature))
}

func TestMessage_DecompileInstructions(t *testing.T) {
	keys := generateKeys(t, 5)
	payer, program := keys[0], keys[1]

	expected := NewInstruction(
		public(program),
		[]byte{7, 8},
		NewAccountMeta(public(payer), true),
		NewReadonlyAccountMeta(public(keys[2]), true),
		NewAccountMeta(public(keys[3]), false),
		NewReadonlyAccountMeta(public(keys[4]), false),
	)

	tx := NewTransaction(public(payer), expected)
	decompiled, err := tx.Message.DecompileInstructions()
	require.NoError(t, err)
	require.Len(t, decompiled, 1)

	assert.Equal(t, expected.Program, decompiled[0].Program)
	assert.Equal(t, expected.Data, decompiled[0].Data)
	require.Len(t, decompiled[0].Accounts, len(expected.Accounts))
	for i := range expected.Accounts {
		assert.Equal(t, expected.Accounts[i].PublicKey, decompiled[0].Accounts[i].PublicKey)
		assert.Equal(t, expected.Accounts[i].IsSigner, decompiled[0].Accounts[i].IsSigner)
		assert.Equal(t, expected.Accounts[i].IsWritable, decompiled[0].Accounts[i].IsWritable)
	}

	assert.False(t, tx.Message.IsWritable(int(tx.Message.Instructions[0].ProgramIndex)))
	assert.False(t, tx.Message.IsSigner(int(tx.Message.Instructions[0].ProgramIndex)))
}

func TestMessage_Sanitize(t *testing.T) {
	keys := generateKeys(t, 2)

	tx := NewTransaction(
		public(keys[0]),
		NewInstruction(public(keys[1]), nil, NewAccountMeta(public(keys[0]), true)),
	)
	require.NoError(t, tx.Message.Sanitize())

	bad := tx.Message
	bad.Instructions = []CompiledInstruction{{ProgramIndex: 0}}
	assert.True(t, errors.Is(bad.Sanitize(), ErrMalformedMessage))

	bad = tx.Message
	bad.Accounts = []ed25519.PublicKey{public(keys[0]), public(keys[0])}
	assert.True(t, errors.Is(bad.Sanitize(), ErrMalformedMessage))

	bad = tx.Message
	bad.Header.NumReadonlySigned = 1
	assert.True(t, errors.Is(bad.Sanitize(), ErrMalformedMessage))
}

func public(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

func generateKeys(t *testing.T, amount int) []ed25519.PrivateKey {
	keys := make([]ed25519.PrivateKey, amount)

	for i := 0; i < amount; i++ {
		_, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		keys[i] = priv
	}

	return keys
}
