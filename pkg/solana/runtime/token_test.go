package runtime

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/system"
	"github.com/code-payments/token-manager-server/pkg/solana/token"
	"github.com/code-payments/token-manager-server/pkg/testutil"
)

func createMint(t *testing.T, env *testEnv, authority ed25519.PublicKey) ed25519.PublicKey {
	mint := testutil.GenerateSolanaKeypair(t)
	mintKey := testutil.PublicKey(mint)

	_, err := env.bank.SignAndProcess(
		[]ed25519.PrivateKey{env.payer, mint},
		system.CreateAccount(env.payerKey, mintKey, token.ProgramKey, env.bank.Rent().MinimumBalance(token.MintSize), token.MintSize),
		token.InitializeMint2(mintKey, authority, authority, 9),
	)
	require.NoError(t, err)
	return mintKey
}

func createAssociated(t *testing.T, env *testEnv, owner, mint ed25519.PublicKey) ed25519.PublicKey {
	ix, address, err := token.CreateAssociatedTokenAccountIdempotent(env.payerKey, owner, mint)
	require.NoError(t, err)

	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, ix)
	require.NoError(t, err)
	return address
}

func TestToken_MintAndTransfer(t *testing.T) {
	env := setup(t)
	owners := testutil.GenerateSolanaKeypairs(t, 2)

	mint := createMint(t, env, env.payerKey)

	tokenClient := token.NewClient(env.bank.Client(), mint)
	state, err := tokenClient.GetMint(solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.True(t, state.IsInitialized)
	assert.EqualValues(t, 9, state.Decimals)
	assert.Equal(t, env.payerKey, state.MintAuthority)
	assert.Equal(t, env.payerKey, state.FreezeAuthority)
	assert.Zero(t, state.Supply)

	source := createAssociated(t, env, testutil.PublicKey(owners[0]), mint)
	destination := createAssociated(t, env, testutil.PublicKey(owners[1]), mint)

	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, token.MintTo(mint, source, env.payerKey, 500))
	require.NoError(t, err)

	_, err = env.bank.SignAndProcess(
		[]ed25519.PrivateKey{env.payer, owners[0]},
		token.Transfer(source, destination, testutil.PublicKey(owners[0]), 200),
	)
	require.NoError(t, err)

	balance, _, err := env.bank.Client().GetTokenAccountBalance(source)
	require.NoError(t, err)
	assert.EqualValues(t, 300, balance)

	balance, _, err = env.bank.Client().GetTokenAccountBalance(destination)
	require.NoError(t, err)
	assert.EqualValues(t, 200, balance)

	state, err = tokenClient.GetMint(solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.EqualValues(t, 500, state.Supply)

	_, err = env.bank.SignAndProcess(
		[]ed25519.PrivateKey{env.payer, owners[0]},
		token.Transfer(source, destination, testutil.PublicKey(owners[0]), 301),
	)
	testutil.AssertInstructionError(t, err, 0, token.ErrorInsufficientFunds)

	_, err = env.bank.SignAndProcess(
		[]ed25519.PrivateKey{env.payer, owners[1]},
		token.Transfer(source, destination, testutil.PublicKey(owners[1]), 1),
	)
	testutil.AssertInstructionError(t, err, 0, token.ErrorOwnerMismatch)

	// Only the mint authority may mint
	_, err = env.bank.SignAndProcess(
		[]ed25519.PrivateKey{env.payer, owners[0]},
		token.MintTo(mint, source, testutil.PublicKey(owners[0]), 1),
	)
	testutil.AssertInstructionError(t, err, 0, token.ErrorOwnerMismatch)

	unsigned := token.MintTo(mint, source, env.payerKey, 1)
	unsigned.Accounts[2].IsSigner = false
	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{owners[0]}, unsigned)
	testutil.AssertTransactionError(t, err, solana.TransactionErrorAccountNotFound)

	_, err = env.bank.Airdrop(testutil.PublicKey(owners[0]), lamportsPerSol)
	require.NoError(t, err)
	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{owners[0]}, unsigned)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorMissingRequiredSignature)

	// Revoking the mint authority fixes the supply
	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, token.SetAuthority(mint, env.payerKey, nil, token.AuthorityTypeMintTokens))
	require.NoError(t, err)

	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, token.MintTo(mint, source, env.payerKey, 1))
	testutil.AssertInstructionError(t, err, 0, token.ErrorFixedSupply)
}

func TestToken_InitializeMint(t *testing.T) {
	env := setup(t)
	mint := testutil.GenerateSolanaKeypair(t)
	mintKey := testutil.PublicKey(mint)
	signers := []ed25519.PrivateKey{env.payer, mint}

	rent := env.bank.Rent().MinimumBalance(token.MintSize)

	_, err := env.bank.SignAndProcess(
		signers,
		system.CreateAccount(env.payerKey, mintKey, token.ProgramKey, rent-1, token.MintSize),
		token.InitializeMint2(mintKey, env.payerKey, nil, 9),
	)
	testutil.AssertInstructionError(t, err, 1, token.ErrorNotRentExempt)

	_, err = env.bank.SignAndProcess(
		signers,
		system.CreateAccount(env.payerKey, mintKey, token.ProgramKey, rent, token.MintSize-1),
		token.InitializeMint2(mintKey, env.payerKey, nil, 9),
	)
	testutil.AssertInstructionError(t, err, 1, solana.InstructionErrorInvalidAccountData)

	_, err = env.bank.SignAndProcess(
		signers,
		system.CreateAccount(env.payerKey, mintKey, token.ProgramKey, rent, token.MintSize),
		token.InitializeMint(mintKey, env.payerKey, nil, 6),
	)
	require.NoError(t, err)

	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, token.InitializeMint2(mintKey, env.payerKey, nil, 6))
	testutil.AssertInstructionError(t, err, 0, token.ErrorAlreadyInUse)

	// A system account cannot be initialized as a mint
	other := testutil.GenerateSolanaKeys(t, 1)[0]
	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, token.InitializeMint2(other, env.payerKey, nil, 6))
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorIncorrectProgramID)
}

func TestAssociatedToken(t *testing.T) {
	env := setup(t)
	owner := testutil.GenerateSolanaKeys(t, 1)[0]
	mint := createMint(t, env, env.payerKey)

	address, err := token.GetAssociatedAccount(owner, mint)
	require.NoError(t, err)

	before := env.balance(t, env.payerKey)
	ix, _, err := token.CreateAssociatedTokenAccount(env.payerKey, owner, mint)
	require.NoError(t, err)
	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, ix)
	require.NoError(t, err)

	rent := env.bank.Rent().MinimumBalance(token.AccountSize)
	assert.Equal(t, before-rent-DefaultLamportsPerSignature, env.balance(t, env.payerKey))

	_, account, err := token.NewClient(env.bank.Client(), mint).GetAssociatedAccount(owner, solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.Equal(t, owner, account.Owner)
	assert.Equal(t, mint, account.Mint)
	assert.Zero(t, account.Amount)

	// Idempotent creation is a no-op, plain creation fails
	idempotent, _, err := token.CreateAssociatedTokenAccountIdempotent(env.payerKey, owner, mint)
	require.NoError(t, err)
	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, idempotent)
	require.NoError(t, err)

	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, ix)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorIllegalOwner)

	accounts, _, err := env.bank.Client().GetFilteredProgramAccounts(token.ProgramKey, 0, mint)
	require.NoError(t, err)
	assert.Equal(t, []string{base58.Encode(address)}, accounts)

	// The address must match the seed derivation
	other := testutil.GenerateSolanaKeys(t, 1)[0]
	mismatched, _, err := token.CreateAssociatedTokenAccount(env.payerKey, other, mint)
	require.NoError(t, err)
	mismatched.Accounts[1].PublicKey = address
	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, mismatched)
	testutil.AssertInstructionError(t, err, 0, solana.InstructionErrorInvalidSeeds)
}

func TestAssociatedToken_Prefunded(t *testing.T) {
	env := setup(t)
	owner := testutil.GenerateSolanaKeys(t, 1)[0]
	mint := createMint(t, env, env.payerKey)

	address, err := token.GetAssociatedAccount(owner, mint)
	require.NoError(t, err)

	_, err = env.bank.Airdrop(address, 1000)
	require.NoError(t, err)

	createAssociated(t, env, owner, mint)

	account, ok := env.bank.GetAccount(address)
	require.True(t, ok)
	assert.Equal(t, env.bank.Rent().MinimumBalance(token.AccountSize), account.Lamports)
	assert.Equal(t, token.ProgramKey, account.Owner)
}

func TestAssociatedToken_OwnerMismatch(t *testing.T) {
	env := setup(t)
	keys := testutil.GenerateSolanaKeys(t, 2)
	owner, intruder := keys[0], keys[1]
	mint := createMint(t, env, env.payerKey)

	address, err := token.GetAssociatedAccount(owner, mint)
	require.NoError(t, err)

	planted := token.Account{Mint: mint, Owner: intruder, State: token.AccountStateInitialized}
	env.bank.SetAccount(address, &Account{
		Lamports: env.bank.Rent().MinimumBalance(token.AccountSize),
		Data:     planted.Marshal(),
		Owner:    token.ProgramKey,
	})

	ix, _, err := token.CreateAssociatedTokenAccountIdempotent(env.payerKey, owner, mint)
	require.NoError(t, err)
	_, err = env.bank.SignAndProcess([]ed25519.PrivateKey{env.payer}, ix)
	testutil.AssertInstructionError(t, err, 0, token.ErrorInvalidAssociatedOwner)
}
