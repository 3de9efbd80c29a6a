package computebudget

import (
	"crypto/ed25519"
	"math"
	"testing"

	"github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/memo"
)

func TestProgramKey(t *testing.T) {
	assert.Equal(t, "ComputeBudget111111111111111111111111111111", base58.Encode(ProgramKey))
}

func TestSetComputeUnitLimit(t *testing.T) {
	ix := SetComputeUnitLimit(300_000)

	cmd, err := GetCommand(ix)
	require.NoError(t, err)
	assert.Equal(t, CommandSetComputeUnitLimit, cmd)

	limit, err := ParseSetComputeUnitLimitIxnData(ix.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 300_000, limit)

	_, err = ParseSetComputeUnitPriceIxnData(ix.Data)
	assert.Error(t, err)

	_, err = ParseSetComputeUnitLimitIxnData(ix.Data[:4])
	assert.Error(t, err)
}

func TestSetComputeUnitPrice(t *testing.T) {
	ix := SetComputeUnitPrice(10_000)

	price, err := ParseSetComputeUnitPriceIxnData(ix.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 10_000, price)

	ix.Data[0] = byte(CommandSetComputeUnitLimit)
	_, err = ParseSetComputeUnitPriceIxnData(ix.Data)
	assert.Equal(t, solana.ErrIncorrectInstruction, err)
}

func TestParseBudget(t *testing.T) {
	signer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	budget, err := ParseBudget([]solana.Instruction{
		memo.Instruction("a", signer),
		memo.Instruction("b", signer),
	})
	require.NoError(t, err)
	assert.False(t, budget.HasUnitLimit)
	assert.EqualValues(t, 2*DefaultComputeUnitLimit, budget.Limit())
	assert.Zero(t, budget.PriorityFee())

	budget, err = ParseBudget([]solana.Instruction{
		SetComputeUnitLimit(100_000),
		SetComputeUnitPrice(25),
		memo.Instruction("a", signer),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 100_000, budget.Limit())
	// 25 * 100_000 / 1_000_000 = 2.5, rounded up
	assert.EqualValues(t, 3, budget.PriorityFee())

	budget, err = ParseBudget([]solana.Instruction{SetComputeUnitLimit(math.MaxUint32)})
	require.NoError(t, err)
	assert.EqualValues(t, MaxComputeUnitLimit, budget.Limit())

	budget, err = ParseBudget([]solana.Instruction{SetComputeUnitLimit(MaxComputeUnitLimit), SetComputeUnitPrice(math.MaxUint64)})
	require.NoError(t, err)
	assert.EqualValues(t, uint64(math.MaxUint64), budget.PriorityFee())

	_, err = ParseBudget([]solana.Instruction{memo.Instruction("a", signer), SetComputeUnitPrice(1), SetComputeUnitPrice(2)})
	require.Error(t, err)
	ixnErr, ok := err.(*solana.InstructionError)
	require.True(t, ok)
	assert.Equal(t, 2, ixnErr.Index)
	assert.Equal(t, solana.InstructionErrorInvalidInstructionData, ixnErr.ErrorKey())

	_, err = ParseBudget([]solana.Instruction{solana.NewInstruction(ProgramKey, nil)})
	assert.Error(t, err)

	_, err = ParseBudget([]solana.Instruction{solana.NewInstruction(ProgramKey, []byte{byte(CommandRequestHeapFrame), 0, 0, 0, 0})})
	assert.Error(t, err)
}
