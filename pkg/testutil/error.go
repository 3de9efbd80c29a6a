package testutil

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-manager-server/pkg/solana"
)

// AssertTransactionError verifies that err is a *solana.TransactionError
// matching target, which may be a transaction key, an instruction key or a
// custom program error code.
func AssertTransactionError(t *testing.T, err error, target error) *solana.TransactionError {
	require.Error(t, err)

	var txErr *solana.TransactionError
	require.True(t, errors.As(err, &txErr), "expected a transaction error, got: %v", err)
	assert.True(t, txErr.Is(target), "expected %v, got: %v", target, txErr)
	return txErr
}

// AssertInstructionError verifies that err failed at instruction index with
// target, which is an instruction key or a custom program error code.
func AssertInstructionError(t *testing.T, err error, index int, target error) {
	txErr := AssertTransactionError(t, err, target)
	require.NotNil(t, txErr.InstructionError())
	assert.Equal(t, index, txErr.InstructionError().Index)
}
