package solana

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	d := json.NewDecoder(bytes.NewBufferString(`{"InstructionError":[2,{"Custom":3}]}`))

	var raw interface{}
	assert.NoError(t, d.Decode(&raw))

	e, err := ParseTransactionError(raw)
	assert.NoError(t, err)

	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	assert.NotNil(t, e.InstructionError())
	assert.Equal(t, 2, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorCustom, e.InstructionError().ErrorKey())
	assert.NotNil(t, e.InstructionError().CustomError())
	assert.Equal(t, CustomError(3), *e.InstructionError().CustomError())

	d = json.NewDecoder(bytes.NewBufferString(`{"InstructionError":[0,"InvalidArgument"]}`))
	assert.NoError(t, d.Decode(&raw))

	e, err = ParseTransactionError(raw)
	assert.NoError(t, err)

	assert.Equal(t, TransactionErrorInstructionError, e.ErrorKey())
	assert.NotNil(t, e.InstructionError())
	assert.Equal(t, 0, e.InstructionError().Index)
	assert.Equal(t, InstructionErrorInvalidArgument, e.InstructionError().ErrorKey())

	d = json.NewDecoder(bytes.NewBufferString(`"DuplicateSignature"`))
	assert.NoError(t, d.Decode(&raw))

	e, err = ParseTransactionError(raw)
	assert.NoError(t, err)

	assert.Equal(t, TransactionErrorDuplicateSignature, e.ErrorKey())
	assert.Nil(t, e.InstructionError())
}

func TestNew(t *testing.T) {
	d := json.NewDecoder(bytes.NewBufferString(`"DuplicateSignature"`))
	var expected interface{}
	assert.NoError(t, d.Decode(&expected))

	e := NewTransactionError(TransactionErrorDuplicateSignature)
	assert.Equal(t, expected, e.raw)

	d = json.NewDecoder(bytes.NewBufferString(`{"InstructionError":[0,"InvalidArgument"]}`))
	assert.NoError(t, d.Decode(&expected))
	e, err := TransactionErrorFromInstructionError(&InstructionError{
		Index: 0,
		Err:   InstructionErrorInvalidArgument,
	})
	assert.NoError(t, err)
	assert.Equal(t, expected, e.raw)

	d = json.NewDecoder(bytes.NewBufferString(`{"InstructionError":[2,{"Custom":3}]}`))
	assert.NoError(t, d.Decode(&expected))
	e, err = TransactionErrorFromInstructionError(&InstructionError{
		Index: 2,
		Err:   CustomError(3),
	})
	assert.NoError(t, err)
	assert.Equal(t, expected, e.raw)
}

func TestParseJSONNumber(t *testing.T) {
	tc := []interface{}{
		"1",
		1.0,
		json.Number("1"),
	}
	for i, c := range tc {
		v, err := parseJSONNumber(c)
		assert.NoError(t, err)
		assert.Equal(t, 1, v, i)
	}
}

func TestNewInstructionError(t *testing.T) {
	ie := NewInstructionError(1, CustomError(6002))
	assert.Equal(t, 1, ie.Index)
	assert.Equal(t, InstructionErrorCustom, ie.ErrorKey())
	assert.Equal(t, CustomError(6002), *ie.CustomError())

	ie = NewInstructionError(0, errors.Wrap(InstructionErrorPrivilegeEscalation, "cpi"))
	assert.Equal(t, InstructionErrorPrivilegeEscalation, ie.ErrorKey())

	// Errors raised deep in a call chain are re-indexed to the top level instruction
	ie = NewInstructionError(3, &InstructionError{Index: 0, Err: InstructionErrorMissingRequiredSignature})
	assert.Equal(t, 3, ie.Index)
	assert.Equal(t, InstructionErrorMissingRequiredSignature, ie.ErrorKey())

	ie = NewInstructionError(0, errors.New("boom"))
	assert.Equal(t, InstructionErrorGenericError, ie.ErrorKey())
}

func TestTransactionError_Is(t *testing.T) {
	txErr, err := TransactionErrorFromInstructionError(NewInstructionError(0, CustomError(6001)))
	assert.NoError(t, err)

	assert.True(t, errors.Is(txErr, TransactionErrorInstructionError))
	assert.True(t, errors.Is(txErr, CustomError(6001)))
	assert.False(t, errors.Is(txErr, CustomError(6002)))
	assert.False(t, errors.Is(txErr, InstructionErrorPrivilegeEscalation))

	code, ok := txErr.CustomErrorCode()
	assert.True(t, ok)
	assert.EqualValues(t, 6001, code)

	inUse := NewTransactionError(TransactionErrorAccountInUse)
	assert.True(t, errors.Is(inUse, TransactionErrorAccountInUse))
	_, ok = inUse.CustomErrorCode()
	assert.False(t, ok)
}
