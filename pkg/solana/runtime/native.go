package runtime

import (
	"unicode/utf8"

	"github.com/mr-tron/base58"

	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/computebudget"
)

// processMemo accepts any UTF-8 memo as long as every referenced account signed.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/memo/program/src/processor.rs
func processMemo(ic *InvokeContext, data []byte) error {
	for _, account := range ic.Accounts() {
		if !account.IsSigner {
			ic.Log("memo: %s did not sign", base58.Encode(account.Key))
			return solana.InstructionErrorMissingRequiredSignature
		}
	}

	if !utf8.Valid(data) {
		return solana.InstructionErrorInvalidInstructionData
	}

	ic.Log("memo (len %d): %q", len(data), data)
	return nil
}

// processComputeBudget validates the instruction. The settings themselves are
// applied before execution when the fee is computed.
func processComputeBudget(ic *InvokeContext, data []byte) error {
	if len(data) == 0 {
		return solana.InstructionErrorInvalidInstructionData
	}

	var err error
	switch computebudget.Command(data[0]) {
	case computebudget.CommandSetComputeUnitLimit:
		_, err = computebudget.ParseSetComputeUnitLimitIxnData(data)
	case computebudget.CommandSetComputeUnitPrice:
		_, err = computebudget.ParseSetComputeUnitPriceIxnData(data)
	default:
		return solana.InstructionErrorInvalidInstructionData
	}
	if err != nil {
		return mapDecodeError(err)
	}
	return nil
}
