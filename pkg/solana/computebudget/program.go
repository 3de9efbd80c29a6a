package computebudget

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/code-payments/token-manager-server/pkg/solana"
)

// ProgramKey is the address of the compute budget program.
//
// Current key: ComputeBudget111111111111111111111111111111
var ProgramKey = ed25519.PublicKey{3, 6, 70, 111, 229, 33, 23, 50, 255, 236, 173, 186, 114, 195, 155, 231, 188, 140, 229, 187, 197, 247, 18, 107, 44, 67, 155, 58, 64, 0, 0, 0}

// MaxComputeUnitLimit is the upper bound a transaction may request.
const MaxComputeUnitLimit = 1_400_000

// DefaultComputeUnitLimit is applied per instruction when no explicit limit is set.
const DefaultComputeUnitLimit = 200_000

type Command uint8

const (
	CommandRequestUnits Command = iota
	CommandRequestHeapFrame
	CommandSetComputeUnitLimit
	CommandSetComputeUnitPrice
)

func SetComputeUnitLimit(computeUnitLimit uint32) solana.Instruction {
	data := make([]byte, 1+4)
	data[0] = byte(CommandSetComputeUnitLimit)
	binary.LittleEndian.PutUint32(data[1:], computeUnitLimit)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
	)
}

func SetComputeUnitPrice(computeUnitPrice uint64) solana.Instruction {
	data := make([]byte, 1+8)
	data[0] = byte(CommandSetComputeUnitPrice)
	binary.LittleEndian.PutUint64(data[1:], computeUnitPrice)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
	)
}

func GetCommand(i solana.Instruction) (Command, error) {
	if !bytes.Equal(i.Program, ProgramKey) {
		return 0, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 {
		return 0, errors.New("missing data")
	}
	return Command(i.Data[0]), nil
}

func ParseSetComputeUnitLimitIxnData(data []byte) (uint32, error) {
	if len(data) != 5 {
		return 0, errors.Errorf("invalid length: %d", len(data))
	}

	if data[0] != byte(CommandSetComputeUnitLimit) {
		return 0, solana.ErrIncorrectInstruction
	}

	return binary.LittleEndian.Uint32(data[1:]), nil
}

func ParseSetComputeUnitPriceIxnData(data []byte) (uint64, error) {
	if len(data) != 9 {
		return 0, errors.Errorf("invalid length: %d", len(data))
	}

	if data[0] != byte(CommandSetComputeUnitPrice) {
		return 0, solana.ErrIncorrectInstruction
	}

	return binary.LittleEndian.Uint64(data[1:]), nil
}

// Budget is the compute budget requested by a transaction.
type Budget struct {
	UnitLimit    uint32
	UnitPrice    uint64
	HasUnitLimit bool
	HasUnitPrice bool
	instructions int
}

// ParseBudget collects the compute budget settings from a set of instructions.
// Malformed or repeated settings are reported as an InvalidInstructionData
// instruction error at the offending index.
func ParseBudget(instructions []solana.Instruction) (*Budget, error) {
	b := &Budget{}

	for i, ix := range instructions {
		if !bytes.Equal(ix.Program, ProgramKey) {
			b.instructions++
			continue
		}
		if err := b.apply(ix.Data); err != nil {
			return nil, &solana.InstructionError{Index: i, Err: solana.InstructionErrorInvalidInstructionData}
		}
	}

	return b, nil
}

func (b *Budget) apply(data []byte) (err error) {
	if len(data) == 0 {
		return errors.New("missing data")
	}

	switch Command(data[0]) {
	case CommandSetComputeUnitLimit:
		if b.HasUnitLimit {
			return errors.New("duplicate compute unit limit")
		}
		if b.UnitLimit, err = ParseSetComputeUnitLimitIxnData(data); err != nil {
			return err
		}
		b.HasUnitLimit = true
	case CommandSetComputeUnitPrice:
		if b.HasUnitPrice {
			return errors.New("duplicate compute unit price")
		}
		if b.UnitPrice, err = ParseSetComputeUnitPriceIxnData(data); err != nil {
			return err
		}
		b.HasUnitPrice = true
	default:
		return errors.Errorf("unsupported compute budget command: %d", data[0])
	}
	return nil
}

// Limit returns the effective compute unit limit.
func (b *Budget) Limit() uint32 {
	if b.HasUnitLimit {
		if b.UnitLimit > MaxComputeUnitLimit {
			return MaxComputeUnitLimit
		}
		return b.UnitLimit
	}

	limit := uint64(b.instructions) * DefaultComputeUnitLimit
	if limit > MaxComputeUnitLimit {
		return MaxComputeUnitLimit
	}
	return uint32(limit)
}

// PriorityFee returns the additional fee, in lamports, the transaction pays
// on top of the base signature fee. The unit price is in micro-lamports.
func (b *Budget) PriorityFee() uint64 {
	if !b.HasUnitPrice {
		return 0
	}

	// ceil(price * limit / 1e6)
	hi, lo := bits.Mul64(b.UnitPrice, uint64(b.Limit()))
	lo, carry := bits.Add64(lo, 999_999, 0)
	hi += carry
	if hi >= 1_000_000 {
		return math.MaxUint64
	}
	fee, _ := bits.Div64(hi, lo, 1_000_000)
	return fee
}
