package system

import (
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

// https://explorer.solana.com/address/11111111111111111111111111111111
var SystemAccount ed25519.PublicKey

// SysvarOwner owns every sysvar account
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/sysvar/mod.rs#L101
var SysvarOwner ed25519.PublicKey

// RentSysVar points to the system variable "Rent"
//
// Source: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/sysvar/rent.rs#L11
var RentSysVar ed25519.PublicKey

// RentSize is the serialized size of the Rent sysvar.
const RentSize = 8 + 8 + 1

// AccountStorageOverhead is the per account metadata size that rent is charged on.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L45
const AccountStorageOverhead = 128

// Rent is the network rent configuration.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/program/src/rent.rs#L13
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent matches the mainnet configuration.
var DefaultRent = Rent{
	LamportsPerByteYear: 3480,
	ExemptionThreshold:  2.0,
	BurnPercent:         50,
}

// MinimumBalance returns the lamports required for an account of dataSize
// bytes to be rent exempt.
func (r Rent) MinimumBalance(dataSize uint64) uint64 {
	bytes := dataSize + AccountStorageOverhead
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports cover the rent exemption for dataSize bytes.
func (r Rent) IsExempt(lamports, dataSize uint64) bool {
	return lamports >= r.MinimumBalance(dataSize)
}

func (r Rent) Marshal() []byte {
	b := make([]byte, RentSize)
	binary.LittleEndian.PutUint64(b, r.LamportsPerByteYear)
	binary.LittleEndian.PutUint64(b[8:], math.Float64bits(r.ExemptionThreshold))
	b[16] = r.BurnPercent
	return b
}

func (r *Rent) Unmarshal(b []byte) error {
	if len(b) != RentSize {
		return errors.Errorf("invalid rent sysvar size: %d", len(b))
	}

	r.LamportsPerByteYear = binary.LittleEndian.Uint64(b)
	r.ExemptionThreshold = math.Float64frombits(binary.LittleEndian.Uint64(b[8:]))
	r.BurnPercent = b[16]
	return nil
}

func init() {
	var err error

	RentSysVar, err = base58.Decode("SysvarRent111111111111111111111111111111111")
	if err != nil {
		panic(err)
	}

	SysvarOwner, err = base58.Decode("Sysvar1111111111111111111111111111111111111")
	if err != nil {
		panic(err)
	}

	SystemAccount, err = base58.Decode("11111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
}
