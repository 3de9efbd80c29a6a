package runtime

import (
	"bytes"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// NativeLoader owns every program account registered with the bank.
//
// Current key: NativeLoader1111111111111111111111111111111
var NativeLoader ed25519.PublicKey

func init() {
	var err error
	NativeLoader, err = base58.Decode("NativeLoader1111111111111111111111111111111")
	if err != nil {
		panic(err)
	}
}

// Account is the state stored at an address.
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      ed25519.PublicKey
	Executable bool
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	clone := &Account{
		Lamports:   a.Lamports,
		Owner:      append(ed25519.PublicKey{}, a.Owner...),
		Executable: a.Executable,
	}
	if a.Data != nil {
		clone.Data = append([]byte{}, a.Data...)
	}
	return clone
}

// IsOwnedBy reports whether owner owns the account.
func (a *Account) IsOwnedBy(owner ed25519.PublicKey) bool {
	return bytes.Equal(a.Owner, owner)
}

// AccountInfo is an account as seen by an executing program, along with the
// privileges granted to it by the instruction.
type AccountInfo struct {
	Key        ed25519.PublicKey
	IsSigner   bool
	IsWritable bool

	*Account
}

func newEmptyAccount() *Account {
	return &Account{Owner: make(ed25519.PublicKey, ed25519.PublicKeySize)}
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
