// Package keys loads and stores ed25519 keypairs in the formats used by the
// Solana tooling.
package keys

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

var ErrInvalidKeypair = errors.New("invalid keypair")

// LoadKeygenFile reads a keypair written by solana-keygen: a JSON array of
// the 64 private key bytes.
func LoadKeygenFile(path string) (ed25519.PrivateKey, error) {
	key, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load keypair from %s", path)
	}
	return toEd25519(key)
}

// ParseBase58 parses a base58 encoded 64 byte private key.
func ParseBase58(value string) (ed25519.PrivateKey, error) {
	key, err := solanago.PrivateKeyFromBase58(value)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode private key")
	}
	return toEd25519(key)
}

// EncodeBase58 is the inverse of ParseBase58.
func EncodeBase58(key ed25519.PrivateKey) string {
	return solanago.PrivateKey(key).String()
}

// Generate creates a new random keypair.
func Generate() (ed25519.PrivateKey, error) {
	key, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate keypair")
	}
	return toEd25519(key)
}

// LoadOrGenerate loads the keypair at path, creating and persisting a new one
// when the file does not exist.
func LoadOrGenerate(path string) (ed25519.PrivateKey, error) {
	key, err := LoadKeygenFile(path)
	if err == nil {
		return key, nil
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		return nil, err
	}

	key, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := WriteKeygenFile(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// WriteKeygenFile writes key in the solana-keygen format, readable only by
// the owner.
func WriteKeygenFile(path string, key ed25519.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return ErrInvalidKeypair
	}

	// Encoded as numbers, not as a base64 string
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	content, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "failed to encode keypair")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create keypair directory")
	}
	return errors.Wrapf(os.WriteFile(path, content, 0o600), "failed to write keypair to %s", path)
}

func toEd25519(key solanago.PrivateKey) (ed25519.PrivateKey, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeypair
	}

	// The public half must match the seed
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !derived.Equal(ed25519.PrivateKey(key)) {
		return nil, ErrInvalidKeypair
	}
	return derived, nil
}
