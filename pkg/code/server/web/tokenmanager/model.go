package tokenmanager

import (
	"crypto/ed25519"
	"encoding/json"
	"io"
	"net/http"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	tokenmanager_service "github.com/code-payments/token-manager-server/pkg/code/server/tokenmanager"
	"github.com/code-payments/token-manager-server/pkg/solana/keys"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

const maxRequestBodySize = 1 << 16

func newCreateManagerRequestFromHttpContext(r *http.Request) (*tokenmanager_service.CreateManagerRequest, error) {
	httpRequestBody := struct {
		MintSecretKey *string `json:"mint_secret_key"`
		ExistingMint  *string `json:"existing_mint"`
		SeedScheme    *string `json:"seed_scheme"`
		Authority     *string `json:"authority"`
		Decimals      *uint8  `json:"decimals"`
		MintAmount    uint64  `json:"mint_amount"`
		InitialSupply uint64  `json:"initial_supply"`
	}{}

	if err := readJsonBody(r, &httpRequestBody); err != nil {
		return nil, err
	}

	req := &tokenmanager_service.CreateManagerRequest{
		Decimals:      httpRequestBody.Decimals,
		MintAmount:    httpRequestBody.MintAmount,
		InitialSupply: httpRequestBody.InitialSupply,
	}

	var err error
	if httpRequestBody.MintSecretKey != nil {
		req.MintKeypair, err = decodePrivateKey(*httpRequestBody.MintSecretKey)
		if err != nil {
			return nil, errors.Wrap(err, "mint secret key is invalid")
		}
	}

	if httpRequestBody.ExistingMint != nil {
		req.ExistingMint, err = decodePublicKey(*httpRequestBody.ExistingMint)
		if err != nil {
			return nil, errors.Wrap(err, "existing mint is invalid")
		}
	}

	if httpRequestBody.SeedScheme != nil {
		scheme, err := tokenmanager_program.ParseSeedScheme(*httpRequestBody.SeedScheme)
		if err != nil {
			return nil, errors.New("seed scheme is invalid")
		}
		req.SeedScheme = &scheme
	}

	if httpRequestBody.Authority != nil {
		req.Authority, err = decodePublicKey(*httpRequestBody.Authority)
		if err != nil {
			return nil, errors.Wrap(err, "authority is invalid")
		}
	}

	return req, nil
}

func newMintSupplyRequestFromHttpContext(r *http.Request) (*tokenmanager_service.MintSupplyRequest, error) {
	httpRequestBody := struct {
		Mint               string  `json:"mint"`
		Recipient          string  `json:"recipient"`
		AuthoritySecretKey *string `json:"authority_secret_key"`
	}{}

	if err := readJsonBody(r, &httpRequestBody); err != nil {
		return nil, err
	}

	mint, err := decodePublicKey(httpRequestBody.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "mint is invalid")
	}

	recipient, err := decodePublicKey(httpRequestBody.Recipient)
	if err != nil {
		return nil, errors.Wrap(err, "recipient is invalid")
	}

	req := &tokenmanager_service.MintSupplyRequest{
		Mint:      mint,
		Recipient: recipient,
	}

	if httpRequestBody.AuthoritySecretKey != nil {
		req.Authority, err = decodePrivateKey(*httpRequestBody.AuthoritySecretKey)
		if err != nil {
			return nil, errors.Wrap(err, "authority secret key is invalid")
		}
	}

	return req, nil
}

func readJsonBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

func decodePublicKey(value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil {
		return nil, errors.New("not base58 encoded")
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("expected %d bytes, got %d", ed25519.PublicKeySize, len(decoded))
	}
	return decoded, nil
}

// decodePrivateKey accepts a base58 encoded 64 byte secret key, the encoding
// used by Solana wallets.
func decodePrivateKey(value string) (ed25519.PrivateKey, error) {
	return keys.ParseBase58(value)
}

func toManagerView(manager *tokenmanager_service.Manager) map[string]any {
	return map[string]any{
		"address":          base58.Encode(manager.Address),
		"bump":             manager.Bump,
		"mint":             base58.Encode(manager.Mint),
		"authority":        base58.Encode(manager.Authority),
		"seed_scheme":      manager.SeedScheme.String(),
		"decimals":         manager.Decimals,
		"mint_amount":      manager.MintAmount,
		"total_mint_count": manager.TotalMintCount,
		"slot":             manager.Slot,
	}
}
