package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/token-manager-server/pkg/retry"
	"github.com/code-payments/token-manager-server/pkg/retry/backoff"
)

const (
	// https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005
	invalidParamCode     = -32602

	// About 32 slots at PollRate.
	signatureStatusPollLimit = 2 * 32

	blockhashRefreshInterval = 2 * time.Second
)

// contextual is the envelope of RPC results evaluated at a slot.
type contextual[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

type rpcClient struct {
	log     *logrus.Entry
	rpc     jsonrpc.RPCClient
	retrier retry.Retrier

	blockhashes blockhashCache
}

// New returns a Client for the JSON RPC endpoint. Rate limiting and node
// unavailability are retried with backoff.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil)
}

func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) Client {
	return newRpcClient(endpoint, opts, retry.NewRetrier(
		retry.RetriableErrors(ErrRateLimited, ErrServiceUnavailable),
		retry.Limit(3),
		retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
	))
}

func newRpcClient(endpoint string, opts *jsonrpc.RPCClientOpts, retrier retry.Retrier) *rpcClient {
	return &rpcClient{
		log:     logrus.StandardLogger().WithField("type", "solana/rpc"),
		rpc:     jsonrpc.NewClientWithOpts(endpoint, opts),
		retrier: retrier,
	}
}

func (c *rpcClient) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		return c.classify(method, c.rpc.CallFor(out, method, params...))
	})
	return err
}

// classify maps node health errors onto ErrRateLimited and
// ErrServiceUnavailable. Anything else is returned as is.
func (c *rpcClient) classify(method string, err error) error {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return err
	}

	switch {
	case rpcErr.Code == 429:
		c.log.WithField("method", method).Warn("rate limited")
		return ErrRateLimited
	case rpcErr.Code >= 500, rpcErr.Code == rpcNodeUnhealthyCode:
		return ErrServiceUnavailable
	default:
		return err
	}
}

func isInvalidParam(err error) bool {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	return ok && rpcErr.Code == invalidParamCode
}

func (c *rpcClient) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	var lamports uint64
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", size); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed")
	}
	return lamports, nil
}

func (c *rpcClient) GetSlot(commitment Commitment) (uint64, error) {
	// A lone object param would be sent unwrapped, which nodes reject.
	var slot uint64
	if err := c.call(&slot, "getSlot", []interface{}{commitment}); err != nil {
		return 0, errors.Wrap(err, "getSlot() failed")
	}
	return slot, nil
}

func (c *rpcClient) GetLatestBlockhash() (Blockhash, error) {
	if hash, ok := c.blockhashes.get(time.Now()); ok {
		return hash, nil
	}

	var resp contextual[struct {
		Blockhash string `json:"blockhash"`
	}]
	if err := c.call(&resp, "getLatestBlockhash"); err != nil {
		return Blockhash{}, errors.Wrap(err, "getLatestBlockhash() failed")
	}

	var hash Blockhash
	if err := decodeBase58Into(hash[:], resp.Value.Blockhash); err != nil {
		return Blockhash{}, errors.Wrap(err, "invalid blockhash in response")
	}

	c.blockhashes.put(hash, time.Now())
	return hash, nil
}

func (c *rpcClient) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp contextual[uint64]
	if err := c.call(&resp, "getBalance", base58.Encode(account), CommitmentProcessed); err != nil {
		if isInvalidParam(err) {
			return 0, ErrNoBalance
		}
		return 0, errors.Wrap(err, "getBalance() failed")
	}
	return resp.Value, nil
}

func (c *rpcClient) GetTokenAccountBalance(account ed25519.PublicKey) (uint64, uint64, error) {
	var resp contextual[struct {
		Amount   string `json:"amount"`
		Decimals uint8  `json:"decimals"`
	}]
	if err := c.call(&resp, "getTokenAccountBalance", base58.Encode(account), CommitmentFinalized); err != nil {
		if isInvalidParam(err) {
			return 0, 0, ErrNoBalance
		}
		return 0, 0, errors.Wrap(err, "getTokenAccountBalance() failed")
	}

	quarks, err := strconv.ParseUint(resp.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, errors.Wrap(err, "invalid token amount in response")
	}
	return quarks, resp.Context.Slot, nil
}

func (c *rpcClient) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signatures[0]

	config := struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		Encoding:            "base64",
		PreflightCommitment: commitment.Commitment,
	}

	var ignored string
	err := c.call(&ignored, "sendTransaction", base64.StdEncoding.EncodeToString(txn.Marshal()), config)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return sig, errors.Wrap(err, "sendTransaction() failed")
	}

	txErr, parseErr := ParseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, err
	}

	c.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": sig.ToBase58(),
	}).WithError(txErr).Debug("transaction failed preflight")
	return sig, txErr
}

func (c *rpcClient) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	config := struct {
		Commitment string `json:"commitment"`
		Encoding   string `json:"encoding"`
	}{
		Commitment: commitment.Commitment,
		Encoding:   "base64",
	}

	var resp contextual[*struct {
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
		Data       []string `json:"data"`
		Executable bool     `json:"executable"`
	}]
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed")
	}
	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}

	owner, err := base58.Decode(resp.Value.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid owner in response")
	}
	if len(resp.Value.Data) == 0 {
		return AccountInfo{}, errors.New("missing account data in response")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid account data in response")
	}

	return AccountInfo{
		Data:       data,
		Owner:      owner,
		Lamports:   resp.Value.Lamports,
		Executable: resp.Value.Executable,
	}, nil
}

func (c *rpcClient) RequestAirdrop(account ed25519.PublicKey, lamports uint64, commitment Commitment) (Signature, error) {
	var encoded string
	if err := c.call(&encoded, "requestAirdrop", base58.Encode(account), lamports, commitment); err != nil {
		return Signature{}, errors.Wrap(err, "requestAirdrop() failed")
	}

	var sig Signature
	if err := decodeBase58Into(sig[:], encoded); err != nil {
		return Signature{}, errors.Wrap(err, "invalid signature in response")
	}
	return sig, nil
}

func (c *rpcClient) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	errPending := errors.New("commitment not reached")

	var status *SignatureStatus
	_, err := retry.Retry(
		func() error {
			statuses, err := c.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			status = statuses[0]
			switch {
			case status == nil:
				return ErrSignatureNotFound
			case !status.Satisfies(commitment):
				return errPending
			default:
				return nil
			}
		},
		retry.RetriableErrors(ErrSignatureNotFound, errPending),
		retry.Limit(signatureStatusPollLimit),
		retry.Backoff(backoff.Constant(PollRate), PollRate),
	)
	return status, err
}

func (c *rpcClient) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, sig := range sigs {
		encoded[i] = sig.ToBase58()
	}

	config := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp contextual[[]*struct {
		Slot               uint64      `json:"slot"`
		Confirmations      *int        `json:"confirmations"`
		ConfirmationStatus string      `json:"confirmationStatus"`
		Err                interface{} `json:"err"`
	}]
	if err := c.call(&resp, "getSignatureStatuses", encoded, config); err != nil {
		return nil, errors.Wrap(err, "getSignatureStatuses() failed")
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, v := range resp.Value {
		if v == nil || i >= len(statuses) {
			continue
		}

		txErr, err := ParseTransactionError(v.Err)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse transaction result")
		}

		statuses[i] = &SignatureStatus{
			Slot:               v.Slot,
			ErrorResult:        txErr,
			Confirmations:      v.Confirmations,
			ConfirmationStatus: v.ConfirmationStatus,
		}
	}
	return statuses, nil
}

func (c *rpcClient) GetFilteredProgramAccounts(program ed25519.PublicKey, offset uint, filterValue []byte) ([]string, uint64, error) {
	type memcmp struct {
		Offset uint   `json:"offset"`
		Bytes  string `json:"bytes"`
	}

	config := struct {
		Commitment  string                       `json:"commitment"`
		Encoding    string                       `json:"encoding"`
		Filters     []map[string]json.RawMessage `json:"filters"`
		WithContext bool                         `json:"withContext"`
	}{
		Commitment:  confirmationStatusFinalized,
		Encoding:    "base64",
		WithContext: true,
	}

	filter, err := json.Marshal(memcmp{Offset: offset, Bytes: base58.Encode(filterValue)})
	if err != nil {
		return nil, 0, err
	}
	config.Filters = []map[string]json.RawMessage{{"memcmp": filter}}

	var resp contextual[[]struct {
		PubKey string `json:"pubkey"`
	}]
	if err := c.call(&resp, "getProgramAccounts", base58.Encode(program), config); err != nil {
		return nil, 0, errors.Wrap(err, "getProgramAccounts() failed")
	}

	addresses := make([]string, 0, len(resp.Value))
	for _, v := range resp.Value {
		addresses = append(addresses, v.PubKey)
	}
	return addresses, resp.Context.Slot, nil
}

func decodeBase58Into(dst []byte, encoded string) error {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return err
	}
	if len(decoded) != len(dst) {
		return errors.Errorf("expected %d bytes, got %d", len(dst), len(decoded))
	}
	copy(dst, decoded)
	return nil
}

// blockhashCache holds the latest blockhash for a jittered interval so that
// concurrent submitters don't all refresh on the same tick.
type blockhashCache struct {
	mu      sync.RWMutex
	hash    Blockhash
	expires time.Time
}

func (c *blockhashCache) get(now time.Time) (Blockhash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.hash == (Blockhash{}) || !now.Before(c.expires) {
		return Blockhash{}, false
	}
	return c.hash, true
}

func (c *blockhashCache) put(hash Blockhash, now time.Time) {
	ttl := time.Duration(float64(blockhashRefreshInterval) * (0.8 + 0.4*rand.Float64()))

	c.mu.Lock()
	c.hash = hash
	c.expires = now.Add(ttl)
	c.mu.Unlock()
}
