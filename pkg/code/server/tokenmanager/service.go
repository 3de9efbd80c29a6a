package tokenmanager

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-manager-server/pkg/cache"
	tokenmanager_data "github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager"
	"github.com/code-payments/token-manager-server/pkg/rate"
	"github.com/code-payments/token-manager-server/pkg/solana"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
	sync_util "github.com/code-payments/token-manager-server/pkg/sync"
)

// Manager is the service's view of an on-chain token manager
type Manager struct {
	Address ed25519.PublicKey
	Bump    uint8

	Mint       ed25519.PublicKey
	Authority  ed25519.PublicKey
	SeedScheme tokenmanager_program.SeedScheme
	Decimals   uint8

	MintAmount     uint64
	TotalMintCount uint64

	// Slot is the slot at which the state was observed
	Slot uint64
}

// Service creates token managers and mints their supply on behalf of a
// funded payer, keeping an off-chain index of every manager it has seen.
type Service struct {
	log  *logrus.Entry
	conf *conf

	sc    solana.Client
	store tokenmanager_data.Store

	payer    ed25519.PrivateKey
	payerKey ed25519.PublicKey

	// todo: distributed locks
	mintLocks *sync_util.StripedLock

	mintLimiter rate.Limiter

	managers *cache.Cache[string, *Manager]
}

func NewService(
	sc solana.Client,
	store tokenmanager_data.Store,
	payer ed25519.PrivateKey,
	configProvider ConfigProvider,
) *Service {
	ctx := context.Background()

	conf := configProvider()

	var mintLimiter rate.Limiter = &rate.NoLimiter{}
	if limit := conf.mintRateLimit.Get(ctx); limit > 0 {
		mintLimiter = rate.NewLocalRateLimiter(limit)
	}

	return &Service{
		log:  logrus.StandardLogger().WithField("type", "tokenmanager/service"),
		conf: conf,

		sc:    sc,
		store: store,

		payer:    payer,
		payerKey: payer.Public().(ed25519.PublicKey),

		mintLocks:   sync_util.NewStripedLock(uint(conf.stripedLockParallelization.Get(ctx))),
		mintLimiter: mintLimiter,

		managers: cache.New[string, *Manager]("managers", int(conf.cacheSize.Get(ctx))),
	}
}

// Payer returns the account funding every transaction the service submits.
func (s *Service) Payer() ed25519.PublicKey {
	return s.payerKey
}

// GetManager returns the token manager controlling mint, reading through the
// cache and the index before falling back to the chain.
func (s *Service) GetManager(ctx context.Context, mint ed25519.PublicKey) (*Manager, error) {
	log := s.log.WithFields(logrus.Fields{
		"method": "GetManager",
		"mint":   base58.Encode(mint),
	})

	if cached, ok := s.managers.Get(cacheKey(mint)); ok {
		clone := cached.clone()
		return &clone, nil
	}

	record, err := s.store.GetByMint(ctx, base58.Encode(mint))
	if err == nil {
		manager, err := fromRecord(record)
		if err != nil {
			log.WithError(err).Warn("invalid index record")
			return nil, err
		}
		s.cacheManager(manager)
		return manager, nil
	} else if err != tokenmanager_data.ErrManagerNotFound {
		log.WithError(err).Warn("failure querying index")
		return nil, err
	}

	address, err := s.findManagerAddress(mint)
	if err != nil {
		return nil, err
	}

	manager, err := s.refresh(ctx, address)
	if err != nil {
		return nil, err
	}
	return manager, nil
}

// findManagerAddress locates the manager that is the mint's current mint
// authority. Managers that lost control of their mint are ignored.
func (s *Service) findManagerAddress(mint ed25519.PublicKey) (ed25519.PublicKey, error) {
	candidates, err := tokenmanager_program.GetTokenManagerAddressesByMint(s.sc, mint)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrManagerNotFound
	}

	mintAccount, err := getMint(s.sc, mint)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if bytes.Equal(candidate, mintAccount.MintAuthority) {
			return candidate, nil
		}
	}
	return nil, ErrManagerNotFound
}

// refresh reads a manager's on-chain state, then updates the index and cache.
func (s *Service) refresh(ctx context.Context, address ed25519.PublicKey) (*Manager, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":  "refresh",
		"address": base58.Encode(address),
	})

	slot, err := s.sc.GetSlot(solana.CommitmentConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get slot")
	}

	account, err := tokenmanager_program.GetTokenManagerAccount(s.sc, address, solana.CommitmentConfirmed)
	if err == tokenmanager_program.ErrTokenManagerNotFound {
		return nil, ErrManagerNotFound
	} else if err != nil {
		return nil, err
	}

	derived, err := account.Address()
	if err != nil || !bytes.Equal(derived, address) {
		log.Warn("stored seeds do not derive the manager address")
		return nil, ErrDerivationMismatch
	}

	manager := fromAccount(address, account, slot)

	record := manager.toRecord()
	err = s.store.Save(ctx, record)
	switch err {
	case nil:
	case tokenmanager_data.ErrStaleManagerState:
		log.Debug("index holds newer state")

		record, err = s.store.GetByAddress(ctx, record.Address)
		if err != nil {
			return nil, err
		}
		manager, err = fromRecord(record)
		if err != nil {
			return nil, err
		}
	default:
		log.WithError(err).Warn("failure updating index")
		return nil, err
	}

	s.cacheManager(manager)
	return manager, nil
}

// cacheManager replaces the cached state for the manager's mint unless the
// cache already holds a later observation.
func (s *Service) cacheManager(manager *Manager) {
	clone := manager.clone()
	s.managers.PutIf(cacheKey(manager.Mint), &clone, func(existing *Manager) bool {
		return bytes.Equal(existing.Address, manager.Address) &&
			(existing.Slot > manager.Slot || existing.TotalMintCount > manager.TotalMintCount)
	})
}

func cacheKey(mint ed25519.PublicKey) string {
	return base58.Encode(mint)
}

func fromAccount(address ed25519.PublicKey, account *tokenmanager_program.TokenManagerAccount, slot uint64) *Manager {
	return &Manager{
		Address: address,
		Bump:    account.Bump,

		Mint:       account.Mint,
		Authority:  account.Authority,
		SeedScheme: account.SeedScheme,
		Decimals:   account.Decimals,

		MintAmount:     account.MintAmount,
		TotalMintCount: account.TotalMintCount,

		Slot: slot,
	}
}

func fromRecord(record *tokenmanager_data.Record) (*Manager, error) {
	address, err := base58.Decode(record.Address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid address")
	}
	mint, err := base58.Decode(record.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mint")
	}
	authority, err := base58.Decode(record.Authority)
	if err != nil {
		return nil, errors.Wrap(err, "invalid authority")
	}

	return &Manager{
		Address: address,
		Bump:    record.Bump,

		Mint:       mint,
		Authority:  authority,
		SeedScheme: record.SeedScheme,
		Decimals:   record.Decimals,

		MintAmount:     record.MintAmount,
		TotalMintCount: record.TotalMintCount,

		Slot: record.Slot,
	}, nil
}

func (m *Manager) toRecord() *tokenmanager_data.Record {
	return &tokenmanager_data.Record{
		Address: base58.Encode(m.Address),
		Bump:    m.Bump,

		Mint:       base58.Encode(m.Mint),
		Authority:  base58.Encode(m.Authority),
		SeedScheme: m.SeedScheme,
		Decimals:   m.Decimals,

		MintAmount:     m.MintAmount,
		TotalMintCount: m.TotalMintCount,

		Slot: m.Slot,
	}
}

func (m *Manager) clone() Manager {
	return Manager{
		Address: append(ed25519.PublicKey{}, m.Address...),
		Bump:    m.Bump,

		Mint:       append(ed25519.PublicKey{}, m.Mint...),
		Authority:  append(ed25519.PublicKey{}, m.Authority...),
		SeedScheme: m.SeedScheme,
		Decimals:   m.Decimals,

		MintAmount:     m.MintAmount,
		TotalMintCount: m.TotalMintCount,

		Slot: m.Slot,
	}
}
