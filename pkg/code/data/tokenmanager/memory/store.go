package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager"
	"github.com/code-payments/token-manager-server/pkg/database/query"
)

type ById []*tokenmanager.Record

func (a ById) Len() int           { return len(a) }
func (a ById) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ById) Less(i, j int) bool { return a[i].Id < a[j].Id }

type store struct {
	mu      sync.Mutex
	last    uint64
	records []*tokenmanager.Record
}

// New returns a new in memory tokenmanager.Store
func New() tokenmanager.Store {
	return &store{}
}

// Save implements tokenmanager.Store.Save
func (s *store) Save(_ context.Context, data *tokenmanager.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.last++
	if item := s.find(data); item != nil {
		if item.Mint != data.Mint || data.Slot < item.Slot || data.TotalMintCount < item.TotalMintCount {
			return tokenmanager.ErrStaleManagerState
		}

		item.Authority = data.Authority
		item.Decimals = data.Decimals
		item.MintAmount = data.MintAmount
		item.TotalMintCount = data.TotalMintCount
		item.Slot = data.Slot
		item.LastUpdatedAt = time.Now()

		item.CopyTo(data)
	} else {
		for _, item := range s.records {
			if item.Mint == data.Mint {
				return tokenmanager.ErrMintAlreadyIndexed
			}
		}

		if data.Id == 0 {
			data.Id = s.last
		}
		data.CreatedAt = time.Now()
		data.LastUpdatedAt = data.CreatedAt

		cloned := data.Clone()
		s.records = append(s.records, &cloned)
	}

	return nil
}

// GetByAddress implements tokenmanager.Store.GetByAddress
func (s *store) GetByAddress(_ context.Context, address string) (*tokenmanager.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.records {
		if item.Address == address {
			cloned := item.Clone()
			return &cloned, nil
		}
	}

	return nil, tokenmanager.ErrManagerNotFound
}

// GetByMint implements tokenmanager.Store.GetByMint
func (s *store) GetByMint(_ context.Context, mint string) (*tokenmanager.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.records {
		if item.Mint == mint {
			cloned := item.Clone()
			return &cloned, nil
		}
	}

	return nil, tokenmanager.ErrManagerNotFound
}

// GetAll implements tokenmanager.Store.GetAll
func (s *store) GetAll(_ context.Context, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*tokenmanager.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.filter(s.records, cursor, limit, direction)
	if len(res) == 0 {
		return nil, tokenmanager.ErrManagerNotFound
	}

	cloned := make([]*tokenmanager.Record, len(res))
	for i, item := range res {
		c := item.Clone()
		cloned[i] = &c
	}
	return cloned, nil
}

// Count implements tokenmanager.Store.Count
func (s *store) Count(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.records)), nil
}

func (s *store) find(data *tokenmanager.Record) *tokenmanager.Record {
	for _, item := range s.records {
		if item.Id == data.Id {
			return item
		}

		if item.Address == data.Address {
			return item
		}
	}

	return nil
}

func (s *store) filter(items []*tokenmanager.Record, cursor query.Cursor, limit uint64, direction query.Ordering) []*tokenmanager.Record {
	var start uint64
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*tokenmanager.Record
	for _, item := range items {
		if item.Id > start && direction == query.Ascending {
			res = append(res, item)
		}
		if item.Id < start && direction == query.Descending {
			res = append(res, item)
		}
	}

	if direction == query.Descending {
		sort.Sort(sort.Reverse(ById(res)))
	} else {
		sort.Sort(ById(res))
	}

	if limit > 0 && len(res) >= int(limit) {
		return res[:limit]
	}

	return res
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
	s.records = nil
}
