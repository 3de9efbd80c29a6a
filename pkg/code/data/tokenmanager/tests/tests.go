package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager"
	"github.com/code-payments/token-manager-server/pkg/database/query"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
)

func RunTests(t *testing.T, s tokenmanager.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s tokenmanager.Store){
		testHappyPath,
		testStaleUpdate,
		testMintConflict,
		testGetAll,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s tokenmanager.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now()
		time.Sleep(time.Millisecond)

		_, err := s.GetByAddress(ctx, "manager")
		assert.Equal(t, tokenmanager.ErrManagerNotFound, err)
		_, err = s.GetByMint(ctx, "mint")
		assert.Equal(t, tokenmanager.ErrManagerNotFound, err)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		expected := newRecord("manager", "mint")
		cloned := expected.Clone()

		require.NoError(t, s.Save(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.True(t, expected.CreatedAt.After(start))
		assert.True(t, expected.LastUpdatedAt.After(start))

		actual, err := s.GetByAddress(ctx, "manager")
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)

		actual, err = s.GetByMint(ctx, "mint")
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)

		updateTime := time.Now()
		time.Sleep(time.Millisecond)

		expected.TotalMintCount = 1
		expected.Slot += 1
		cloned = expected.Clone()
		require.NoError(t, s.Save(ctx, expected))

		actual, err = s.GetByAddress(ctx, "manager")
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
		assert.True(t, actual.CreatedAt.Before(updateTime))
		assert.True(t, actual.LastUpdatedAt.After(updateTime))

		count, err = s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func testStaleUpdate(t *testing.T, s tokenmanager.Store) {
	t.Run("testStaleUpdate", func(t *testing.T) {
		ctx := context.Background()

		record := newRecord("manager", "mint")
		record.Slot = 10
		record.TotalMintCount = 3
		require.NoError(t, s.Save(ctx, record))

		stale := newRecord("manager", "mint")
		stale.Slot = 9
		stale.TotalMintCount = 2
		assert.Equal(t, tokenmanager.ErrStaleManagerState, s.Save(ctx, stale))

		// Re-observing the same slot is allowed
		same := newRecord("manager", "mint")
		same.Slot = 10
		same.TotalMintCount = 3
		require.NoError(t, s.Save(ctx, same))

		// Mint counters never decrease
		regressed := newRecord("manager", "mint")
		regressed.Slot = 11
		regressed.TotalMintCount = 2
		assert.Equal(t, tokenmanager.ErrStaleManagerState, s.Save(ctx, regressed))

		actual, err := s.GetByAddress(ctx, "manager")
		require.NoError(t, err)
		assert.EqualValues(t, 10, actual.Slot)
		assert.EqualValues(t, 3, actual.TotalMintCount)

		invalid := newRecord("", "mint")
		assert.Error(t, s.Save(ctx, invalid))

		invalid = newRecord("other", "other_mint")
		invalid.MintAmount = 0
		assert.Error(t, s.Save(ctx, invalid))

		invalid = newRecord("other", "other_mint")
		invalid.SeedScheme = tokenmanager_program.SeedScheme(42)
		assert.Error(t, s.Save(ctx, invalid))
	})
}

func testMintConflict(t *testing.T, s tokenmanager.Store) {
	t.Run("testMintConflict", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, newRecord("manager", "mint")))
		assert.Equal(t, tokenmanager.ErrMintAlreadyIndexed, s.Save(ctx, newRecord("other_manager", "mint")))

		_, err := s.GetByAddress(ctx, "other_manager")
		assert.Equal(t, tokenmanager.ErrManagerNotFound, err)

		actual, err := s.GetByMint(ctx, "mint")
		require.NoError(t, err)
		assert.Equal(t, "manager", actual.Address)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func testGetAll(t *testing.T, s tokenmanager.Store) {
	t.Run("testGetAll", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAll(ctx, query.EmptyCursor, 10, query.Ascending)
		assert.Equal(t, tokenmanager.ErrManagerNotFound, err)

		var expected []*tokenmanager.Record
		for i := 0; i < 5; i++ {
			record := newRecord(fmt.Sprintf("manager%d", i), fmt.Sprintf("mint%d", i))
			require.NoError(t, s.Save(ctx, record))
			expected = append(expected, record)
		}

		actual, err := s.GetAll(ctx, query.EmptyCursor, 10, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 5)
		for i := range actual {
			assertEquivalentRecords(t, expected[i], actual[i])
		}

		actual, err = s.GetAll(ctx, query.EmptyCursor, 2, query.Descending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, expected[4], actual[0])
		assertEquivalentRecords(t, expected[3], actual[1])

		actual, err = s.GetAll(ctx, query.ToCursor(expected[1].Id), 2, query.Ascending)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, expected[2], actual[0])
		assertEquivalentRecords(t, expected[3], actual[1])

		_, err = s.GetAll(ctx, query.ToCursor(expected[4].Id), 2, query.Ascending)
		assert.Equal(t, tokenmanager.ErrManagerNotFound, err)
	})
}

func newRecord(address, mint string) *tokenmanager.Record {
	return &tokenmanager.Record{
		Address:        address,
		Bump:           254,
		Mint:           mint,
		Authority:      "authority",
		SeedScheme:     tokenmanager_program.SeedSchemeMintAndAuthority,
		Decimals:       9,
		MintAmount:     100_000_000_000,
		TotalMintCount: 0,
		Slot:           1,
	}
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *tokenmanager.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.Bump, obj2.Bump)
	assert.Equal(t, obj1.Mint, obj2.Mint)
	assert.Equal(t, obj1.Authority, obj2.Authority)
	assert.Equal(t, obj1.SeedScheme, obj2.SeedScheme)
	assert.Equal(t, obj1.Decimals, obj2.Decimals)
	assert.Equal(t, obj1.MintAmount, obj2.MintAmount)
	assert.Equal(t, obj1.TotalMintCount, obj2.TotalMintCount)
	assert.Equal(t, obj1.Slot, obj2.Slot)
}
