package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(name, category, price string) domain.OrderFields {
	return domain.OrderFields{
		Name:     name,
		Category: category,
		Price:    decimal.RequireFromString(price),
		Quantity: 1,
	}
}

func newReadyLevelDB(t *testing.T) *LevelDBOrders {
	t.Helper()
	s := NewMemLevelDBOrders()
	require.NoError(t, s.Init(t.Context()))
	t.Cleanup(s.Close)
	return s
}

func TestLifecycle(t *testing.T) {
	t.Run("RetryAfterFailedOpen", func(t *testing.T) {
		var lc lifecycle
		errOpen := errors.New("locked")

		require.ErrorIs(t, lc.open(func() error { return errOpen }), errOpen)
		_, err := lc.acquire("op")
		require.ErrorIs(t, err, domain.ErrNotInitialized)

		require.NoError(t, lc.open(func() error { return nil }))
		release, err := lc.acquire("op")
		require.NoError(t, err)
		release()
	})

	t.Run("CloseWaitsForOperations", func(t *testing.T) {
		var lc lifecycle
		require.NoError(t, lc.open(func() error { return nil }))

		release, err := lc.acquire("op")
		require.NoError(t, err)

		closed := make(chan struct{})
		go func() {
			lc.close(func() {})
			close(closed)
		}()

		select {
		case <-closed:
			t.Fatal("closed under an in-flight operation")
		case <-time.After(50 * time.Millisecond):
		}

		_, err = lc.acquire("op")
		assert.ErrorIs(t, err, domain.ErrNotInitialized)

		release()
		select {
		case <-closed:
		case <-time.After(time.Second):
			t.Fatal("close is not finished after release")
		}

		_, err = lc.acquire("op")
		assert.ErrorIs(t, err, domain.ErrNotInitialized)
	})
}

func TestLevelDBOrdersLifecycle(t *testing.T) {
	t.Run("NotInitialized", func(t *testing.T) {
		s := NewMemLevelDBOrders()
		ctx := t.Context()

		_, err := s.Insert(ctx, fields("Tart", "Pastry", "4.50"))
		assert.ErrorIs(t, err, domain.ErrNotInitialized)

		_, err = s.GetAll(ctx)
		assert.ErrorIs(t, err, domain.ErrNotInitialized)

		_, _, err = s.GetByID(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrNotInitialized)

		_, err = s.Update(ctx, 1, fields("Tart", "Pastry", "4.50"))
		assert.ErrorIs(t, err, domain.ErrNotInitialized)

		err = s.Delete(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrNotInitialized)
	})

	t.Run("InitTwice", func(t *testing.T) {
		s := newReadyLevelDB(t)
		_, err := s.Insert(t.Context(), fields("Tart", "Pastry", "4.50"))
		require.NoError(t, err)

		require.NoError(t, s.Init(t.Context()))

		orders, err := s.GetAll(t.Context())
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("ReopenFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "orders")

		s := NewLevelDBOrders(path)
		require.NoError(t, s.Init(t.Context()))
		_, err := s.Insert(t.Context(), fields("Tart", "Pastry", "4.50"))
		require.NoError(t, err)
		s.Close()

		_, err = s.GetAll(t.Context())
		require.ErrorIs(t, err, domain.ErrNotInitialized)

		s = NewLevelDBOrders(path)
		require.NoError(t, s.Init(t.Context()))
		defer s.Close()

		o, err := s.Insert(t.Context(), fields("Cake", "Cake", "5"))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), o.ID)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newReadyLevelDB(t)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := s.Insert(ctx, fields("Tart", "Pastry", "4.50"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLevelDBOrdersCRUD(t *testing.T) {
	t.Run("InsertGetAll", func(t *testing.T) {
		s := newReadyLevelDB(t)

		o, err := s.Insert(t.Context(), fields("Tart", "Pastry", "4.50"))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), o.ID)

		orders, err := s.GetAll(t.Context())
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, uint64(1), orders[0].ID)
		assert.Equal(t, "Tart", orders[0].Name)
		assert.Equal(t, "Pastry", orders[0].Category)
		assert.True(t, decimal.RequireFromString("4.5").Equal(orders[0].Price))
	})

	t.Run("InsertBatchDistinctIDs", func(t *testing.T) {
		s := newReadyLevelDB(t)

		batch := []domain.OrderFields{
			fields("A", "Cake", "3.00"),
			fields("B", "Tart", "5.00"),
			fields("C", "Pie", "1.00"),
		}
		orders, err := s.InsertBatch(t.Context(), batch)
		require.NoError(t, err)
		require.Len(t, orders, 3)

		all, err := s.GetAll(t.Context())
		require.NoError(t, err)
		require.Len(t, all, 3)

		seen := make(map[uint64]bool)
		for i, o := range all {
			assert.False(t, seen[o.ID])
			seen[o.ID] = true
			assert.Equal(t, batch[i].Name, o.Name)
		}
	})

	t.Run("InsertBatchAllOrNothing", func(t *testing.T) {
		s := newReadyLevelDB(t)

		errEncode := errors.New("encode failed")
		var calls int
		s.encode = func(r orderRecord) ([]byte, error) {
			calls++
			if calls == 2 {
				return nil, errEncode
			}
			return encodeRecord(r)
		}

		_, err := s.InsertBatch(t.Context(), []domain.OrderFields{
			fields("A", "Cake", "3.00"),
			fields("B", "Tart", "5.00"),
			fields("C", "Pie", "1.00"),
		})
		require.ErrorIs(t, err, domain.ErrStorage)
		require.ErrorIs(t, err, errEncode)

		all, err := s.GetAll(t.Context())
		require.NoError(t, err)
		assert.Empty(t, all)

		byName, err := s.GetByName(t.Context(), "A")
		require.NoError(t, err)
		assert.Empty(t, byName)

		s.encode = encodeRecord
		o, err := s.Insert(t.Context(), fields("D", "Cake", "2.00"))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), o.ID)
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		s := newReadyLevelDB(t)

		_, found, err := s.GetByID(t.Context(), 99)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("GetByName", func(t *testing.T) {
		s := newReadyLevelDB(t)

		_, err := s.InsertBatch(t.Context(), []domain.OrderFields{
			fields("Tart", "Pastry", "4.50"),
			fields("Cake", "Cake", "5.00"),
			fields("Tart", "Pastry", "4.50"),
			fields("Tart\x00x", "Pastry", "1.00"),
		})
		require.NoError(t, err)

		orders, err := s.GetByName(t.Context(), "Tart")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, uint64(1), orders[0].ID)
		assert.Equal(t, uint64(3), orders[1].ID)

		orders, err = s.GetByName(t.Context(), "Macaron")
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		s := newReadyLevelDB(t)

		o, err := s.Insert(t.Context(), fields("Tart", "Pastry", "4.50"))
		require.NoError(t, err)

		u, err := s.Update(t.Context(), o.ID, fields("Pie", "Pastry", "6"))
		require.NoError(t, err)
		assert.Equal(t, o.ID, u.ID)

		got, found, err := s.GetByID(t.Context(), o.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Pie", got.Name)

		byOld, err := s.GetByName(t.Context(), "Tart")
		require.NoError(t, err)
		assert.Empty(t, byOld)

		byNew, err := s.GetByName(t.Context(), "Pie")
		require.NoError(t, err)
		assert.Len(t, byNew, 1)
	})

	t.Run("UpdateAbsentUpserts", func(t *testing.T) {
		s := newReadyLevelDB(t)

		_, err := s.Update(t.Context(), 10, fields("Pie", "Pastry", "6"))
		require.NoError(t, err)

		_, found, err := s.GetByID(t.Context(), 10)
		require.NoError(t, err)
		assert.True(t, found)

		o, err := s.Insert(t.Context(), fields("Tart", "Pastry", "4.50"))
		require.NoError(t, err)
		assert.Equal(t, uint64(11), o.ID)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newReadyLevelDB(t)

		o, err := s.Insert(t.Context(), fields("Tart", "Pastry", "4.50"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(t.Context(), o.ID))
		require.NoError(t, s.Delete(t.Context(), o.ID))

		_, found, err := s.GetByID(t.Context(), o.ID)
		require.NoError(t, err)
		assert.False(t, found)

		byName, err := s.GetByName(t.Context(), "Tart")
		require.NoError(t, err)
		assert.Empty(t, byName)

		next, err := s.Insert(t.Context(), fields("Tart", "Pastry", "4.50"))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), next.ID)
	})
}
