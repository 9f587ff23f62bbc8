package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreatedAt = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newMockSQLOrders(t *testing.T) (*SQLOrders, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s := &SQLOrders{
		connect: func(context.Context) (sqldb, func(), error) {
			return db, func() { _ = db.Close() }, nil
		},
		migrate: func(context.Context) error { return nil },
	}
	require.NoError(t, s.Init(t.Context()))
	t.Cleanup(func() {
		mock.ExpectClose()
		s.Close()
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return s, mock
}

func orderRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "category", "price", "quantity",
		"confirmation_id", "created_at",
	})
}

func TestSQLOrdersInit(t *testing.T) {
	t.Run("NotInitialized", func(t *testing.T) {
		s := NewPostgresOrders("postgres://localhost/orders")
		_, err := s.GetAll(t.Context())
		assert.ErrorIs(t, err, domain.ErrNotInitialized)
	})

	t.Run("MigrationFailure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		mock.ExpectClose()

		errMigrate := errors.New("migration failed")
		s := &SQLOrders{
			connect: func(context.Context) (sqldb, func(), error) {
				return db, func() { _ = db.Close() }, nil
			},
			migrate: func(context.Context) error { return errMigrate },
		}

		err = s.Init(t.Context())
		assert.ErrorIs(t, err, domain.ErrStorage)
		assert.ErrorIs(t, err, errMigrate)

		_, err = s.GetAll(t.Context())
		assert.ErrorIs(t, err, domain.ErrNotInitialized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLOrdersInsertBatch(t *testing.T) {
	t.Run("Commit", func(t *testing.T) {
		s, mock := newMockSQLOrders(t)

		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT INTO orders")
		prep.ExpectQuery().
			WithArgs("A", "Cake", sqlmock.AnyArg(), 2, "c1", testCreatedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		prep.ExpectQuery().
			WithArgs("B", "Tart", sqlmock.AnyArg(), 1, "c1", testCreatedAt).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectCommit()

		orders, err := s.InsertBatch(t.Context(), []domain.OrderFields{
			{
				Name: "A", Category: "Cake",
				Price:    decimal.RequireFromString("3.00"),
				Quantity: 2, ConfirmationID: "c1", CreatedAt: testCreatedAt,
			},
			{
				Name: "B", Category: "Tart",
				Price:    decimal.RequireFromString("5.00"),
				Quantity: 1, ConfirmationID: "c1", CreatedAt: testCreatedAt,
			},
		})
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, uint64(1), orders[0].ID)
		assert.Equal(t, uint64(2), orders[1].ID)
	})

	t.Run("Rollback", func(t *testing.T) {
		s, mock := newMockSQLOrders(t)

		mock.ExpectBegin()
		prep := mock.ExpectPrepare("INSERT INTO orders")
		prep.ExpectQuery().
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		prep.ExpectQuery().
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := s.InsertBatch(t.Context(), []domain.OrderFields{
			fields("A", "Cake", "3"),
			fields("B", "Tart", "5"),
		})
		assert.ErrorIs(t, err, domain.ErrStorage)
	})
}

func TestSQLOrdersRead(t *testing.T) {
	t.Run("GetAll", func(t *testing.T) {
		s, mock := newMockSQLOrders(t)

		mock.ExpectQuery("SELECT (.+) FROM orders ORDER BY id").
			WillReturnRows(orderRows().
				AddRow(1, "Tart", "Pastry", "4.5", 1, "", testCreatedAt))

		orders, err := s.GetAll(t.Context())
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, uint64(1), orders[0].ID)
		assert.Equal(t, "Tart", orders[0].Name)
		assert.True(t, decimal.RequireFromString("4.5").Equal(orders[0].Price))
	})

	t.Run("GetByIDNotFound", func(t *testing.T) {
		s, mock := newMockSQLOrders(t)

		mock.ExpectQuery("SELECT (.+) FROM orders WHERE id = \\$1").
			WithArgs(uint64(99)).
			WillReturnRows(orderRows())

		_, found, err := s.GetByID(t.Context(), 99)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("GetByName", func(t *testing.T) {
		s, mock := newMockSQLOrders(t)

		mock.ExpectQuery("SELECT (.+) FROM orders WHERE name = \\$1").
			WithArgs("Tart").
			WillReturnRows(orderRows().
				AddRow(1, "Tart", "Pastry", "4.5", 1, "", testCreatedAt).
				AddRow(3, "Tart", "Pastry", "4.5", 2, "", testCreatedAt))

		orders, err := s.GetByName(t.Context(), "Tart")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, uint64(3), orders[1].ID)
		assert.Equal(t, 2, orders[1].Quantity)
	})
}

func TestSQLOrdersWrite(t *testing.T) {
	t.Run("UpdateUpserts", func(t *testing.T) {
		s, mock := newMockSQLOrders(t)

		mock.ExpectBegin()
		mock.ExpectExec("ON CONFLICT \\(id\\) DO UPDATE").
			WithArgs(uint64(10), "Pie", "Pastry", sqlmock.AnyArg(), 1, "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("SELECT setval").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		o, err := s.Update(t.Context(), 10, fields("Pie", "Pastry", "6"))
		require.NoError(t, err)
		assert.Equal(t, uint64(10), o.ID)
	})

	t.Run("Delete", func(t *testing.T) {
		s, mock := newMockSQLOrders(t)

		mock.ExpectExec("DELETE FROM orders WHERE id = \\$1").
			WithArgs(uint64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, s.Delete(t.Context(), 1))
	})
}
