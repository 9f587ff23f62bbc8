package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

var _ port.OrdersStorage = (*SQLOrders)(nil)

const orderColumns = `id, name, category, price, quantity, confirmation_id, created_at`

// A SQLOrders keeps orders in a PostgreSQL table.
type SQLOrders struct {
	lc      lifecycle
	connect func(context.Context) (sqldb, func(), error)
	migrate func(context.Context) error
	db      sqldb
	closeDB func()
}

// NewPostgresOrders returns an uninitialized storage for dsn. Init
// connects and applies the orders schema.
func NewPostgresOrders(dsn string) *SQLOrders {
	return &SQLOrders{
		connect: func(ctx context.Context) (sqldb, func(), error) {
			db, err := NewSQLDB(ctx, dsn)
			if err != nil {
				return nil, nil, err
			}
			return db, db.Close, nil
		},
		migrate: func(ctx context.Context) error {
			return Migrate(ctx, dsn)
		},
	}
}

func (s *SQLOrders) Init(ctx context.Context) error {
	const op = "SQLOrders.Init"
	log := slog.With("op", op)

	err := s.lc.open(func() error {
		db, closeDB, err := s.connect(ctx)
		if err != nil {
			return err
		}
		if err := s.migrate(ctx); err != nil {
			closeDB()
			return err
		}
		s.db, s.closeDB = db, closeDB
		log.Info("orders storage is ready")
		return nil
	})
	if err != nil {
		return storageErr(op, err)
	}
	return nil
}

func (s *SQLOrders) Close() {
	s.lc.close(s.closeDB)
}

func (s *SQLOrders) Insert(
	ctx context.Context, f domain.OrderFields,
) (domain.Order, error) {
	const op = "SQLOrders.Insert"

	orders, err := s.insert(ctx, op, []domain.OrderFields{f})
	if err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (s *SQLOrders) InsertBatch(
	ctx context.Context, fs []domain.OrderFields,
) ([]domain.Order, error) {
	const op = "SQLOrders.InsertBatch"
	return s.insert(ctx, op, fs)
}

func (s *SQLOrders) insert(
	ctx context.Context, op string, fs []domain.OrderFields,
) ([]domain.Order, error) {
	query := `
		INSERT INTO orders (
			name, category, price, quantity, confirmation_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id;`

	orders := make([]domain.Order, 0, len(fs))
	err := s.tx(ctx, op, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare stmt: %w", err)
		}
		defer func() {
			if err := stmt.Close(); err != nil {
				slog.Error("failed to close prepared stmt", "op", op, "err", err)
			}
		}()

		for _, f := range fs {
			o := domain.Order{OrderFields: f}
			err := stmt.QueryRowContext(ctx,
				f.Name, f.Category, f.Price, f.Quantity,
				f.ConfirmationID, f.CreatedAt,
			).Scan(&o.ID)
			if err != nil {
				return fmt.Errorf("failed to exec: %w", err)
			}
			orders = append(orders, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *SQLOrders) GetAll(ctx context.Context) ([]domain.Order, error) {
	const op = "SQLOrders.GetAll"

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY id ASC;`
	return s.query(ctx, op, query)
}

func (s *SQLOrders) GetByName(
	ctx context.Context, name string,
) ([]domain.Order, error) {
	const op = "SQLOrders.GetByName"

	query := `SELECT ` + orderColumns + ` FROM orders WHERE name = $1 ORDER BY id ASC;`
	return s.query(ctx, op, query, name)
}

func (s *SQLOrders) GetByID(
	ctx context.Context, id uint64,
) (domain.Order, bool, error) {
	const op = "SQLOrders.GetByID"

	release, err := s.acquire(ctx, op)
	if err != nil {
		return domain.Order{}, false, err
	}
	defer release()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1;`
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, storageErr(op, err)
	}
	return o, true, nil
}

// Update replaces the order fields and keeps the id. An absent id is
// inserted, and the id sequence moves past it.
func (s *SQLOrders) Update(
	ctx context.Context, id uint64, f domain.OrderFields,
) (domain.Order, error) {
	const op = "SQLOrders.Update"

	upsert := `
		INSERT INTO orders (
			id, name, category, price, quantity, confirmation_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			quantity = EXCLUDED.quantity,
			confirmation_id = EXCLUDED.confirmation_id,
			created_at = EXCLUDED.created_at;`

	advanceSeq := `
		SELECT setval(
			pg_get_serial_sequence('orders', 'id'),
			GREATEST((SELECT MAX(id) FROM orders), 1)
		);`

	o := domain.Order{ID: id, OrderFields: f}
	err := s.tx(ctx, op, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, upsert,
			id, f.Name, f.Category, f.Price, f.Quantity,
			f.ConfirmationID, f.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, advanceSeq); err != nil {
			return fmt.Errorf("failed to advance sequence: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *SQLOrders) Delete(ctx context.Context, id uint64) error {
	const op = "SQLOrders.Delete"

	release, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer release()

	_, err = s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1;`, id)
	if err != nil {
		return storageErr(op, err)
	}
	return nil
}

// acquire holds the connection until release is called.
func (s *SQLOrders) acquire(ctx context.Context, op string) (func(), error) {
	release, err := s.lc.acquire(op)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		release()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return release, nil
}

// tx runs fn in a transaction, committed only when fn succeeds.
func (s *SQLOrders) tx(
	ctx context.Context, op string, fn func(*sql.Tx) error,
) (txErr error) {
	log := slog.With("op", op)

	release, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, fmt.Errorf("failed to begin tx: %w", err))
	}

	defer func() {
		if txErr == nil {
			if err := tx.Commit(); err != nil {
				txErr = storageErr(op, fmt.Errorf("failed to commit: %w", err))
			}
			return
		}

		if err := tx.Rollback(); err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	if err := fn(tx); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func (s *SQLOrders) query(
	ctx context.Context, op string, query string, args ...any,
) ([]domain.Order, error) {
	release, err := s.acquire(ctx, op)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.Name, &o.Category, &o.Price, &o.Quantity,
		&o.ConfirmationID, &o.CreatedAt,
	)
	return o, err
}
