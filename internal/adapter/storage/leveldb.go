package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ port.OrdersStorage = (*LevelDBOrders)(nil)

const schemaVersion = "1"

var (
	schemaKey  = []byte("orders/schema")
	seqKey     = []byte("orders/seq")
	idPrefix   = []byte("orders/id/")
	namePrefix = []byte("orders/name/")
)

// idKey keeps ids in big endian, so prefix iteration yields id order.
func idKey(id uint64) []byte {
	k := make([]byte, len(idPrefix)+8)
	copy(k, idPrefix)
	binary.BigEndian.PutUint64(k[len(idPrefix):], id)
	return k
}

func nameIndexPrefix(name string) []byte {
	k := make([]byte, 0, len(namePrefix)+len(name)+1)
	k = append(k, namePrefix...)
	k = append(k, name...)
	return append(k, 0)
}

func nameIndexKey(name string, id uint64) []byte {
	k := nameIndexPrefix(name)
	return binary.BigEndian.AppendUint64(k, id)
}

type levelReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

// A LevelDBOrders keeps orders in an embedded LevelDB database.
//
// Records live under an auto-incremented id key, a secondary
// non-unique index maps names to ids.
type LevelDBOrders struct {
	lc        lifecycle
	openFn    func() (*leveldb.DB, error)
	openRetry retry.RetryConfig
	encode    func(orderRecord) ([]byte, error)
	db        *leveldb.DB
}

// NewLevelDBOrders returns an uninitialized storage for the database
// directory at path. Init opens it.
func NewLevelDBOrders(path string) *LevelDBOrders {
	return &LevelDBOrders{
		openFn: func() (*leveldb.DB, error) {
			return leveldb.OpenFile(path, nil)
		},
		encode: encodeRecord,
		openRetry: retry.RetryConfig{
			MaxAttempts: 5,
			Backoff:     retry.LinearBackoff(200 * time.Millisecond),
			ShouldRetry: func(err error) bool {
				return errors.Is(err, lvstorage.ErrLocked) ||
					errors.Is(err, syscall.EAGAIN)
			},
		},
	}
}

// NewMemLevelDBOrders returns an uninitialized storage kept in memory.
func NewMemLevelDBOrders() *LevelDBOrders {
	return &LevelDBOrders{
		openFn: func() (*leveldb.DB, error) {
			return leveldb.Open(lvstorage.NewMemStorage(), nil)
		},
		encode: encodeRecord,
	}
}

func (s *LevelDBOrders) Init(ctx context.Context) error {
	const op = "LevelDBOrders.Init"
	log := slog.With("op", op)

	err := s.lc.open(func() error {
		db, err := retry.DoWithResult(ctx, s.openRetry, s.openFn)
		if err != nil {
			return err
		}
		if err := s.createSchema(db); err != nil {
			_ = db.Close()
			return err
		}
		s.db = db
		log.Info("orders storage is ready")
		return nil
	})
	if err != nil {
		return storageErr(op, err)
	}
	return nil
}

func (s *LevelDBOrders) createSchema(db *leveldb.DB) error {
	v, err := db.Get(schemaKey, nil)
	if err == nil {
		if string(v) != schemaVersion {
			return fmt.Errorf("unsupported schema version %q", v)
		}
		return nil
	}
	if !errors.Is(err, leveldb.ErrNotFound) {
		return err
	}
	return db.Put(schemaKey, []byte(schemaVersion), &opt.WriteOptions{Sync: true})
}

func (s *LevelDBOrders) Close() {
	const op = "LevelDBOrders.Close"
	log := slog.With("op", op)

	s.lc.close(func() {
		log.Info("closing orders storage...")
		if err := s.db.Close(); err != nil {
			log.Error("failed to close", "err", err)
			return
		}
		log.Info("orders storage is closed")
	})
}

func (s *LevelDBOrders) Insert(
	ctx context.Context, f domain.OrderFields,
) (domain.Order, error) {
	const op = "LevelDBOrders.Insert"

	orders, err := s.insert(ctx, op, []domain.OrderFields{f})
	if err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (s *LevelDBOrders) InsertBatch(
	ctx context.Context, fs []domain.OrderFields,
) ([]domain.Order, error) {
	const op = "LevelDBOrders.InsertBatch"
	return s.insert(ctx, op, fs)
}

func (s *LevelDBOrders) insert(
	ctx context.Context, op string, fs []domain.OrderFields,
) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(fs))

	err := s.update(ctx, op, func(tr *leveldb.Transaction) error {
		seq, err := readSeq(tr)
		if err != nil {
			return err
		}

		for _, f := range fs {
			seq++
			o := domain.Order{ID: seq, OrderFields: f}
			if err := s.putOrder(tr, o); err != nil {
				return err
			}
			orders = append(orders, o)
		}

		return writeSeq(tr, seq)
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *LevelDBOrders) GetAll(ctx context.Context) ([]domain.Order, error) {
	const op = "LevelDBOrders.GetAll"

	var orders []domain.Order
	err := s.view(ctx, op, func(r levelReader) error {
		it := r.NewIterator(util.BytesPrefix(idPrefix), nil)
		defer it.Release()

		for it.Next() {
			o, err := decodeOrder(it.Value())
			if err != nil {
				return err
			}
			orders = append(orders, o)
		}
		return it.Error()
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *LevelDBOrders) GetByID(
	ctx context.Context, id uint64,
) (domain.Order, bool, error) {
	const op = "LevelDBOrders.GetByID"

	var (
		o     domain.Order
		found bool
	)
	err := s.view(ctx, op, func(r levelReader) (err error) {
		o, found, err = getOrder(r, id)
		return err
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, found, nil
}

func (s *LevelDBOrders) GetByName(
	ctx context.Context, name string,
) ([]domain.Order, error) {
	const op = "LevelDBOrders.GetByName"

	var orders []domain.Order
	err := s.view(ctx, op, func(r levelReader) error {
		prefix := nameIndexPrefix(name)
		it := r.NewIterator(util.BytesPrefix(prefix), nil)
		defer it.Release()

		for it.Next() {
			rest := bytes.TrimPrefix(it.Key(), prefix)
			if len(rest) != 8 {
				continue
			}
			o, found, err := getOrder(r, binary.BigEndian.Uint64(rest))
			if err != nil {
				return err
			}
			if found && o.Name == name {
				orders = append(orders, o)
			}
		}
		return it.Error()
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Update replaces the order fields and keeps the id. An absent id is
// inserted, and the id sequence moves past it.
func (s *LevelDBOrders) Update(
	ctx context.Context, id uint64, f domain.OrderFields,
) (domain.Order, error) {
	const op = "LevelDBOrders.Update"

	o := domain.Order{ID: id, OrderFields: f}
	err := s.update(ctx, op, func(tr *leveldb.Transaction) error {
		prev, found, err := getOrder(tr, id)
		if err != nil {
			return err
		}
		if found {
			if err := tr.Delete(nameIndexKey(prev.Name, id), nil); err != nil {
				return err
			}
		}

		if err := s.putOrder(tr, o); err != nil {
			return err
		}

		seq, err := readSeq(tr)
		if err != nil {
			return err
		}
		if id > seq {
			return writeSeq(tr, id)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *LevelDBOrders) Delete(ctx context.Context, id uint64) error {
	const op = "LevelDBOrders.Delete"

	return s.update(ctx, op, func(tr *leveldb.Transaction) error {
		prev, found, err := getOrder(tr, id)
		if err != nil || !found {
			return err
		}
		if err := tr.Delete(idKey(id), nil); err != nil {
			return err
		}
		return tr.Delete(nameIndexKey(prev.Name, id), nil)
	})
}

// update runs fn in a write transaction, committed only when fn succeeds.
func (s *LevelDBOrders) update(
	ctx context.Context, op string, fn func(*leveldb.Transaction) error,
) error {
	release, err := s.lc.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tr, err := s.db.OpenTransaction()
	if err != nil {
		return storageErr(op, fmt.Errorf("failed to open tx: %w", err))
	}
	defer tr.Discard()

	if err := fn(tr); err != nil {
		return storageErr(op, err)
	}

	if err := tr.Commit(); err != nil {
		return storageErr(op, fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// view runs fn over a consistent snapshot.
func (s *LevelDBOrders) view(
	ctx context.Context, op string, fn func(levelReader) error,
) error {
	release, err := s.lc.acquire(op)
	if err != nil {
		return err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	snap, err := s.db.GetSnapshot()
	if err != nil {
		return storageErr(op, fmt.Errorf("failed to get snapshot: %w", err))
	}
	defer snap.Release()

	if err := fn(snap); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func readSeq(r levelReader) (uint64, error) {
	v, err := r.Get(seqKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupted sequence value: %d bytes", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func writeSeq(tr *leveldb.Transaction, seq uint64) error {
	return tr.Put(seqKey, binary.BigEndian.AppendUint64(nil, seq), nil)
}

func getOrder(r levelReader, id uint64) (domain.Order, bool, error) {
	v, err := r.Get(idKey(id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return domain.Order{}, false, nil
		}
		return domain.Order{}, false, err
	}
	o, err := decodeOrder(v)
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, true, nil
}

func (s *LevelDBOrders) putOrder(tr *leveldb.Transaction, o domain.Order) error {
	b, err := s.encode(toRecord(o))
	if err != nil {
		return err
	}
	if err := tr.Put(idKey(o.ID), b, nil); err != nil {
		return err
	}
	return tr.Put(nameIndexKey(o.Name, o.ID), nil, nil)
}

func encodeRecord(r orderRecord) ([]byte, error) {
	return json.Marshal(r)
}

func decodeOrder(b []byte) (domain.Order, error) {
	var r orderRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.Order{}, err
	}
	return r.toDomain(), nil
}
