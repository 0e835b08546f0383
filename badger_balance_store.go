package lottery

import (
	"context"
	"errors"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"
)

// BadgerBalanceStore implements BalanceStore on an embedded badger database.
// Values are integer cents encoded as decimal text.
type BadgerBalanceStore struct {
	db            *badger.DB
	startingCents int64
	logger        Logger
}

// NewBadgerBalanceStore opens (or creates) a badger database under path
func NewBadgerBalanceStore(path string, starting decimal.Decimal) (*BadgerBalanceStore, error) {
	return NewBadgerBalanceStoreWithLogger(path, starting, &SilentLogger{})
}

// NewBadgerBalanceStoreWithLogger opens a badger database with a custom logger
func NewBadgerBalanceStoreWithLogger(path string, starting decimal.Decimal, logger Logger) (*BadgerBalanceStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, ErrStoreUnavailable.WithOperation("open").WithCause(err)
	}

	if logger == nil {
		logger = &SilentLogger{}
	}
	return &BadgerBalanceStore{
		db:            db,
		startingCents: ToCents(starting),
		logger:        logger,
	}, nil
}

func (s *BadgerBalanceStore) GetBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, storeError("get", err)
	}

	var cents int64
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		cents, err = s.read(txn, []byte(BalanceKey(id)))
		return err
	})
	if err != nil {
		return decimal.Zero, storeError("get", err)
	}
	return FromCents(cents), nil
}

func (s *BadgerBalanceStore) SetBalance(ctx context.Context, id string, value decimal.Decimal) (decimal.Decimal, error) {
	cents := max(ToCents(value), 0)
	return s.update(ctx, "set", id, func(int64) int64 { return cents })
}

func (s *BadgerBalanceStore) IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	d := ToCents(delta)
	return s.update(ctx, "increment", id, func(current int64) int64 { return max(current+d, 0) })
}

// update runs fn in a read-write transaction, retrying when a concurrent writer wins the commit
func (s *BadgerBalanceStore) update(ctx context.Context, op, id string, fn func(int64) int64) (decimal.Decimal, error) {
	key := []byte(BalanceKey(id))

	for {
		if err := ctx.Err(); err != nil {
			return decimal.Zero, storeError(op, err)
		}

		var next int64
		err := s.db.Update(func(txn *badger.Txn) error {
			current, err := s.read(txn, key)
			if err != nil {
				return err
			}
			next = fn(current)
			return txn.Set(key, []byte(strconv.FormatInt(next, 10)))
		})
		if errors.Is(err, badger.ErrConflict) {
			s.logger.Debug("balance %s conflict, retrying: key=%s", op, key)
			continue
		}
		if err != nil {
			s.logger.Error("balance %s failed: key=%s, error=%v", op, key, err)
			return decimal.Zero, storeError(op, err)
		}
		return FromCents(next), nil
	}
}

func (s *BadgerBalanceStore) read(txn *badger.Txn, key []byte) (int64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return s.startingCents, nil
	}
	if err != nil {
		return 0, err
	}

	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(val), 10, 64)
}

// Close closes the underlying database
func (s *BadgerBalanceStore) Close() error {
	return s.db.Close()
}
