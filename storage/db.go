package storage

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"
)

// A value log file is rewritten once this share of it is stale.
const vacuumDiscardRatio = 0.5

type Config struct {
	Path string
}

// Storage is the key value store cycle reports and counters live in.
type Storage interface {
	Close() error

	GetKey(key []byte) ([]byte, error)
	GetKeyHasPrefix(prefix []byte) ([][]byte, error)

	BatchWrite(updates map[string][]byte) error
	Delete(keys ...[]byte) error

	GetCounter(key []byte, defaultValue ...uint64) (uint64, error)
	IncCounter(key []byte, defaultValue ...uint64) (uint64, error)
	Vacuum() error

	DbPath() string
}

type BadgerStorage struct {
	config *Config
	db     *badger.DB
}

// Create storage pool at the particular path
func NewWithPath(path string) (Storage, error) {
	return New(&Config{
		Path: path,
	})
}

// Create storage pool with the given config
func New(c *Config) (Storage, error) {
	opts := badger.DefaultOptions(c.Path)
	db, err := badger.Open(
		opts.WithSyncWrites(true).WithLogger(nil),
	)

	if err != nil {
		return nil, err
	}

	return &BadgerStorage{
		config: c,
		db:     db,
	}, nil
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// BatchWrite writes every update in one transaction, or fails as a whole.
func (s *BadgerStorage) BatchWrite(updates map[string][]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for k, v := range updates {
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes keys in one transaction. Missing keys are not an error.
func (s *BadgerStorage) Delete(keys ...[]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStorage) GetKeyHasPrefix(prefix []byte) ([][]byte, error) {
	var result [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			result = append(result, it.Item().KeyCopy(nil))
		}
		return nil
	})

	return result, err
}

func (s *BadgerStorage) GetKey(key []byte) ([]byte, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	return value, err
}

// Vacuum rewrites value log files until badger finds nothing left to
// reclaim.
func (s *BadgerStorage) Vacuum() error {
	for {
		err := s.db.RunValueLogGC(vacuumDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (s *BadgerStorage) DbPath() string {
	return s.config.Path
}

// Destroy is destructive action that shutdown a database, and wipe out its entire data directory
func Destroy(s Storage) error {
	if err := s.Close(); err != nil {
		return err
	}
	return os.RemoveAll(s.DbPath())
}

// GetCounter retrieves a counter value for a given key.
// If the key doesn't exist and defaultValue is provided, it returns the defaultValue.
func (s *BadgerStorage) GetCounter(key []byte, defaultValue ...uint64) (uint64, error) {
	var counter uint64

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			if len(defaultValue) > 0 {
				counter = defaultValue[0]
				return nil
			}
			return err
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			parsed, err := strconv.ParseUint(string(val), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid counter format: %w", err)
			}
			counter = parsed
			return nil
		})
	})

	if err != nil {
		return 0, err
	}

	return counter, nil
}

// IncCounter increments a counter value for a given key by 1.
// A missing key starts from defaultValue, or 0.
func (s *BadgerStorage) IncCounter(key []byte, defaultValue ...uint64) (uint64, error) {
	var newValue uint64

	err := s.db.Update(func(txn *badger.Txn) error {
		var startValue uint64 = 0
		if len(defaultValue) > 0 {
			startValue = defaultValue[0]
		}

		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			newValue = startValue + 1
		} else if err != nil {
			return err
		} else {
			err = item.Value(func(val []byte) error {
				current, err := strconv.ParseUint(string(val), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid counter format: %w", err)
				}
				newValue = current + 1
				return nil
			})
			if err != nil {
				return err
			}
		}

		// Store as a string so we can inspect them easier in console
		return txn.Set(key, []byte(strconv.FormatUint(newValue, 10)))
	})

	if err != nil {
		return 0, err
	}

	return newValue, nil
}
