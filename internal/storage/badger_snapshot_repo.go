package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/dgraph-io/badger/v3"
)

const badgerKeyPrefix = "world:"

// BadgerSnapshotRepo хранит снимки в BadgerDB под ключами world:<id>
type BadgerSnapshotRepo struct {
	db      *badger.DB
	dbPath  string
	codec   *Codec
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerSnapshotRepo открывает (или создаёт) базу в каталоге path
func NewBadgerSnapshotRepo(path string) (*BadgerSnapshotRepo, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerSnapshotRepo{
		db:      db,
		dbPath:  path,
		codec:   &defaultCodec,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (r *BadgerSnapshotRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}
	r.isReady = false
	return r.db.Close()
}

func (r *BadgerSnapshotRepo) ready() error {
	if !r.isReady {
		return fmt.Errorf("хранилище %s не готово", r.dbPath)
	}
	return nil
}

// Save сохраняет снимок мира
func (r *BadgerSnapshotRepo) Save(ctx context.Context, id string, snap world.Snapshot) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	data, err := r.codec.Encode(snap)
	if err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+id), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load загружает снимок мира
func (r *BadgerSnapshotRepo) Load(ctx context.Context, id string) (world.Snapshot, error) {
	if err := checkContext(ctx); err != nil {
		return world.Snapshot{}, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return world.Snapshot{}, err
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return world.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return world.Snapshot{}, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return r.codec.Decode(data)
}

// List перечисляет сохранённые миры по префиксу ключей
func (r *BadgerSnapshotRepo) List(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	var ids []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), badgerKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода BadgerDB: %w", err)
	}
	return ids, nil
}

// Delete удаляет снимок мира
func (r *BadgerSnapshotRepo) Delete(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(badgerKeyPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}
