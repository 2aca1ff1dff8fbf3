package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/Quantum1000/the-factory-must-grow/internal/world"
)

// MemorySnapshotRepo хранит закодированные снимки в памяти процесса.
// Используется по умолчанию и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemorySnapshotRepo struct {
	mu    sync.RWMutex
	data  map[string][]byte
	codec *Codec
}

// NewMemorySnapshotRepo создает пустой репозиторий
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{
		data:  make(map[string][]byte),
		codec: &defaultCodec,
	}
}

func (r *MemorySnapshotRepo) Save(ctx context.Context, id string, snap world.Snapshot) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := checkContext(ctx); err != nil {
		return err
	}
	// Храним кодированную форму, чтобы снимок не делил срезы с вызывающим
	data, err := r.codec.Encode(snap)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[id] = data
	return nil
}

func (r *MemorySnapshotRepo) Load(ctx context.Context, id string) (world.Snapshot, error) {
	if err := checkContext(ctx); err != nil {
		return world.Snapshot{}, err
	}

	r.mu.RLock()
	data, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return world.Snapshot{}, ErrNotFound
	}
	return r.codec.Decode(data)
}

func (r *MemorySnapshotRepo) List(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.data))
	for id := range r.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemorySnapshotRepo) Delete(ctx context.Context, id string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, id)
	return nil
}

func (r *MemorySnapshotRepo) Close() error { return nil }
