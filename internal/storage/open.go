package storage

import (
	"context"
	"fmt"

	"github.com/Quantum1000/the-factory-must-grow/internal/config"
)

// Open создаёт репозиторий снимков по конфигурации
func Open(ctx context.Context, cfg config.StorageConfig) (SnapshotRepo, error) {
	switch cfg.Backend {
	case "", config.BackendMemory:
		return NewMemorySnapshotRepo(), nil
	case config.BackendBadger:
		repo, err := NewBadgerSnapshotRepo(cfg.Path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendRedis:
		repo, err := NewRedisSnapshotRepo(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("неизвестный backend хранилища %q", cfg.Backend)
	}
}
