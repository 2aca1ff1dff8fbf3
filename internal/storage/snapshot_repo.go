package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Quantum1000/the-factory-must-grow/internal/world"
)

// ErrNotFound возвращается, когда снимок с указанным идентификатором отсутствует
var ErrNotFound = errors.New("снимок мира не найден")

// SnapshotRepo сохраняет снимки сетки под строковыми идентификаторами мира.
// Реализации обязаны быть потокобезопасными.
type SnapshotRepo interface {
	// Save записывает снимок, перезаписывая предыдущий с тем же id
	Save(ctx context.Context, id string, snap world.Snapshot) error

	// Load читает снимок; ErrNotFound если его нет
	Load(ctx context.Context, id string) (world.Snapshot, error)

	// List возвращает идентификаторы сохранённых миров в порядке возрастания
	List(ctx context.Context) ([]string, error)

	// Delete удаляет снимок; отсутствие снимка ошибкой не считается
	Delete(ctx context.Context, id string) error

	Close() error
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("пустой идентификатор мира")
	}
	if strings.ContainsAny(id, ": \t\n") {
		return fmt.Errorf("недопустимый идентификатор мира %q", id)
	}
	return nil
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
