package storage

import (
	"context"
	"errors"
)

// ErrNotFound: ключ отсутствует в хранилище
var ErrNotFound = errors.New("ключ не найден")

// ErrClosed: хранилище уже закрыто
var ErrClosed = errors.New("хранилище закрыто")

// KVStore описывает минимальное key-value хранилище, над которым строятся
// репозитории мира. Реализации: память, BadgerDB, Redis.
type KVStore interface {
	// Get возвращает значение или ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// Put записывает значение, перезаписывая старое
	Put(ctx context.Context, key string, value []byte) error
	// Delete удаляет ключ; отсутствие ключа ошибкой не считается
	Delete(ctx context.Context, key string) error
	Close() error
}
