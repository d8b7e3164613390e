package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/world"
)

// WorldRepo сохраняет миры (сид + журнал изменений) и позицию агента
// поверх KVStore. Сохранение хранится как JSON, сжатый zstd.
type WorldRepo struct {
	kv      KVStore
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	tracer  trace.Tracer
	logger  *logging.Logger
}

// NewWorldRepo создаёт репозиторий поверх хранилища
func NewWorldRepo(kv KVStore) (*WorldRepo, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	return &WorldRepo{
		kv:      kv,
		encoder: enc,
		decoder: dec,
		tracer:  otel.Tracer("blockworld/storage"),
		logger:  logging.GetStorageLogger(),
	}, nil
}

// NewWorldName генерирует имя для нового мира
func NewWorldName() string {
	return "world-" + uuid.NewString()
}

func worldKey(name string) string {
	return "world:" + name
}

func agentKey(name string) string {
	return "agent:" + name
}

// SaveWorld записывает сохранение мира под именем name
func (r *WorldRepo) SaveWorld(ctx context.Context, name string, data world.SaveData) (err error) {
	ctx, span := r.tracer.Start(ctx, "storage.save_world", trace.WithAttributes(
		attribute.String("world.name", name),
		attribute.Int("world.edits", len(data.Edits)),
	))
	defer func() { endSpan(span, err) }()

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("ошибка сериализации мира %s: %w", name, err)
	}
	packed := r.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	span.SetAttributes(attribute.Int("payload.bytes", len(packed)))

	if err := r.kv.Put(ctx, worldKey(name), packed); err != nil {
		return fmt.Errorf("сохранение мира %s: %w", name, err)
	}

	r.logger.Debug("💾 Мир %s сохранён: %d изменений, %d байт", name, len(data.Edits), len(packed))
	return nil
}

// LoadWorld читает сохранение мира. Неподдерживаемая версия или
// повреждённые данные дают ошибку, частичной загрузки не бывает.
func (r *WorldRepo) LoadWorld(ctx context.Context, name string) (data world.SaveData, err error) {
	ctx, span := r.tracer.Start(ctx, "storage.load_world", trace.WithAttributes(
		attribute.String("world.name", name),
	))
	defer func() { endSpan(span, err) }()

	packed, err := r.kv.Get(ctx, worldKey(name))
	if err != nil {
		return world.SaveData{}, fmt.Errorf("загрузка мира %s: %w", name, err)
	}

	raw, err := r.decoder.DecodeAll(packed, nil)
	if err != nil {
		return world.SaveData{}, fmt.Errorf("мир %s: распаковка: %v: %w", name, err, world.ErrInvalidSave)
	}

	if err := json.Unmarshal(raw, &data); err != nil {
		return world.SaveData{}, fmt.Errorf("мир %s: %v: %w", name, err, world.ErrInvalidSave)
	}
	if err := data.Validate(); err != nil {
		return world.SaveData{}, fmt.Errorf("мир %s: %w", name, err)
	}

	span.SetAttributes(attribute.Int("world.edits", len(data.Edits)))
	return data, nil
}

// DeleteWorld удаляет мир и позицию агента
func (r *WorldRepo) DeleteWorld(ctx context.Context, name string) error {
	if err := r.kv.Delete(ctx, worldKey(name)); err != nil {
		return err
	}
	return r.kv.Delete(ctx, agentKey(name))
}

// SaveAgentPosition сохраняет позицию агента в мире name
func (r *WorldRepo) SaveAgentPosition(ctx context.Context, name string, pos mgl64.Vec3) error {
	raw, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return r.kv.Put(ctx, agentKey(name), raw)
}

// LoadAgentPosition возвращает позицию агента; false, если позиция не сохранялась
func (r *WorldRepo) LoadAgentPosition(ctx context.Context, name string) (mgl64.Vec3, bool, error) {
	raw, err := r.kv.Get(ctx, agentKey(name))
	if errors.Is(err, ErrNotFound) {
		return mgl64.Vec3{}, false, nil
	}
	if err != nil {
		return mgl64.Vec3{}, false, err
	}

	var pos mgl64.Vec3
	if err := json.Unmarshal(raw, &pos); err != nil {
		return mgl64.Vec3{}, false, fmt.Errorf("позиция агента %s: %w", name, err)
	}
	return pos, true, nil
}

// Close освобождает кодеки zstd и закрывает хранилище
func (r *WorldRepo) Close() error {
	r.decoder.Close()
	if err := r.encoder.Close(); err != nil {
		return err
	}
	return r.kv.Close()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
