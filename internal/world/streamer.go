package world

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
)

// StreamerOptions задаёт размер пула генерации
type StreamerOptions struct {
	Workers   int // 0 -> runtime.NumCPU()
	QueueSize int // ёмкость очереди запросов и результатов
}

// StreamerStats содержит счётчики фоновой генерации
type StreamerStats struct {
	Requested uint64 `json:"requested"`
	Applied   uint64 `json:"applied"`
	Discarded uint64 `json:"discarded"`
	Pending   int    `json:"pending"`
}

type genRequest struct {
	coord vec.ChunkCoord
	gen   *Generator
	epoch uint64
}

type genResult struct {
	chunk *Chunk
	epoch uint64
}

// Streamer генерирует чанки в пуле воркеров и передаёт готовые чанки
// в мир через Pump в горутине симуляции. Чанки, вышедшие из желаемого
// квадрата до завершения генерации, отбрасываются.
type Streamer struct {
	world  *WorldManager
	opts   StreamerOptions
	logger *logging.Logger

	requests chan genRequest
	results  chan genResult

	mu      sync.Mutex
	pending map[vec.ChunkCoord]struct{}
	center  vec.ChunkCoord
	radius  int
	target  bool // задан ли желаемый квадрат

	cancel  context.CancelFunc
	group   *errgroup.Group
	started bool

	requested atomic.Uint64
	applied   atomic.Uint64
	discarded atomic.Uint64
}

// NewStreamer создаёт стример для мира. Воркеры запускаются в Start.
func NewStreamer(w *WorldManager, opts StreamerOptions) *Streamer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}

	return &Streamer{
		world:    w,
		opts:     opts,
		logger:   w.logger,
		requests: make(chan genRequest, opts.QueueSize),
		results:  make(chan genResult, opts.QueueSize),
		pending:  make(map[vec.ChunkCoord]struct{}),
	}
}

// Start запускает воркеров. Отмена ctx останавливает их.
func (s *Streamer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < s.opts.Workers; i++ {
		id := i
		s.group.Go(func() error {
			return s.worker(ctx, id)
		})
	}
	s.started = true
	s.logger.Info("🚀 Фоновая генерация запущена: %d воркеров", s.opts.Workers)
}

// Stop останавливает воркеров и ждёт их завершения. Невыполненные запросы
// и непринятые результаты отбрасываются, так что после повторного Start
// недостающие чанки будут запрошены заново.
func (s *Streamer) Stop() {
	s.mu.Lock()
	if !s.started {
		s.drainLocked()
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, group := s.cancel, s.group
	s.mu.Unlock()

	cancel()
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Ошибка воркера генерации: %v", err)
	}

	s.mu.Lock()
	dropped := s.drainLocked()
	s.mu.Unlock()
	s.logger.Info("🛑 Фоновая генерация остановлена, отброшено %d", dropped)
}

func (s *Streamer) drainLocked() int {
	dropped := 0
	for {
		select {
		case <-s.requests:
			dropped++
		case <-s.results:
			dropped++
			s.discarded.Add(1)
			s.world.metrics.chunkDiscarded()
		default:
			clear(s.pending)
			return dropped
		}
	}
}

func (s *Streamer) worker(ctx context.Context, id int) error {
	tracer := otel.Tracer("blockworld/world")

	for {
		var req genRequest
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req = <-s.requests:
		}

		_, span := tracer.Start(ctx, "world.generate_chunk", trace.WithAttributes(
			attribute.Int("chunk.x", req.coord.X),
			attribute.Int("chunk.z", req.coord.Z),
			attribute.Int("worker", id),
		))
		start := time.Now()
		c := req.gen.Generate(req.coord)
		s.world.metrics.chunkGenerated(time.Since(start))
		span.End()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.results <- genResult{chunk: c, epoch: req.epoch}:
		}
	}
}

// Update задаёт новый желаемый квадрат: выгружает чанки вне него и ставит
// в очередь недостающие. Никогда не блокируется: если очередь заполнена,
// оставшиеся чанки будут запрошены следующим вызовом.
func (s *Streamer) Update(pos vec.Vec3, r int) LoadStats {
	center := pos.ChunkCoord()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.center, s.radius, s.target = center, r, true

	w := s.world
	w.mu.Lock()
	evicted := w.evictOutsideLocked(center, r)
	var missing []vec.ChunkCoord
	for _, coord := range vec.Square(center, r) {
		if !w.store.Has(coord) {
			missing = append(missing, coord)
		}
	}
	gen, epoch, resident := w.generator, w.epoch, w.store.Len()
	w.mu.Unlock()

	for _, coord := range missing {
		if _, ok := s.pending[coord]; ok {
			continue
		}
		select {
		case s.requests <- genRequest{coord: coord, gen: gen, epoch: epoch}:
			s.pending[coord] = struct{}{}
			s.requested.Add(1)
		default:
			s.logger.Debug("Очередь генерации заполнена, %s отложен", coord)
			return LoadStats{Evicted: evicted, Resident: resident}
		}
	}
	return LoadStats{Evicted: evicted, Resident: resident}
}

// Pump применяет не более limit готовых чанков (при limit <= 0 все готовые).
// Вызывается из горутины симуляции. Возвращает число вставленных чанков.
func (s *Streamer) Pump(limit int) int {
	applied := 0
	for i := 0; limit <= 0 || i < limit; i++ {
		select {
		case res := <-s.results:
			if s.apply(res) {
				applied++
			}
		default:
			return applied
		}
	}
	return applied
}

func (s *Streamer) apply(res genResult) bool {
	coord := res.chunk.Coord

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, coord)
	wanted := s.target && coord.Chebyshev(s.center) <= s.radius

	w := s.world
	w.mu.Lock()
	defer w.mu.Unlock()

	if !wanted || res.epoch != w.epoch || !w.insertLocked(res.chunk) {
		s.discarded.Add(1)
		w.metrics.chunkDiscarded()
		return false
	}
	s.applied.Add(1)
	return true
}

// Stats возвращает счётчики стримера
func (s *Streamer) Stats() StreamerStats {
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()

	return StreamerStats{
		Requested: s.requested.Load(),
		Applied:   s.applied.Load(),
		Discarded: s.discarded.Load(),
		Pending:   pending,
	}
}
