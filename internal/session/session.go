package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/physics"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

// Input задаёт управление на один кадр: движение агента плюс намерения
// сломать или поставить блок под прицелом
type Input struct {
	physics.Input
	Break     bool
	Place     bool
	PlaceKind block.Kind
}

// Options задаёт параметры цикла
type Options struct {
	RenderDistance int // радиус загрузки в чанках
	PumpPerTick    int // сколько готовых чанков применять за кадр (0 означает все)
}

// TickResult содержит итог одного кадра
type TickResult struct {
	Load     world.LoadStats `json:"load"`
	Applied  int             `json:"applied"`
	Agent    physics.State   `json:"agent"`
	Frozen   bool            `json:"frozen"`   // чанк агента ещё не загружен
	Commands int             `json:"commands"` // выполнено команд из очереди
	Broken   *vec.Vec3       `json:"broken,omitempty"`
	Placed   *vec.Vec3       `json:"placed,omitempty"`
}

// commandQueueSize ограничивает очередь команд и число команд за кадр
const commandQueueSize = 64

// command выполняется в горутине симуляции в начале кадра
type command struct {
	ctx  context.Context
	run  func()
	ran  bool
	done chan struct{}
}

// Snapshot содержит состояние сессии для чтения из других горутин
type Snapshot struct {
	ID    string        `json:"id"`
	Ticks uint64        `json:"ticks"`
	Agent physics.State `json:"agent"`
	Last  TickResult    `json:"last"`
}

// Session реализует однопоточный цикл симуляции: загрузка чанков вокруг агента,
// шаг физики и изменения блоков по прицелу
type Session struct {
	ID uuid.UUID

	world    *world.WorldManager
	streamer *world.Streamer
	agent    *physics.Agent
	opts     Options
	logger   *logging.Logger

	// Изменения мира извне (API) выполняются только через очередь
	commands chan *command

	mu      sync.Mutex
	pending Input // управление, заданное извне (API)
	ticks   uint64
	last    TickResult
}

// New создаёт сессию. streamer может быть nil: тогда чанки генерируются
// синхронно внутри Tick.
func New(w *world.WorldManager, streamer *world.Streamer, agent *physics.Agent, opts Options) *Session {
	if opts.RenderDistance < 0 {
		opts.RenderDistance = 0
	}
	return &Session{
		ID:       uuid.New(),
		world:    w,
		streamer: streamer,
		agent:    agent,
		opts:     opts,
		logger:   logging.GetComponentLogger("session"),
		commands: make(chan *command, commandQueueSize),
		last:     TickResult{Agent: agent.State()},
	}
}

// World возвращает мир сессии
func (s *Session) World() *world.WorldManager {
	return s.world
}

// Agent возвращает агента сессии. Использовать только из горутины симуляции.
func (s *Session) Agent() *physics.Agent {
	return s.agent
}

// Tick выполняет один кадр симуляции
func (s *Session) Tick(in Input, dt float64) TickResult {
	var res TickResult
	center := blockPos(s.agent.Position())

	if s.streamer != nil {
		res.Load = s.streamer.Update(center, s.opts.RenderDistance)
		res.Applied = s.streamer.Pump(s.opts.PumpPerTick)
	} else {
		res.Load = s.world.LoadAround(center, s.opts.RenderDistance)
		res.Applied = res.Load.Generated
	}

	res.Commands = s.runCommands()

	// Пока чанк под агентом не загружен, агент стоит на месте и не проваливается
	if !s.world.IsResident(center.ChunkCoord()) {
		res.Frozen = true
		res.Agent = s.agent.State()
		s.record(res)
		return res
	}

	res.Agent = s.agent.Step(in.Input, dt)

	if target := res.Agent.Target; target != nil {
		switch {
		case in.Break:
			b := target.Block
			if s.world.RemoveBlock(b.X, b.Y, b.Z) {
				res.Broken = &b
				s.logger.Debug("⛏️ Блок %v удалён", b)
			}
		case in.Place:
			if p, ok := s.place(in.PlaceKind, target.Adjacent); ok {
				res.Placed = &p
				s.logger.Debug("🧱 Блок %s поставлен в %v", in.PlaceKind, p)
			}
		}
	}

	s.record(res)
	return res
}

// place ставит блок в клетку перед гранью, не замуровывая агента
func (s *Session) place(kind block.Kind, pos vec.Vec3) (vec.Vec3, bool) {
	if s.world.Registry().IsSolid(kind) && physics.BlockAABB(pos).Intersects(s.agent.Box()) {
		return pos, false
	}
	return pos, s.world.PlaceBlock(kind, pos.X, pos.Y, pos.Z)
}

// Do ставит fn в очередь горутины симуляции и ждёт, пока очередной кадр её
// выполнит. Команда, чей ctx истёк до начала кадра, пропускается; если ctx
// истёк во время выполнения, fn всё равно доводится до конца.
func (s *Session) Do(ctx context.Context, fn func()) error {
	cmd := &command{ctx: ctx, run: fn, done: make(chan struct{})}
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		if !cmd.ran {
			return ctx.Err()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) runCommands() int {
	n := 0
	for i := 0; i < commandQueueSize; i++ {
		select {
		case cmd := <-s.commands:
			if cmd.ctx.Err() == nil {
				cmd.run()
				cmd.ran = true
				n++
			}
			close(cmd.done)
		default:
			return n
		}
	}
	return n
}

// PlaceBlock ставит блок из горутины симуляции с той же проверкой, что и
// установка по прицелу: твёрдый блок не ставится внутрь агента.
func (s *Session) PlaceBlock(ctx context.Context, kind block.Kind, pos vec.Vec3) (bool, error) {
	var placed bool
	if err := s.Do(ctx, func() { _, placed = s.place(kind, pos) }); err != nil {
		return false, err
	}
	return placed, nil
}

// RemoveBlock удаляет блок из горутины симуляции
func (s *Session) RemoveBlock(ctx context.Context, pos vec.Vec3) (bool, error) {
	var removed bool
	if err := s.Do(ctx, func() { removed = s.world.RemoveBlock(pos.X, pos.Y, pos.Z) }); err != nil {
		return false, err
	}
	return removed, nil
}

// LoadWorld заменяет состояние мира сохранением из горутины симуляции
func (s *Session) LoadWorld(ctx context.Context, data world.SaveData) error {
	var loadErr error
	if err := s.Do(ctx, func() { loadErr = s.world.Load(data) }); err != nil {
		return err
	}
	return loadErr
}

func (s *Session) record(res TickResult) {
	s.mu.Lock()
	s.ticks++
	s.last = res
	s.mu.Unlock()
}

// SetInput задаёт управление для следующих кадров Run. Намерения Break и
// Place срабатывают один раз.
func (s *Session) SetInput(in Input) {
	s.mu.Lock()
	s.pending = in
	s.mu.Unlock()
}

func (s *Session) takeInput() Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := s.pending
	s.pending.Break = false
	s.pending.Place = false
	return in
}

// Snapshot возвращает последнее состояние сессии
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:    s.ID.String(),
		Ticks: s.ticks,
		Agent: s.last.Agent,
		Last:  s.last,
	}
}

// Run крутит цикл симуляции с заданным периодом до отмены ctx
func (s *Session) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.logger.Info("▶️ Сессия %s запущена, шаг %v", s.ID, period)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("⏹️ Сессия %s остановлена", s.ID)
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			// Длинная пауза (отладчик, GC) не должна превращаться в гигантский шаг
			if dt > 0.25 {
				dt = 0.25
			}
			s.Tick(s.takeInput(), dt)
		}
	}
}

// SpawnPoint возвращает позицию ног над самым верхним твёрдым блоком
// столбца (x, z). Чанк столбца должен быть загружен.
func SpawnPoint(w *world.WorldManager, x, z int) mgl64.Vec3 {
	top := 0
	for y := vec.WorldHeight - 1; y >= 0; y-- {
		if w.IsSolid(x, y, z) {
			top = y + 1
			break
		}
	}
	return mgl64.Vec3{float64(x) + 0.5, float64(top), float64(z) + 0.5}
}

func blockPos(p mgl64.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: int(math.Floor(p.X())),
		Y: int(math.Floor(p.Y())),
		Z: int(math.Floor(p.Z())),
	}
}
