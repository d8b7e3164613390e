package world

import (
	"sort"
	"sync"
	"time"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// Reader описывает операции чтения блоков, доступные коллизиям и прицеливанию
type Reader interface {
	GetBlock(x, y, z int) block.Kind
	IsSolid(x, y, z int) bool
}

// Options задаёт зависимости и параметры WorldManager
type Options struct {
	Registry  *block.Registry  // nil -> block.Default()
	Generator GeneratorOptions // параметры генерации
	Metrics   *Metrics         // nil -> без метрик
	Logger    *logging.Logger  // nil -> логгер компонента "world"
}

// DefaultOptions возвращает параметры мира по умолчанию
func DefaultOptions() Options {
	return Options{
		Registry:  block.Default(),
		Generator: DefaultGeneratorOptions(),
	}
}

// LoadStats содержит итог одного вызова LoadAround
type LoadStats struct {
	Generated int `json:"generated"`
	Evicted   int `json:"evicted"`
	Resident  int `json:"resident"`
}

// WorldManager владеет загруженными чанками и журналом изменений игрока.
// Мутации выполняются только из горутины симуляции; чтение допускается
// из любых горутин.
type WorldManager struct {
	mu sync.RWMutex

	seed      int64
	registry  *block.Registry
	genOpts   GeneratorOptions
	generator *Generator
	store     *ChunkStore

	// Изменения игрока по чанкам. Переживают выгрузку чанка и
	// повторно применяются при его генерации.
	edits map[vec.ChunkCoord]map[vec.Vec3]block.Kind

	// Растёт при каждом Load: фоновые результаты старой эпохи отбрасываются
	epoch uint64

	metrics *Metrics
	logger  *logging.Logger
}

// NewWorldManager создаёт пустой мир для указанного сида
func NewWorldManager(seed int64, opts Options) *WorldManager {
	if opts.Registry == nil {
		opts.Registry = block.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetWorldLogger()
	}

	return &WorldManager{
		seed:      seed,
		registry:  opts.Registry,
		genOpts:   opts.Generator,
		generator: NewGenerator(seed, opts.Generator),
		store:     NewChunkStore(),
		edits:     make(map[vec.ChunkCoord]map[vec.Vec3]block.Kind),
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Seed возвращает текущий сид мира
func (w *WorldManager) Seed() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.seed
}

// Epoch возвращает номер эпохи мира (меняется при Load)
func (w *WorldManager) Epoch() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.epoch
}

// Registry возвращает реестр блоков мира
func (w *WorldManager) Registry() *block.Registry {
	return w.registry
}

// Generator возвращает текущий генератор
func (w *WorldManager) Generator() *Generator {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.generator
}

// SurfaceHeight возвращает сгенерированную высоту поверхности столбца
func (w *WorldManager) SurfaceHeight(x, z int) int {
	return w.Generator().SurfaceHeight(x, z)
}

// LoadAround загружает квадрат чанков радиуса r вокруг чанка позиции pos
// и выгружает всё, что в квадрат не попало. Повторный вызов с той же
// позицией ничего не генерирует.
func (w *WorldManager) LoadAround(pos vec.Vec3, r int) LoadStats {
	center := pos.ChunkCoord()

	w.mu.Lock()
	evicted := w.evictOutsideLocked(center, r)
	var missing []vec.ChunkCoord
	for _, coord := range vec.Square(center, r) {
		if !w.store.Has(coord) {
			missing = append(missing, coord)
		}
	}
	gen := w.generator
	epoch := w.epoch
	w.mu.Unlock()

	// Генерация идёт без блокировки: читатели видят воздух, пока чанк не вставлен
	chunks := make([]*Chunk, 0, len(missing))
	for _, coord := range missing {
		start := time.Now()
		chunks = append(chunks, gen.Generate(coord))
		w.metrics.chunkGenerated(time.Since(start))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	generated := 0
	if epoch == w.epoch {
		for _, c := range chunks {
			if w.insertLocked(c) {
				generated++
			}
		}
	} else {
		w.logger.Warn("⚠️ Мир перезагружен во время LoadAround, %d чанков отброшено", len(chunks))
	}

	stats := LoadStats{Generated: generated, Evicted: evicted, Resident: w.store.Len()}
	if generated > 0 || evicted > 0 {
		w.logger.Debug("🗺️ LoadAround %s r=%d: +%d -%d, загружено %d",
			center, r, stats.Generated, stats.Evicted, stats.Resident)
	}
	return stats
}

// evictOutsideLocked выгружает чанки дальше r от center. Вызывается под Lock.
func (w *WorldManager) evictOutsideLocked(center vec.ChunkCoord, r int) int {
	evicted := 0
	for _, coord := range w.store.Coords() {
		if coord.Chebyshev(center) > r {
			w.store.Remove(coord)
			evicted++
		}
	}
	w.metrics.chunksEvicted(evicted)
	w.metrics.setResident(w.store.Len())
	return evicted
}

// insertLocked применяет журнал изменений к свежему чанку и делает его
// резидентным. Вызывается под Lock.
func (w *WorldManager) insertLocked(c *Chunk) bool {
	if w.store.Has(c.Coord) {
		return false
	}
	applyEdits(c, w.edits[c.Coord])
	w.store.Put(c)
	w.metrics.setResident(w.store.Len())
	return true
}

func applyEdits(c *Chunk, edits map[vec.Vec3]block.Kind) {
	for pos, kind := range edits {
		lx, y, lz := pos.Local()
		c.Set(lx, y, lz, kind)
	}
}

// GetBlock возвращает блок по мировым координатам.
// Незагруженные позиции и позиции вне диапазона высот считаются воздухом.
func (w *WorldManager) GetBlock(x, y, z int) block.Kind {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.blockAt(x, y, z)
}

// IsSolid сообщает, твёрдый ли блок в позиции
func (w *WorldManager) IsSolid(x, y, z int) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.registry.IsSolid(w.blockAt(x, y, z))
}

func (w *WorldManager) blockAt(x, y, z int) block.Kind {
	pos := vec.Vec3{X: x, Y: y, Z: z}
	if !pos.InHeightRange() {
		return block.Air
	}
	c := w.store.Get(pos.ChunkCoord())
	if c == nil {
		return block.Air
	}
	lx, ly, lz := pos.Local()
	return c.Get(lx, ly, lz)
}

// View выполняет fn над согласованным снимком мира: пока fn работает,
// мир не меняется. fn не должна вызывать мутирующие методы мира.
func (w *WorldManager) View(fn func(r Reader)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(lockedReader{w: w})
}

// lockedReader читает мир без повторного захвата блокировки
type lockedReader struct {
	w *WorldManager
}

func (r lockedReader) GetBlock(x, y, z int) block.Kind {
	return r.w.blockAt(x, y, z)
}

func (r lockedReader) IsSolid(x, y, z int) bool {
	return r.w.registry.IsSolid(r.w.blockAt(x, y, z))
}

// PlaceBlock ставит блок kind в пустую клетку загруженного чанка.
// Возвращает false, если kind равен воздуху или не определён, позиция вне
// диапазона высот, чанк не загружен или клетка занята.
func (w *WorldManager) PlaceBlock(kind block.Kind, x, y, z int) bool {
	ok := w.placeBlock(kind, x, y, z)
	w.metrics.blockEdit("place", ok)
	return ok
}

func (w *WorldManager) placeBlock(kind block.Kind, x, y, z int) bool {
	if kind == block.Air || !w.registry.Defined(kind) {
		return false
	}
	pos := vec.Vec3{X: x, Y: y, Z: z}
	if !pos.InHeightRange() {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.store.Get(pos.ChunkCoord())
	if c == nil {
		return false
	}
	lx, ly, lz := pos.Local()
	if c.Get(lx, ly, lz) != block.Air {
		return false
	}

	c.Set(lx, ly, lz, kind)
	w.recordEditLocked(pos, kind)
	return true
}

// RemoveBlock заменяет блок воздухом. Возвращает false, если там уже воздух
// (в том числе в незагруженном чанке).
func (w *WorldManager) RemoveBlock(x, y, z int) bool {
	ok := w.removeBlock(x, y, z)
	w.metrics.blockEdit("remove", ok)
	return ok
}

func (w *WorldManager) removeBlock(x, y, z int) bool {
	pos := vec.Vec3{X: x, Y: y, Z: z}
	if !pos.InHeightRange() {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.store.Get(pos.ChunkCoord())
	if c == nil {
		return false
	}
	lx, ly, lz := pos.Local()
	if c.Get(lx, ly, lz) == block.Air {
		return false
	}

	c.Set(lx, ly, lz, block.Air)
	w.recordEditLocked(pos, block.Air)
	return true
}

func (w *WorldManager) recordEditLocked(pos vec.Vec3, kind block.Kind) {
	coord := pos.ChunkCoord()
	m := w.edits[coord]
	if m == nil {
		m = make(map[vec.Vec3]block.Kind)
		w.edits[coord] = m
	}
	m[pos] = kind
}

// EditCount возвращает количество записанных изменений
func (w *WorldManager) EditCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	n := 0
	for _, m := range w.edits {
		n += len(m)
	}
	return n
}

// IsResident сообщает, загружен ли чанк
func (w *WorldManager) IsResident(coord vec.ChunkCoord) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.Has(coord)
}

// ResidentChunks возвращает координаты загруженных чанков
func (w *WorldManager) ResidentChunks() []vec.ChunkCoord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.Coords()
}

// ResidentCount возвращает количество загруженных чанков
func (w *WorldManager) ResidentCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.store.Len()
}

// Chunk возвращает копию загруженного чанка
func (w *WorldManager) Chunk(coord vec.ChunkCoord) (*Chunk, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	c := w.store.Get(coord)
	if c == nil {
		return nil, false
	}
	return c.Clone(), true
}

// DirtyChunks возвращает загруженные чанки, отображение которых устарело
func (w *WorldManager) DirtyChunks() []vec.ChunkCoord {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var dirty []vec.ChunkCoord
	for _, coord := range w.store.Coords() {
		if w.store.Get(coord).Dirty() {
			dirty = append(dirty, coord)
		}
	}
	return dirty
}

// RenderPayload собирает отображаемые данные чанка и снимает с него флаг dirty
func (w *WorldManager) RenderPayload(coord vec.ChunkCoord) (RenderPayload, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.store.Get(coord)
	if c == nil {
		return RenderPayload{}, false
	}
	p := c.Payload()
	c.ClearDirty()
	return p, true
}

// sortedEditsLocked возвращает журнал изменений в детерминированном порядке
func (w *WorldManager) sortedEditsLocked() []Edit {
	var out []Edit
	for _, m := range w.edits {
		for pos, kind := range m {
			out = append(out, Edit{X: pos.X, Y: pos.Y, Z: pos.Z, Kind: kind})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}
