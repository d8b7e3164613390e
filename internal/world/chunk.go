package world

import (
	"crypto/sha256"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// ChunkState задаёт состояние жизненного цикла чанка
type ChunkState uint8

const (
	ChunkUnloaded   ChunkState = iota // ещё не запрошен
	ChunkGenerating                   // генерируется, запросы к нему возвращают воздух
	ChunkResident                     // загружен и доступен для запросов
	ChunkEvicted                      // выгружен, блоки удалены из индекса
)

// String возвращает имя состояния
func (s ChunkState) String() string {
	switch s {
	case ChunkGenerating:
		return "generating"
	case ChunkResident:
		return "resident"
	case ChunkEvicted:
		return "evicted"
	default:
		return "unloaded"
	}
}

const chunkVolume = vec.ChunkSize * vec.WorldHeight * vec.ChunkSize

// Chunk представляет столб мира размером 16x256x16 блоков.
// Чанк не имеет собственной блокировки: доступ к нему сериализует WorldManager.
type Chunk struct {
	Coord vec.ChunkCoord // Координаты чанка в мире

	blocks  []block.Kind // плотный массив, x быстрее всего, затем z, затем y
	nonAir  int          // количество непустых блоков
	state   ChunkState
	dirty   bool   // нужно перестроить отображаемые данные
	version uint64 // растёт при каждом изменении блока

	payload *RenderPayload // кеш последнего собранного payload
}

// BlockEntry описывает непустой блок в отображаемых данных чанка
type BlockEntry struct {
	Pos  vec.Vec3   `json:"pos"`
	Kind block.Kind `json:"kind"`
}

// RenderPayload содержит данные, по которым слой отрисовки строит геометрию чанка
type RenderPayload struct {
	Coord   vec.ChunkCoord `json:"coord"`
	Version uint64         `json:"version"`
	Entries []BlockEntry   `json:"entries"`
}

// NewChunk создаёт пустой (весь воздух) чанк
func NewChunk(coord vec.ChunkCoord) *Chunk {
	return &Chunk{
		Coord:  coord,
		blocks: make([]block.Kind, chunkVolume),
		state:  ChunkUnloaded,
		dirty:  true,
	}
}

func index(lx, y, lz int) int {
	return (y*vec.ChunkSize+lz)*vec.ChunkSize + lx
}

func inChunk(lx, y, lz int) bool {
	return lx >= 0 && lx < vec.ChunkSize &&
		lz >= 0 && lz < vec.ChunkSize &&
		y >= 0 && y < vec.WorldHeight
}

// Get возвращает блок по локальным координатам, вне границ возвращает воздух
func (c *Chunk) Get(lx, y, lz int) block.Kind {
	if !inChunk(lx, y, lz) {
		return block.Air
	}
	return c.blocks[index(lx, y, lz)]
}

// Set устанавливает блок по локальным координатам.
// Возвращает true, если содержимое изменилось.
func (c *Chunk) Set(lx, y, lz int, kind block.Kind) bool {
	if !inChunk(lx, y, lz) {
		return false
	}

	i := index(lx, y, lz)
	prev := c.blocks[i]
	if prev == kind {
		return false
	}

	c.blocks[i] = kind
	switch {
	case prev == block.Air:
		c.nonAir++
	case kind == block.Air:
		c.nonAir--
	}

	c.version++
	c.dirty = true
	return true
}

// GetWorld возвращает блок по мировой позиции, если она принадлежит чанку
func (c *Chunk) GetWorld(pos vec.Vec3) block.Kind {
	if pos.ChunkCoord() != c.Coord {
		return block.Air
	}
	lx, y, lz := pos.Local()
	return c.Get(lx, y, lz)
}

// State возвращает состояние чанка
func (c *Chunk) State() ChunkState {
	return c.state
}

// NonAirCount возвращает количество непустых блоков в чанке
func (c *Chunk) NonAirCount() int {
	return c.nonAir
}

// Version возвращает номер версии содержимого
func (c *Chunk) Version() uint64 {
	return c.version
}

// Dirty сообщает, нужно ли перестроить отображаемые данные
func (c *Chunk) Dirty() bool {
	return c.dirty
}

// ClearDirty снимает флаг перестроения
func (c *Chunk) ClearDirty() {
	c.dirty = false
}

// Payload возвращает отображаемые данные. Список перестраивается только
// после изменения версии.
func (c *Chunk) Payload() RenderPayload {
	if c.payload != nil && c.payload.Version == c.version {
		return *c.payload
	}

	entries := make([]BlockEntry, 0, c.nonAir)
	origin := c.Coord.Origin()
	for y := 0; y < vec.WorldHeight; y++ {
		for lz := 0; lz < vec.ChunkSize; lz++ {
			for lx := 0; lx < vec.ChunkSize; lx++ {
				kind := c.blocks[index(lx, y, lz)]
				if kind == block.Air {
					continue
				}
				entries = append(entries, BlockEntry{
					Pos:  vec.Vec3{X: origin.X + lx, Y: y, Z: origin.Z + lz},
					Kind: kind,
				})
			}
		}
	}

	c.payload = &RenderPayload{Coord: c.Coord, Version: c.version, Entries: entries}
	return *c.payload
}

// HighestNonAir возвращает Y самого верхнего непустого блока столбца или -1
func (c *Chunk) HighestNonAir(lx, lz int) int {
	for y := vec.WorldHeight - 1; y >= 0; y-- {
		if c.Get(lx, y, lz) != block.Air {
			return y
		}
	}
	return -1
}

// Digest возвращает SHA-256 от содержимого чанка
func (c *Chunk) Digest() [32]byte {
	raw := make([]byte, len(c.blocks))
	for i, k := range c.blocks {
		raw[i] = byte(k)
	}
	return sha256.Sum256(raw)
}

// Clone возвращает независимую копию блоков чанка (без кеша payload)
func (c *Chunk) Clone() *Chunk {
	cp := &Chunk{
		Coord:   c.Coord,
		blocks:  make([]block.Kind, len(c.blocks)),
		nonAir:  c.nonAir,
		state:   c.state,
		dirty:   c.dirty,
		version: c.version,
	}
	copy(cp.blocks, c.blocks)
	return cp
}
