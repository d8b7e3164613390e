package world

import (
	"errors"
	"fmt"
	"time"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// SaveVersion это единственная поддерживаемая версия формата сохранения
const SaveVersion = 1

var (
	// ErrUnsupportedVersion: версия сохранения не поддерживается
	ErrUnsupportedVersion = errors.New("неподдерживаемая версия сохранения")
	// ErrInvalidSave: сохранение содержит недопустимые данные
	ErrInvalidSave = errors.New("некорректное сохранение")
)

// Edit описывает одно изменение игрока. Air означает удалённый блок.
type Edit struct {
	X    int        `json:"x"`
	Y    int        `json:"y"`
	Z    int        `json:"z"`
	Kind block.Kind `json:"kind"`
}

// Pos возвращает позицию изменения
func (e Edit) Pos() vec.Vec3 {
	return vec.Vec3{X: e.X, Y: e.Y, Z: e.Z}
}

// TerrainSettings хранит параметры генерации, от которых кроме сида зависит
// ландшафт. Остальные параметры генератора считаются константами сборки.
type TerrainSettings struct {
	TreeChance float64 `json:"tree_chance"`
	Caves      bool    `json:"caves"`
	Biomes     bool    `json:"biomes"`
}

func terrainOf(opts GeneratorOptions) *TerrainSettings {
	return &TerrainSettings{TreeChance: opts.TreeChance, Caves: opts.Caves, Biomes: opts.Biomes}
}

func (t TerrainSettings) apply(opts GeneratorOptions) GeneratorOptions {
	opts.TreeChance = t.TreeChance
	opts.Caves = t.Caves
	opts.Biomes = t.Biomes
	return opts
}

// SaveData хранит сохранённое состояние мира. Сгенерированный ландшафт не
// хранится: он восстанавливается из сида и параметров генерации, поверх
// применяются изменения. Сохранения без terrain загружаются с текущими
// параметрами мира.
type SaveData struct {
	Version int              `json:"version"`
	Seed    int64            `json:"seed"`
	Terrain *TerrainSettings `json:"terrain,omitempty"`
	Edits   []Edit           `json:"edits"`
}

// Validate проверяет версию и содержимое сохранения
func (d SaveData) Validate() error {
	if d.Version != SaveVersion {
		return fmt.Errorf("версия %d: %w", d.Version, ErrUnsupportedVersion)
	}
	if t := d.Terrain; t != nil && !(t.TreeChance >= 0 && t.TreeChance <= 1) {
		return fmt.Errorf("вероятность дерева %v вне [0, 1]: %w", t.TreeChance, ErrInvalidSave)
	}
	for i, e := range d.Edits {
		if !e.Kind.Valid() {
			return fmt.Errorf("изменение %d: тип блока %d: %w", i, uint8(e.Kind), ErrInvalidSave)
		}
		if !e.Pos().InHeightRange() {
			return fmt.Errorf("изменение %d: высота %d вне мира: %w", i, e.Y, ErrInvalidSave)
		}
	}
	return nil
}

// Save возвращает снимок сида и журнала изменений
func (w *WorldManager) Save() SaveData {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return SaveData{
		Version: SaveVersion,
		Seed:    w.seed,
		Terrain: terrainOf(w.genOpts),
		Edits:   w.sortedEditsLocked(),
	}
}

// Load заменяет сид, параметры генерации и журнал изменений и перестраивает
// загруженные чанки. При ошибке состояние мира не меняется.
func (w *WorldManager) Load(data SaveData) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("загрузка мира: %w", err)
	}
	for _, e := range data.Edits {
		if e.Kind != block.Air && !w.registry.Defined(e.Kind) {
			return fmt.Errorf("загрузка мира: тип %s не определён: %w", e.Kind, ErrInvalidSave)
		}
	}

	edits := make(map[vec.ChunkCoord]map[vec.Vec3]block.Kind)
	for _, e := range data.Edits {
		pos := e.Pos()
		coord := pos.ChunkCoord()
		if edits[coord] == nil {
			edits[coord] = make(map[vec.Vec3]block.Kind)
		}
		edits[coord][pos] = e.Kind
	}

	w.mu.RLock()
	genOpts := w.genOpts
	w.mu.RUnlock()
	if data.Terrain != nil {
		genOpts = data.Terrain.apply(genOpts)
	}

	gen := NewGenerator(data.Seed, genOpts)
	build := func(coord vec.ChunkCoord) *Chunk {
		start := time.Now()
		c := gen.Generate(coord)
		w.metrics.chunkGenerated(time.Since(start))
		applyEdits(c, edits[coord])
		return c
	}

	// Новые чанки строятся без блокировки, подмена выполняется одним шагом под Lock
	prepared := make(map[vec.ChunkCoord]*Chunk)
	for _, coord := range w.ResidentChunks() {
		prepared[coord] = build(coord)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	store := NewChunkStore()
	for _, coord := range w.store.Coords() {
		c, ok := prepared[coord]
		if !ok {
			c = build(coord)
		}
		store.Put(c)
	}

	w.seed = data.Seed
	w.genOpts = genOpts
	w.generator = gen
	w.edits = edits
	w.store = store
	w.epoch++
	w.metrics.setResident(store.Len())

	w.logger.Info("💾 Мир загружен: сид %d, изменений %d, чанков %d", data.Seed, len(data.Edits), store.Len())
	return nil
}
