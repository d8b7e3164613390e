package world

import (
	"github.com/annel0/blockworld/internal/util"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

// Соли для хешей структур: разные решения в одном столбце не должны коррелировать
const (
	treeSalt  int64 = 0x7265655f74726565 // решение "есть ли дерево"
	trunkSalt int64 = 0x7472756e6b5f6874 // высота ствола
)

// Константы вертикальной разметки столбца
const (
	DirtDepth      = 4 // слой земли под травой
	CaveFloorY     = 5 // ниже пещеры не вырезаются
	MaxTrunkHeight = 8
)

// GeneratorOptions задаёт параметры генерации ландшафта
type GeneratorOptions struct {
	Noise         util.NoiseParams
	TreeChance    float64 // вероятность дерева в столбце
	TrunkMin      int     // минимальная высота ствола
	TrunkMax      int     // максимальная высота ствола
	CanopyRadius  int     // радиус сферической кроны
	Caves         bool    // вырезать пещеры по 3D шуму
	CaveThreshold float64 // порог поля пещер

	// Biomes включает биомы: пустыня покрыта песком и без деревьев,
	// в лесу вероятность дерева умножается на ForestTrees
	Biomes      bool
	ForestTrees float64
}

// DefaultGeneratorOptions возвращает параметры генерации по умолчанию
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Noise:         util.DefaultNoiseParams(),
		TreeChance:    0.012,
		TrunkMin:      4,
		TrunkMax:      6,
		CanopyRadius:  2,
		Caves:         false,
		CaveThreshold: 0.72,
		Biomes:        false,
		ForestTrees:   3,
	}
}

// Generator синтезирует содержимое чанков из сида.
// Generate является чистой функцией от (seed, coord), её можно вызывать из разных горутин.
type Generator struct {
	seed  int64
	opts  GeneratorOptions
	noise *util.NoiseField
}

// NewGenerator создаёт генератор для указанного сида
func NewGenerator(seed int64, opts GeneratorOptions) *Generator {
	if opts.TrunkMin < 1 {
		opts.TrunkMin = 1
	}
	if opts.TrunkMax < opts.TrunkMin {
		opts.TrunkMax = opts.TrunkMin
	}
	if opts.TrunkMax > MaxTrunkHeight {
		opts.TrunkMax = MaxTrunkHeight
	}
	if opts.CanopyRadius < 0 {
		opts.CanopyRadius = 0
	}
	if opts.ForestTrees < 1 {
		opts.ForestTrees = 1
	}

	return &Generator{
		seed:  seed,
		opts:  opts,
		noise: util.NewNoiseField(seed, opts.Noise),
	}
}

// Seed возвращает сид генератора
func (g *Generator) Seed() int64 {
	return g.seed
}

// Options возвращает параметры генератора
func (g *Generator) Options() GeneratorOptions {
	return g.opts
}

// Noise возвращает поле шума генератора
func (g *Generator) Noise() *util.NoiseField {
	return g.noise
}

// SurfaceHeight возвращает высоту поверхности (Y блока травы) в столбце
func (g *Generator) SurfaceHeight(x, z int) int {
	h := g.noise.HeightAt(x, z)
	if h >= vec.WorldHeight {
		h = vec.WorldHeight - 1
	}
	return h
}

// ColumnKind классифицирует блок столбца без учёта пещер и структур:
// бедрок на y=0, камень ниже surface-4, земля ниже surface, трава на surface, выше воздух.
func ColumnKind(y, surface int) block.Kind {
	switch {
	case y < 0:
		return block.Air
	case y == 0:
		return block.Bedrock
	case y < surface-DirtDepth:
		return block.Stone
	case y < surface:
		return block.Dirt
	case y == surface:
		return block.Grass
	default:
		return block.Air
	}
}

// BiomeColumnKind уточняет ColumnKind для биома: в пустыне трава и земля
// заменяются песком.
func BiomeColumnKind(y, surface int, biome util.Biome) block.Kind {
	kind := ColumnKind(y, surface)
	if biome == util.BiomeDesert && (kind == block.Grass || kind == block.Dirt) {
		return block.Sand
	}
	return kind
}

// Biome возвращает биом столбца. С выключенными биомами везде равнина.
func (g *Generator) Biome(x, z int) util.Biome {
	if !g.opts.Biomes {
		return util.BiomePlains
	}
	return g.noise.BiomeAt(x, z)
}

func (g *Generator) treeChance(biome util.Biome) float64 {
	switch biome {
	case util.BiomeDesert:
		return 0
	case util.BiomeForest:
		return g.opts.TreeChance * g.opts.ForestTrees
	default:
		return g.opts.TreeChance
	}
}

// HasTree сообщает, растёт ли дерево в столбце (x, z)
func (g *Generator) HasTree(x, z int) bool {
	chance := g.treeChance(g.Biome(x, z))
	if chance <= 0 {
		return false
	}
	return util.UnitFloat(util.Hash2(g.seed^treeSalt, x, z)) < chance
}

func (g *Generator) trunkHeight(x, z int) int {
	span := uint64(g.opts.TrunkMax - g.opts.TrunkMin + 1)
	return g.opts.TrunkMin + int(util.Hash2(g.seed^trunkSalt, x, z)%span)
}

// Generate создаёт чанк с указанными координатами.
// Возвращённый чанк находится в состоянии generating и ещё не принадлежит миру.
func (g *Generator) Generate(coord vec.ChunkCoord) *Chunk {
	c := NewChunk(coord)
	c.state = ChunkGenerating

	origin := coord.Origin()
	var surface [vec.ChunkSize][vec.ChunkSize]int

	for lz := 0; lz < vec.ChunkSize; lz++ {
		for lx := 0; lx < vec.ChunkSize; lx++ {
			wx, wz := origin.X+lx, origin.Z+lz
			s := g.SurfaceHeight(wx, wz)
			surface[lx][lz] = s
			biome := g.Biome(wx, wz)

			for y := 0; y <= s; y++ {
				kind := BiomeColumnKind(y, s, biome)
				if kind == block.Stone && g.carved(wx, y, wz, s) {
					continue
				}
				c.Set(lx, y, lz, kind)
			}
		}
	}

	// Структуры ставятся вторым проходом, когда весь рельеф чанка уже готов
	for lz := 0; lz < vec.ChunkSize; lz++ {
		for lx := 0; lx < vec.ChunkSize; lx++ {
			wx, wz := origin.X+lx, origin.Z+lz
			if g.HasTree(wx, wz) {
				g.stampTree(c, lx, surface[lx][lz], lz, g.trunkHeight(wx, wz))
			}
		}
	}

	return c
}

func (g *Generator) carved(x, y, z, surface int) bool {
	if !g.opts.Caves || y < CaveFloorY || y >= surface-DirtDepth {
		return false
	}
	return g.noise.CaveAt(x, y, z) > g.opts.CaveThreshold
}

// stampTree ставит дерево: ствол из дерева над поверхностью и сферическую крону
// вокруг вершины ствола. Крона заполняет только воздух; ствол может заменить
// листву другого дерева того же прохода, но не рельеф. Всё, что выходит за
// границы чанка, обрезается.
func (g *Generator) stampTree(c *Chunk, lx, surface, lz, trunk int) {
	top := surface + trunk
	for y := surface + 1; y <= top; y++ {
		switch c.Get(lx, y, lz) {
		case block.Air, block.Leaves:
			c.Set(lx, y, lz, block.Wood)
		}
	}

	r := g.opts.CanopyRadius
	// +0.5 сглаживает угловатость сферы малого радиуса
	limit := float64(r*r) + 0.5
	for dy := -r; dy <= r; dy++ {
		for dz := -r; dz <= r; dz++ {
			for dx := -r; dx <= r; dx++ {
				if float64(dx*dx+dy*dy+dz*dz) > limit {
					continue
				}
				x, y, z := lx+dx, top+dy, lz+dz
				if !inChunk(x, y, z) {
					continue
				}
				if c.Get(x, y, z) == block.Air {
					c.Set(x, y, z, block.Leaves)
				}
			}
		}
	}
}
