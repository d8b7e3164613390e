package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/util"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

func TestColumnKind(t *testing.T) {
	const surface = 70

	tests := []struct {
		y    int
		want block.Kind
	}{
		{0, block.Bedrock},
		{1, block.Stone},
		{surface - 5, block.Stone},
		{surface - 4, block.Dirt},
		{surface - 1, block.Dirt},
		{surface, block.Grass},
		{surface + 1, block.Air},
		{-1, block.Air},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ColumnKind(tt.y, surface), "y=%d", tt.y)
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	coord := vec.ChunkCoord{X: -2, Z: 3}

	a := NewGenerator(42, DefaultGeneratorOptions()).Generate(coord)
	b := NewGenerator(42, DefaultGeneratorOptions()).Generate(coord)
	assert.Equal(t, a.Digest(), b.Digest(), "одинаковый сид должен давать одинаковый чанк")

	c := NewGenerator(43, DefaultGeneratorOptions()).Generate(coord)
	assert.NotEqual(t, a.Digest(), c.Digest())
}

func TestGeneratorColumnLayout(t *testing.T) {
	opts := DefaultGeneratorOptions()
	opts.TreeChance = 0
	g := NewGenerator(42, opts)

	coord := vec.ChunkCoord{X: 1, Z: -1}
	c := g.Generate(coord)
	assert.Equal(t, ChunkGenerating, c.State())

	origin := coord.Origin()
	for _, col := range [][2]int{{0, 0}, {7, 9}, {15, 15}} {
		lx, lz := col[0], col[1]
		s := g.SurfaceHeight(origin.X+lx, origin.Z+lz)
		require.GreaterOrEqual(t, s, 64)
		require.LessOrEqual(t, s, 128)

		assert.Equal(t, block.Bedrock, c.Get(lx, 0, lz))
		assert.Equal(t, block.Stone, c.Get(lx, s-5, lz))
		assert.Equal(t, block.Dirt, c.Get(lx, s-4, lz))
		assert.Equal(t, block.Dirt, c.Get(lx, s-1, lz))
		assert.Equal(t, block.Grass, c.Get(lx, s, lz))
		assert.Equal(t, block.Air, c.Get(lx, s+1, lz))
		assert.Equal(t, s, c.HighestNonAir(lx, lz))
	}
}

func TestGeneratorTreesDoNotOverwriteTerrain(t *testing.T) {
	opts := DefaultGeneratorOptions()
	opts.TreeChance = 1
	opts.TrunkMin, opts.TrunkMax = 4, 4
	g := NewGenerator(7, opts)

	coord := vec.ChunkCoord{X: 0, Z: 0}
	c := g.Generate(coord)

	for lz := 0; lz < vec.ChunkSize; lz++ {
		for lx := 0; lx < vec.ChunkSize; lx++ {
			s := g.SurfaceHeight(lx, lz)
			assert.Equal(t, block.Grass, c.Get(lx, s, lz), "крона не должна затирать рельеф")
			for y := s + 1; y <= s+4; y++ {
				assert.Equal(t, block.Wood, c.Get(lx, y, lz), "ствол (%d,%d,%d)", lx, y, lz)
			}
			assert.Equal(t, block.Leaves, c.Get(lx, s+5, lz), "крона над стволом")
		}
	}
}

func TestGeneratorTreesAreSeeded(t *testing.T) {
	g := NewGenerator(42, DefaultGeneratorOptions())

	trees := 0
	for x := -64; x < 64; x++ {
		for z := -64; z < 64; z++ {
			if g.HasTree(x, z) {
				trees++
			}
			assert.Equal(t, g.HasTree(x, z), NewGenerator(42, DefaultGeneratorOptions()).HasTree(x, z))
		}
	}
	// 128*128 столбцов при вероятности 1.2%: ожидается около 200 деревьев
	assert.Greater(t, trees, 100)
	assert.Less(t, trees, 350)
}

func TestGeneratorCaves(t *testing.T) {
	opts := DefaultGeneratorOptions()
	opts.TreeChance = 0
	opts.Caves = true
	opts.CaveThreshold = 0 // вырезать всё, что разрешено
	g := NewGenerator(1, opts)

	c := g.Generate(vec.ChunkCoord{})
	s := g.SurfaceHeight(3, 3)

	assert.Equal(t, block.Bedrock, c.Get(3, 0, 3))
	assert.Equal(t, block.Stone, c.Get(3, CaveFloorY-1, 3), "ниже пола пещер камень сохраняется")
	assert.Equal(t, block.Air, c.Get(3, CaveFloorY, 3))
	assert.Equal(t, block.Air, c.Get(3, s-DirtDepth-1, 3))
	assert.Equal(t, block.Dirt, c.Get(3, s-DirtDepth, 3))
	assert.Equal(t, block.Grass, c.Get(3, s, 3))
}

func TestGeneratorClampsOptions(t *testing.T) {
	opts := DefaultGeneratorOptions()
	opts.TrunkMin, opts.TrunkMax = 0, 20
	opts.CanopyRadius = -1

	g := NewGenerator(1, opts)
	assert.Equal(t, 1, g.Options().TrunkMin)
	assert.Equal(t, MaxTrunkHeight, g.Options().TrunkMax)
	assert.Equal(t, 0, g.Options().CanopyRadius)
}

func findBiome(t *testing.T, g *Generator, biome util.Biome) (int, int) {
	t.Helper()
	for x := -6400; x <= 6400; x += 64 {
		for z := -6400; z <= 6400; z += 64 {
			if g.Biome(x, z) == biome {
				return x, z
			}
		}
	}
	require.FailNow(t, "биом не найден", biome.String())
	return 0, 0
}

func TestBiomeColumnKind(t *testing.T) {
	const surface = 70

	assert.Equal(t, block.Sand, BiomeColumnKind(surface, surface, util.BiomeDesert))
	assert.Equal(t, block.Sand, BiomeColumnKind(surface-DirtDepth, surface, util.BiomeDesert))
	assert.Equal(t, block.Stone, BiomeColumnKind(surface-DirtDepth-1, surface, util.BiomeDesert))
	assert.Equal(t, block.Bedrock, BiomeColumnKind(0, surface, util.BiomeDesert))
	assert.Equal(t, block.Grass, BiomeColumnKind(surface, surface, util.BiomeForest))
	assert.Equal(t, block.Grass, BiomeColumnKind(surface, surface, util.BiomePlains))
}

func TestGeneratorWithoutBiomesIsPlains(t *testing.T) {
	g := NewGenerator(42, DefaultGeneratorOptions())
	for x := -6400; x <= 6400; x += 640 {
		assert.Equal(t, util.BiomePlains, g.Biome(x, -x))
	}
}

func TestGeneratorDesertIsSand(t *testing.T) {
	opts := DefaultGeneratorOptions()
	opts.Biomes = true
	opts.TreeChance = 1
	g := NewGenerator(42, opts)

	x, z := findBiome(t, g, util.BiomeDesert)
	assert.False(t, g.HasTree(x, z), "в пустыне деревьев нет")

	pos := vec.Vec3{X: x, Z: z}
	coord := pos.ChunkCoord()
	c := g.Generate(coord)
	lx, lz := x-coord.Origin().X, z-coord.Origin().Z
	s := g.SurfaceHeight(x, z)

	assert.Equal(t, block.Sand, c.Get(lx, s, lz))
	assert.Equal(t, block.Sand, c.Get(lx, s-DirtDepth, lz))
	assert.Equal(t, block.Stone, c.Get(lx, s-DirtDepth-1, lz))
}

func TestGeneratorForestHasMoreTrees(t *testing.T) {
	plain := NewGenerator(42, DefaultGeneratorOptions())
	opts := DefaultGeneratorOptions()
	opts.Biomes = true
	g := NewGenerator(42, opts)

	fx, fz := findBiome(t, g, util.BiomeForest)

	forest, base := 0, 0
	for x := fx - 64; x < fx+64; x++ {
		for z := fz - 64; z < fz+64; z++ {
			if g.Biome(x, z) != util.BiomeForest {
				continue
			}
			if plain.HasTree(x, z) {
				base++
				assert.True(t, g.HasTree(x, z), "лес сохраняет деревья равнины")
			}
			if g.HasTree(x, z) {
				forest++
			}
		}
	}
	assert.Greater(t, forest, base)
}
