package world

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

func newTestWorld(t *testing.T, seed int64) *WorldManager {
	t.Helper()
	opts := DefaultOptions()
	opts.Logger = logging.NewWriterLogger("world", &bytes.Buffer{}, logging.DEBUG)
	return NewWorldManager(seed, opts)
}

func TestWorldManager_AirByDefault(t *testing.T) {
	w := newTestWorld(t, 42)

	assert.Equal(t, block.Air, w.GetBlock(0, 0, 0), "в незагруженном мире только воздух")
	assert.False(t, w.IsSolid(0, 0, 0))
	assert.Equal(t, 0, w.ResidentCount())

	w.LoadAround(vec.Vec3{}, 0)
	assert.Equal(t, block.Air, w.GetBlock(0, -1, 0))
	assert.Equal(t, block.Air, w.GetBlock(0, vec.WorldHeight, 0))
	assert.Equal(t, block.Air, w.GetBlock(100, 0, 100), "чанк вне радиуса не загружен")
}

func TestWorldManager_LoadAroundBoundary(t *testing.T) {
	w := newTestWorld(t, 42)

	stats := w.LoadAround(vec.Vec3{X: 0, Y: 0, Z: 0}, 1)
	assert.Equal(t, LoadStats{Generated: 9, Evicted: 0, Resident: 9}, stats)
	assert.ElementsMatch(t, vec.Square(vec.ChunkCoord{}, 1), w.ResidentChunks())

	// Идемпотентность
	stats = w.LoadAround(vec.Vec3{X: 3, Y: 80, Z: 12}, 1)
	assert.Equal(t, LoadStats{Generated: 0, Evicted: 0, Resident: 9}, stats)

	// Сдвиг на один чанк по X: три новых, три выгруженных
	stats = w.LoadAround(vec.Vec3{X: 16, Y: 0, Z: 0}, 1)
	assert.Equal(t, LoadStats{Generated: 3, Evicted: 3, Resident: 9}, stats)
	assert.False(t, w.IsResident(vec.ChunkCoord{X: -1, Z: 0}))
	assert.True(t, w.IsResident(vec.ChunkCoord{X: 2, Z: 1}))

	for _, coord := range w.ResidentChunks() {
		assert.LessOrEqual(t, coord.Chebyshev(vec.ChunkCoord{X: 1, Z: 0}), 1)
	}

	// Блоки выгруженного чанка исчезают вместе с ним
	assert.Equal(t, block.Air, w.GetBlock(-5, 0, 0))
	assert.Equal(t, block.Bedrock, w.GetBlock(40, 0, 5))
}

func TestWorldManager_NegativeCoordinates(t *testing.T) {
	w := newTestWorld(t, 42)
	w.LoadAround(vec.Vec3{X: -1, Y: 70, Z: -1}, 0)

	assert.Equal(t, []vec.ChunkCoord{{X: -1, Z: -1}}, w.ResidentChunks())
	assert.Equal(t, block.Bedrock, w.GetBlock(-16, 0, -16))
	assert.Equal(t, block.Air, w.GetBlock(0, 0, 0))
}

func TestWorldManager_Deterministic(t *testing.T) {
	a := newTestWorld(t, 42)
	b := newTestWorld(t, 42)
	a.LoadAround(vec.Vec3{}, 1)
	b.LoadAround(vec.Vec3{}, 1)

	for _, coord := range a.ResidentChunks() {
		ca, ok := a.Chunk(coord)
		require.True(t, ok)
		cb, ok := b.Chunk(coord)
		require.True(t, ok)
		assert.Equal(t, ca.Digest(), cb.Digest(), "чанк %s", coord)
	}
}

func TestWorldManager_MatchesGenerator(t *testing.T) {
	w := newTestWorld(t, 42)
	w.LoadAround(vec.Vec3{}, 1)

	for _, p := range [][2]int{{0, 0}, {-7, 12}, {20, -3}, {5, 5}} {
		x, z := p[0], p[1]
		s := w.SurfaceHeight(x, z)
		assert.Equal(t, block.Bedrock, w.GetBlock(x, 0, z))
		assert.Equal(t, block.Grass, w.GetBlock(x, s, z))
		assert.True(t, w.IsSolid(x, s, z))
	}
}

func TestWorldManager_PlaceAndRemove(t *testing.T) {
	w := newTestWorld(t, 42)
	w.LoadAround(vec.Vec3{}, 1)

	s := w.SurfaceHeight(5, 5)

	assert.False(t, w.PlaceBlock(block.Stone, 5, s, 5), "клетка занята травой")
	assert.False(t, w.PlaceBlock(block.Air, 5, s+1, 5), "воздух не ставится")
	assert.False(t, w.PlaceBlock(block.Kind(200), 5, s+1, 5), "неизвестный тип")
	assert.False(t, w.PlaceBlock(block.Stone, 5, vec.WorldHeight, 5), "выше мира")
	assert.False(t, w.PlaceBlock(block.Stone, 500, 100, 5), "чанк не загружен")
	assert.Equal(t, 0, w.EditCount())

	require.True(t, w.PlaceBlock(block.Stone, 5, s+1, 5))
	assert.True(t, w.IsSolid(5, s+1, 5))
	assert.Equal(t, block.Stone, w.GetBlock(5, s+1, 5))
	assert.Equal(t, 1, w.EditCount())

	require.True(t, w.RemoveBlock(5, s+1, 5))
	assert.Equal(t, block.Air, w.GetBlock(5, s+1, 5))
	assert.False(t, w.RemoveBlock(5, s+1, 5), "повторное удаление")
	assert.False(t, w.RemoveBlock(500, 100, 5))

	require.True(t, w.RemoveBlock(5, s, 5))
	assert.False(t, w.IsSolid(5, s, 5))
}

func TestWorldManager_MutationIsLocal(t *testing.T) {
	w := newTestWorld(t, 42)
	w.LoadAround(vec.Vec3{}, 1)

	before := make(map[vec.ChunkCoord][32]byte)
	for _, coord := range w.ResidentChunks() {
		c, _ := w.Chunk(coord)
		before[coord] = c.Digest()
	}

	s := w.SurfaceHeight(0, 0)
	require.True(t, w.RemoveBlock(0, s, 0))

	for coord, digest := range before {
		c, _ := w.Chunk(coord)
		if coord == (vec.ChunkCoord{}) {
			assert.NotEqual(t, digest, c.Digest())
			continue
		}
		assert.Equal(t, digest, c.Digest(), "соседний чанк %s не должен меняться", coord)
	}
}

func TestWorldManager_EditsSurviveUnload(t *testing.T) {
	w := newTestWorld(t, 42)
	w.LoadAround(vec.Vec3{}, 0)

	s := w.SurfaceHeight(3, 3)
	require.True(t, w.PlaceBlock(block.Wood, 3, s+1, 3))
	s4 := w.SurfaceHeight(4, 4)
	require.True(t, w.RemoveBlock(4, s4-1, 4))

	w.LoadAround(vec.Vec3{X: 1000, Z: 1000}, 0)
	require.False(t, w.IsResident(vec.ChunkCoord{}))
	assert.Equal(t, block.Air, w.GetBlock(3, s+1, 3))

	w.LoadAround(vec.Vec3{}, 0)
	assert.Equal(t, block.Wood, w.GetBlock(3, s+1, 3))
	assert.Equal(t, block.Air, w.GetBlock(4, s4-1, 4))
}

func TestWorldManager_RenderPayload(t *testing.T) {
	w := newTestWorld(t, 42)
	w.LoadAround(vec.Vec3{}, 1)
	assert.Len(t, w.DirtyChunks(), 9, "свежие чанки требуют отрисовки")

	for _, coord := range w.ResidentChunks() {
		p, ok := w.RenderPayload(coord)
		require.True(t, ok)
		assert.Equal(t, coord, p.Coord)
		assert.NotEmpty(t, p.Entries)
	}
	assert.Empty(t, w.DirtyChunks())

	s := w.SurfaceHeight(-8, 24)
	require.True(t, w.PlaceBlock(block.Sand, -8, s+1, 24))
	assert.Equal(t, []vec.ChunkCoord{{X: -1, Z: 1}}, w.DirtyChunks())

	p, ok := w.RenderPayload(vec.ChunkCoord{X: -1, Z: 1})
	require.True(t, ok)
	assert.Contains(t, p.Entries, BlockEntry{Pos: vec.Vec3{X: -8, Y: s + 1, Z: 24}, Kind: block.Sand})

	_, ok = w.RenderPayload(vec.ChunkCoord{X: 9, Z: 9})
	assert.False(t, ok)
}

func TestWorldManager_View(t *testing.T) {
	w := newTestWorld(t, 42)
	w.LoadAround(vec.Vec3{}, 0)
	s := w.SurfaceHeight(2, 2)

	w.View(func(r Reader) {
		assert.True(t, r.IsSolid(2, 0, 2))
		assert.Equal(t, block.Grass, r.GetBlock(2, s, 2))
		assert.False(t, r.IsSolid(2, s+1, 2))
	})
}

func TestWorldManager_Metrics(t *testing.T) {
	opts := DefaultOptions()
	opts.Logger = logging.NewWriterLogger("world", &bytes.Buffer{}, logging.ERROR)
	opts.Metrics = NewMetrics(prometheus.NewRegistry())
	w := NewWorldManager(42, opts)

	w.LoadAround(vec.Vec3{}, 1)
	w.LoadAround(vec.Vec3{X: 16}, 1)

	assert.Equal(t, 12.0, testutil.ToFloat64(opts.Metrics.generated))
	assert.Equal(t, 3.0, testutil.ToFloat64(opts.Metrics.evicted))
	assert.Equal(t, 9.0, testutil.ToFloat64(opts.Metrics.resident))

	s := w.SurfaceHeight(20, 20)
	w.PlaceBlock(block.Stone, 20, s+1, 20)
	w.PlaceBlock(block.Stone, 20, s, 20)
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.edits.WithLabelValues("place", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(opts.Metrics.edits.WithLabelValues("place", "rejected")))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.setResident(1)
		m.chunkGenerated(0)
		m.chunksEvicted(1)
		m.chunkDiscarded()
		m.blockEdit("place", true)
	})
}
