package world

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

func digests(t *testing.T, w *WorldManager) map[vec.ChunkCoord][32]byte {
	t.Helper()
	out := make(map[vec.ChunkCoord][32]byte)
	for _, coord := range w.ResidentChunks() {
		c, ok := w.Chunk(coord)
		require.True(t, ok)
		out[coord] = c.Digest()
	}
	return out
}

// Сценарий: сид 42, квадрат 3x3, камень над поверхностью, сохранение и повторная загрузка
func TestSeed42Scenario(t *testing.T) {
	w := newTestWorld(t, 42)

	stats := w.LoadAround(vec.Vec3{}, 1)
	require.Equal(t, 9, stats.Generated)
	require.ElementsMatch(t, vec.Square(vec.ChunkCoord{}, 1), w.ResidentChunks())

	y := w.SurfaceHeight(5, 5) + 1
	require.True(t, w.PlaceBlock(block.Stone, 5, y, 5))
	assert.True(t, w.IsSolid(5, y, 5))

	data := w.Save()
	assert.Equal(t, SaveData{
		Version: SaveVersion,
		Seed:    42,
		Terrain: &TerrainSettings{TreeChance: 0.012},
		Edits:   []Edit{{X: 5, Y: y, Z: 5, Kind: block.Stone}},
	}, data)

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"stone"`)

	var decoded SaveData
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored := newTestWorld(t, 42)
	require.NoError(t, restored.Load(decoded))
	restored.LoadAround(vec.Vec3{}, 1)

	assert.True(t, restored.IsSolid(5, y, 5))
	assert.Equal(t, digests(t, w), digests(t, restored), "ландшафт и изменения должны совпасть")
}

func TestLoadRebuildsResidentChunks(t *testing.T) {
	src := newTestWorld(t, 42)
	src.LoadAround(vec.Vec3{}, 1)
	y := src.SurfaceHeight(8, 8)
	require.True(t, src.RemoveBlock(8, y, 8))
	data := src.Save()

	dst := newTestWorld(t, 7)
	dst.LoadAround(vec.Vec3{}, 1)
	epoch := dst.Epoch()

	require.NoError(t, dst.Load(data))
	assert.Equal(t, int64(42), dst.Seed())
	assert.Equal(t, epoch+1, dst.Epoch())
	assert.Equal(t, block.Air, dst.GetBlock(8, y, 8), "удаление восстанавливается")
	assert.Equal(t, digests(t, src), digests(t, dst))
	assert.Equal(t, data, dst.Save())
}

func TestLoadRestoresTerrainSettings(t *testing.T) {
	opts := DefaultOptions()
	opts.Generator.TreeChance = 0.2
	opts.Generator.Caves = true
	opts.Generator.Biomes = true
	src := NewWorldManager(42, opts)
	src.LoadAround(vec.Vec3{}, 1)
	data := src.Save()
	require.Equal(t, &TerrainSettings{TreeChance: 0.2, Caves: true, Biomes: true}, data.Terrain)

	// Мир с другими параметрами генерации воспроизводит ландшафт сохранения
	dst := newTestWorld(t, 42)
	dst.LoadAround(vec.Vec3{}, 1)
	require.NotEqual(t, digests(t, src), digests(t, dst))

	require.NoError(t, dst.Load(data))
	assert.Equal(t, digests(t, src), digests(t, dst))
	assert.Equal(t, 0.2, dst.Generator().Options().TreeChance)
	assert.Equal(t, data, dst.Save())

	// Сохранение без terrain оставляет текущие параметры
	require.NoError(t, dst.Load(SaveData{Version: SaveVersion, Seed: 42}))
	assert.Equal(t, 0.2, dst.Generator().Options().TreeChance)
}

func TestLoadRejectsInvalidSave(t *testing.T) {
	tests := []struct {
		name string
		data SaveData
		want error
	}{
		{
			name: "версия",
			data: SaveData{Version: 2, Seed: 1},
			want: ErrUnsupportedVersion,
		},
		{
			name: "тип блока",
			data: SaveData{Version: 1, Seed: 1, Edits: []Edit{{X: 1, Y: 80, Z: 1, Kind: block.Kind(99)}}},
			want: ErrInvalidSave,
		},
		{
			name: "параметры генерации",
			data: SaveData{Version: 1, Seed: 1, Terrain: &TerrainSettings{TreeChance: 1.5}},
			want: ErrInvalidSave,
		},
		{
			name: "высота",
			data: SaveData{Version: 1, Seed: 1, Edits: []Edit{{X: 1, Y: 300, Z: 1, Kind: block.Stone}}},
			want: ErrInvalidSave,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorld(t, 42)
			w.LoadAround(vec.Vec3{}, 0)
			y := w.SurfaceHeight(5, 5) + 1
			require.True(t, w.PlaceBlock(block.Stone, 5, y, 5))
			before := digests(t, w)

			err := w.Load(tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "ошибка %v", err)

			// Мир не тронут
			assert.Equal(t, int64(42), w.Seed())
			assert.Equal(t, uint64(0), w.Epoch())
			assert.Equal(t, before, digests(t, w))
			assert.Equal(t, block.Stone, w.GetBlock(5, y, 5))
		})
	}
}

func TestSaveDataRejectsUnknownKindName(t *testing.T) {
	var data SaveData
	err := json.Unmarshal([]byte(`{"version":1,"seed":1,"edits":[{"x":0,"y":70,"z":0,"kind":"obsidian"}]}`), &data)
	assert.Error(t, err)
}

func TestSaveIsSorted(t *testing.T) {
	w := newTestWorld(t, 42)
	w.LoadAround(vec.Vec3{}, 1)

	for _, x := range []int{10, -10, 0} {
		require.True(t, w.RemoveBlock(x, 0, 3))
	}

	edits := w.Save().Edits
	require.Len(t, edits, 3)
	assert.Equal(t, []int{-10, 0, 10}, []int{edits[0].X, edits[1].X, edits[2].X})
	assert.Equal(t, block.Air, edits[0].Kind)
}
