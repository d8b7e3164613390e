package app

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world/block"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.World.Name = "app-test"
	cfg.World.RenderDistance = 1
	cfg.Storage.Backend = config.BackendBadger
	cfg.Storage.Path = t.TempDir()
	cfg.Server.AutosaveInterval = 0
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNewSpawnsOnSurface(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close(ctx)

	pos := a.Session.Snapshot().Agent.Position
	assert.Equal(t, 0.5, pos.X())
	assert.Equal(t, 0.5, pos.Z())
	// Над поверхностью может стоять дерево: спавн на верхнем твёрдом блоке
	assert.GreaterOrEqual(t, pos.Y(), float64(a.World.SurfaceHeight(0, 0)+1))
	y := int(pos.Y())
	assert.True(t, a.World.IsSolid(0, y-1, 0))
	assert.False(t, a.World.IsSolid(0, y, 0))
	assert.Equal(t, int64(42), a.World.Seed())
	assert.True(t, a.World.Generator().Options().Biomes)
}

func TestCloseSavesAndNewRestores(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	require.True(t, a.World.PlaceBlock(block.Wood, 0, 200, 0))
	spawn := a.Session.Snapshot().Agent.Position
	require.NoError(t, a.Close(ctx))

	// Другие seed и параметры генерации в конфиге не перекрывают сохранённые
	cfg.World.Seed = 7
	cfg.World.TreeChance = 0.5
	cfg.World.Biomes = false
	b, err := New(ctx, cfg)
	require.NoError(t, err)
	defer b.Close(ctx)

	assert.Equal(t, int64(42), b.World.Seed())
	assert.Equal(t, 0.012, b.World.Generator().Options().TreeChance)
	assert.True(t, b.World.Generator().Options().Biomes)
	assert.Equal(t, 1, b.World.EditCount())
	assert.Equal(t, spawn, b.Session.Snapshot().Agent.Position)

	b.World.LoadAround(vec.Vec3{}, 0)
	assert.Equal(t, block.Wood, b.World.GetBlock(0, 200, 0))
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendMemory
	cfg.Server.RESTPort = freePort(t)
	cfg.Server.AutosaveInterval = 10 * time.Millisecond
	cfg.World.AsyncWorkers = 2

	ctx := context.Background()
	a, err := New(ctx, cfg)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	require.Eventually(t, func() bool {
		return a.Session.Snapshot().Ticks > 5 && a.World.ResidentCount() == 9
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, a.Close(ctx))
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StorageConfig{Backend: "mysql"})
	assert.Error(t, err)
}
