package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/blockworld/internal/api"
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/physics"
	"github.com/annel0/blockworld/internal/session"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// App собирает все компоненты сервера по конфигурации
type App struct {
	WorldName string
	Registry  *prometheus.Registry
	Store     storage.KVStore
	Repo      *storage.WorldRepo
	World     *world.WorldManager
	Streamer  *world.Streamer // nil при синхронной генерации
	Session   *session.Session
	REST      *api.RestServer

	cfg    *config.Config
	logger *logging.Logger
}

// New создаёт приложение: открывает хранилище, восстанавливает сохранённый
// мир и позицию агента, если они есть.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		WorldName: cfg.World.Name,
		Registry:  prometheus.NewRegistry(),
		cfg:       cfg,
		logger:    logging.GetServerLogger(),
	}
	if a.WorldName == "" {
		a.WorldName = storage.NewWorldName()
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.Store = store

	a.Repo, err = storage.NewWorldRepo(store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts := world.DefaultOptions()
	opts.Generator.TreeChance = cfg.World.TreeChance
	opts.Generator.Caves = cfg.World.Caves
	opts.Generator.Biomes = cfg.World.Biomes
	opts.Metrics = world.NewMetrics(a.Registry)
	a.World = world.NewWorldManager(cfg.World.Seed, opts)

	spawn, err := a.restore(ctx)
	if err != nil {
		_ = a.Repo.Close()
		return nil, err
	}

	if cfg.World.AsyncWorkers > 0 {
		a.Streamer = world.NewStreamer(a.World, world.StreamerOptions{Workers: cfg.World.AsyncWorkers})
	}

	agent := physics.NewAgent(a.World, spawn, cfg.Physics)
	a.Session = session.New(a.World, a.Streamer, agent, session.Options{
		RenderDistance: cfg.World.RenderDistance,
		PumpPerTick:    cfg.World.PumpPerTick,
	})

	a.REST = api.NewRestServer(api.Config{
		Port:      fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		World:     a.World,
		Session:   a.Session,
		Streamer:  a.Streamer,
		Repo:      a.Repo,
		WorldName: a.WorldName,
		Registry:  a.Registry,
	})

	a.logger.Info("🌍 Мир %s: seed=%d, изменений=%d, спавн=%v", a.WorldName, a.World.Seed(), a.World.EditCount(), spawn)
	return a, nil
}

// OpenStore открывает key-value хранилище выбранного бэкенда
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.KVStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	case config.BackendBadger:
		return storage.NewBadgerStore(cfg.Path)
	case config.BackendRedis:
		redisCfg := cfg.Redis
		return storage.NewRedisStore(ctx, &redisCfg)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд хранилища %q", cfg.Backend)
	}
}

// restore загружает сохранение мира и возвращает точку появления агента
func (a *App) restore(ctx context.Context) (mgl64.Vec3, error) {
	data, err := a.Repo.LoadWorld(ctx, a.WorldName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		a.logger.Info("🆕 Сохранение %s не найдено, создаётся новый мир", a.WorldName)
	case err != nil:
		return mgl64.Vec3{}, err
	default:
		if t := data.Terrain; t != nil && *t != *a.World.Save().Terrain {
			a.logger.Warn("⚠️ Параметры генерации берутся из сохранения %s: %+v", a.WorldName, *t)
		}
		if err := a.World.Load(data); err != nil {
			return mgl64.Vec3{}, err
		}
	}

	pos, ok, err := a.Repo.LoadAgentPosition(ctx, a.WorldName)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	if ok {
		return pos, nil
	}

	// Столб (0, 0) нужен для поиска поверхности
	a.World.LoadAround(vec.Vec3{}, 0)
	return session.SpawnPoint(a.World, 0, 0), nil
}

// Save сохраняет журнал изменений и позицию агента
func (a *App) Save(ctx context.Context) error {
	data := a.World.Save()
	if err := a.Repo.SaveWorld(ctx, a.WorldName, data); err != nil {
		return err
	}
	return a.Repo.SaveAgentPosition(ctx, a.WorldName, a.Session.Snapshot().Agent.Position)
}

// Run крутит симуляцию, REST API и автосохранение до отмены ctx
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.Streamer != nil {
		a.Streamer.Start(gctx)
	}

	g.Go(func() error {
		err := a.Session.Run(gctx, a.cfg.Server.TickPeriod())
		if gctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(a.REST.Start)

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.REST.Stop(stopCtx)
	})

	if interval := a.cfg.Server.AutosaveInterval; interval > 0 {
		g.Go(func() error {
			a.autosave(gctx, interval)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) autosave(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Save(ctx); err != nil {
				a.logger.Error("❌ Автосохранение: %v", err)
				continue
			}
			a.logger.Debug("💾 Автосохранение %s", a.WorldName)
		}
	}
}

// Close останавливает генерацию, сохраняет мир и закрывает хранилище
func (a *App) Close(ctx context.Context) error {
	if a.Streamer != nil {
		a.Streamer.Stop()
	}

	saveErr := a.Save(ctx)
	if saveErr != nil {
		a.logger.Error("❌ Финальное сохранение: %v", saveErr)
	}
	return errors.Join(saveErr, a.Repo.Close())
}
