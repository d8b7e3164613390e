package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/blockworld/internal/physics"
	"github.com/annel0/blockworld/internal/storage"
)

// Config корневая структура конфигурации приложения
type Config struct {
	World     WorldConfig         `yaml:"world"`
	Physics   physics.AgentParams `yaml:"physics"`
	Storage   StorageConfig       `yaml:"storage"`
	Server    ServerConfig        `yaml:"server"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
	Logging   LoggingConfig       `yaml:"logging"`
}

type WorldConfig struct {
	Name           string  `yaml:"name"` // пустое значение: сгенерировать новое
	Seed           int64   `yaml:"seed"`
	RenderDistance int     `yaml:"render_distance"`
	TreeChance     float64 `yaml:"tree_chance"`
	Caves          bool    `yaml:"caves"`
	Biomes         bool    `yaml:"biomes"`
	AsyncWorkers   int     `yaml:"async_workers"` // 0: синхронная генерация в цикле
	PumpPerTick    int     `yaml:"pump_per_tick"`
}

// Поддерживаемые бэкенды хранилища
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type StorageConfig struct {
	Backend string              `yaml:"backend"`
	Path    string              `yaml:"path"`
	Redis   storage.RedisConfig `yaml:"redis"`
}

type ServerConfig struct {
	RESTPort         int           `yaml:"rest_port"`
	TickRate         int           `yaml:"tick_rate"` // кадров в секунду
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"` // host:port OTLP HTTP
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
	Dir   string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Seed:           42,
			RenderDistance: 2,
			TreeChance:     0.012,
			Biomes:         true,
			PumpPerTick:    4,
		},
		Physics: physics.DefaultAgentParams(),
		Storage: StorageConfig{
			Backend: BackendBadger,
			Path:    "data",
			Redis:   *storage.DefaultRedisConfig(),
		},
		Server: ServerConfig{
			TickRate:         20,
			AutosaveInterval: time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "blockworld",
			Endpoint:    "localhost:4318",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// TickPeriod возвращает длительность кадра
func (s *ServerConfig) TickPeriod() time.Duration {
	if s.TickRate <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(s.TickRate)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "BLOCKWORLD_REST_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendBadger, BackendRedis:
	default:
		return fmt.Errorf("storage.backend: неизвестный бэкенд %q", c.Storage.Backend)
	}
	if c.World.RenderDistance < 0 {
		return fmt.Errorf("world.render_distance: %d < 0", c.World.RenderDistance)
	}
	if !(c.World.TreeChance >= 0 && c.World.TreeChance <= 1) {
		return fmt.Errorf("world.tree_chance: %v вне [0, 1]", c.World.TreeChance)
	}
	if err := validatePhysics(c.Physics); err != nil {
		return err
	}
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("server.tick_rate: %d <= 0", c.Server.TickRate)
	}
	return nil
}

// validatePhysics отсекает параметры, на которых шаг агента или луч
// прицеливания не завершаются либо дают NaN
func validatePhysics(p physics.AgentParams) error {
	positive := []struct {
		name  string
		value float64
	}{
		{"width", p.Width},
		{"height", p.Height},
		{"eye_height", p.EyeHeight},
		{"reach", p.Reach},
	}
	for _, f := range positive {
		if !(f.value > 0) || math.IsInf(f.value, 0) {
			return fmt.Errorf("physics.%s: %v должно быть конечным и > 0", f.name, f.value)
		}
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"gravity", p.Gravity},
		{"terminal_velocity", p.TerminalVelocity},
		{"walk_speed", p.WalkSpeed},
		{"jump_speed", p.JumpSpeed},
	}
	for _, f := range nonNegative {
		if !(f.value >= 0) || math.IsInf(f.value, 0) {
			return fmt.Errorf("physics.%s: %v должно быть конечным и >= 0", f.name, f.value)
		}
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берётся BLOCKWORLD_CONFIG; если и он пуст, используются только дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("BLOCKWORLD_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение конфигурации: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
		}
	}

	if addr := os.Getenv("BLOCKWORLD_REDIS_ADDR"); addr != "" {
		cfg.Storage.Redis.Addr = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
