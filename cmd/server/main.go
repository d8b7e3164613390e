package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockworld/internal/app"
	"github.com/annel0/blockworld/internal/config"
	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию BLOCKWORLD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	if cfg.Logging.File {
		logging.SetLogDir(cfg.Logging.Dir)
		if err := logging.InitDefaultLogger("server"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()
	level := logging.ParseLevel(cfg.Logging.Level)
	logging.SetDefaultLevel(level)

	logging.Info("🧱 Запуск blockworld...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТРАССИРОВКА ===
	var shutdownTelemetry func(context.Context) error
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err = observability.InitTelemetry(ctx, observability.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    true,
		})
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry недоступен: %v", err)
		}
	}
	if shutdownTelemetry == nil {
		shutdownTelemetry = observability.InitNoop(cfg.Telemetry.ServiceName)
	}

	// === КОМПОНЕНТЫ ===
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации: %v", err)
	}
	logging.GetLoggerManager().SetAllLevels(level)

	port := cfg.Server.GetRESTPort()
	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost:%d/api/server", port)
	logging.Info("   📊 Метрики: http://localhost:%d/metrics", port)
	logging.Info("   ❤️  Health check: http://localhost:%d/health", port)

	if err := application.Run(ctx); err != nil {
		logging.Error("❌ Ошибка работы сервера: %v", err)
	}
	logging.Info("📡 Завершение работы...")

	// === GRACEFUL SHUTDOWN ===
	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Close(closeCtx); err != nil {
		logging.Error("❌ Ошибка остановки: %v", err)
	}
	if err := shutdownTelemetry(closeCtx); err != nil {
		logging.Warn("⚠️ Ошибка остановки OpenTelemetry: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}
