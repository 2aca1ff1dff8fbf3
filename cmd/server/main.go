package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/api"
	"github.com/Quantum1000/the-factory-must-grow/internal/app"
	"github.com/Quantum1000/the-factory-must-grow/internal/config"
	"github.com/Quantum1000/the-factory-must-grow/internal/eventbus"
	"github.com/Quantum1000/the-factory-must-grow/internal/logging"
	"github.com/Quantum1000/the-factory-must-grow/internal/metrics"
	"github.com/Quantum1000/the-factory-must-grow/internal/observability"
	"github.com/Quantum1000/the-factory-must-grow/internal/storage"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или FACTORY_CONFIG)")
	seed := flag.Int64("seed", 0, "сид генерации, переопределяет world.seed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			cfg.World.Seed = *seed
		}
	})

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logging.Configure(cfg.Log.Dir, level)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🏭 Запуск сервера фабрики: size=%d ore_spacing=%d ore_mode=%s storage=%s",
		cfg.World.Size, cfg.World.OreSpacing, cfg.World.OreMode, cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации OpenTelemetry: %v", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
		}
	}()

	// === ХРАНИЛИЩЕ СНИМКОВ ===
	repo, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища %s: %v", cfg.Storage.Backend, err)
	}
	defer repo.Close()

	// === ШИНА СОБЫТИЙ ===
	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения шины событий: %v", err)
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("LoggingListener не запущен: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, nil)
	busMetrics.Start(10 * time.Second)
	defer busMetrics.Stop()

	// === МИР ===
	publisher := eventbus.NewPlacementPublisher(bus, cfg.Telemetry.ServiceName, cfg.Storage.WorldID)
	game := app.New(app.Options{
		World:     cfg.World,
		WorldID:   cfg.Storage.WorldID,
		Repo:      repo,
		Metrics:   metrics.NewCollector(nil),
		Observers: []world.PlacementObserver{publisher},
	})
	if err := startWorld(ctx, game); err != nil {
		log.Fatalf("❌ Ошибка подготовки мира: %v", err)
	}

	// === REST API ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	restServer := api.NewRestServer(api.Config{
		Port:        restPort,
		Game:        game,
		ServiceName: cfg.Telemetry.ServiceName,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- restServer.Start()
	}()

	logging.Info("✅ Сервер готов")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("   📈 Metrics: http://localhost%s/metrics", restPort)

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, останавливаемся...")
	case err := <-errCh:
		if err != nil {
			logging.Error("❌ REST API остановлен с ошибкой: %v", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if id, err := game.Save(shutdownCtx); err != nil {
		logging.Error("❌ Мир не сохранён: %v", err)
	} else {
		logging.Info("💾 Мир %s сохранён", id)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// openEventBus выбирает JetStream при заданном URL, иначе шину в памяти
func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(1024), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, err
	}
	logging.Info("Шина событий: JetStream %s, stream=%s", cfg.URL, cfg.Stream)
	return bus, nil
}

// startWorld загружает сохранённый мир или генерирует новый, если снимка нет
func startWorld(ctx context.Context, game *app.Game) error {
	id := game.Info().ID
	err := game.Load(ctx, id)
	if err == nil {
		logging.Info("📂 Мир %s загружен из хранилища", id)
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	report, err := game.Generate(ctx)
	if err != nil {
		return err
	}
	logging.Info("🌍 Мир %s сгенерирован: %d жил, %d размещений", id, len(report.Veins), report.Placed)
	return nil
}
