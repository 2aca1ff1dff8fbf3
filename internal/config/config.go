package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// WorldConfig - параметры генерации сетки. Seed == 0 означает сид от времени запуска.
type WorldConfig struct {
	Size       int    `yaml:"size"`
	OreSpacing int    `yaml:"ore_spacing"`
	Seed       int64  `yaml:"seed"`
	OreMode    string `yaml:"ore_mode"`
}

// Storage backends
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type StorageConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
	WorldID  string `yaml:"world_id"`
}

// EventBusConfig - пустой URL означает шину в памяти процесса
type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "FACTORY_REST_PORT", 8088)
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			Size:       512,
			OreSpacing: 32,
			OreMode:    "uniform",
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			Path:    "data/world",
			WorldID: "default",
		},
		EventBus: EventBusConfig{
			Stream:    "FACTORY_EVENTS",
			Retention: 24,
		},
		Telemetry: TelemetryConfig{ServiceName: "factory-server"},
		Log:       LogConfig{Level: "info", Dir: "logs"},
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV FACTORY_CONFIG; если и он
// не задан, возвращаются значения по умолчанию. Затем применяются переменные окружения.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("FACTORY_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv переопределяет отдельные поля из окружения
func (c *Config) applyEnv() {
	if v := os.Getenv("FACTORY_WORLD_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.World.Seed = seed
		}
	}
	if v := os.Getenv("FACTORY_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("FACTORY_REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
	}
	if v := os.Getenv("FACTORY_NATS_URL"); v != "" {
		c.EventBus.URL = v
	}
	if v := os.Getenv("FACTORY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	if c.World.Size < 3 {
		return fmt.Errorf("world.size должен быть не меньше 3, получено %d", c.World.Size)
	}
	if c.World.OreSpacing <= 0 || c.World.OreSpacing > c.World.Size {
		return fmt.Errorf("world.ore_spacing должен быть в (0, %d], получено %d", c.World.Size, c.World.OreSpacing)
	}
	switch strings.ToLower(c.World.OreMode) {
	case "", "uniform", "perlin":
	default:
		return fmt.Errorf("неизвестный world.ore_mode %q", c.World.OreMode)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendBadger:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path обязателен для backend %s", BackendBadger)
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("storage.redis_url обязателен для backend %s", BackendRedis)
		}
	default:
		return fmt.Errorf("неизвестный storage.backend %q", c.Storage.Backend)
	}
	if c.Storage.WorldID == "" {
		return fmt.Errorf("storage.world_id не может быть пустым")
	}
	return nil
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
