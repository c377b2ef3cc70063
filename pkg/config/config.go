// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App        AppConfig
	MySQL      MySQLConfig
	Redis      RedisConfig
	Bus        BusConfig
	Jaeger     JaegerConfig
	Metrics    MetricsConfig
	Peers      PeersConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"vehicle-saga"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
	Port      int    `env:"PORT" envDefault:"8080"`
	Debug     bool   `env:"DEBUG" envDefault:"false"`
}

// MySQLConfig содержит настройки подключения к MySQL.
// DATABASE_URL, если задан, имеет приоритет над отдельными полями (spec §6).
type MySQLConfig struct {
	DatabaseURL     string        `env:"DATABASE_URL"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"3306"`
	User            string        `env:"DB_USER" envDefault:"root"`
	Password        string        `env:"DB_PASSWORD" envDefault:"root"`
	Database        string        `env:"DB_NAME" envDefault:"vehicle_saga"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis (идемпотентность payment participant'а).
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BusConfig содержит настройки подключения к шине команд/событий.
// PUBSUB_EMULATOR_HOST переиспользуется как переопределение адреса брокера —
// так исходная реализация на Google Cloud Pub/Sub маршрутизировала трафик
// на локальный эмулятор; здесь это делает то же самое для Kafka.
type BusConfig struct {
	Brokers             []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	PubSubEmulatorHost  string   `env:"PUBSUB_EMULATOR_HOST"`
	ProjectID           string   `env:"PROJECT_ID"`
}

// EffectiveBrokers возвращает брокеры шины, отдавая приоритет
// PUBSUB_EMULATOR_HOST, если он задан.
func (c BusConfig) EffectiveBrokers() []string {
	if c.PubSubEmulatorHost != "" {
		return []string{c.PubSubEmulatorHost}
	}
	return c.Brokers
}

// JaegerConfig содержит настройки трассировки.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// PeersConfig содержит HTTP-адреса участников, к которым оркестратор
// обращается синхронно (предварительная валидация, markAsSold) — заменяет
// GRPCConfig соседнего сервиса gateway, поскольку здесь транспорт HTTP.
type PeersConfig struct {
	CustomerServiceAddr string        `env:"CUSTOMER_SERVICE_ADDR" envDefault:"http://localhost:8081"`
	VehicleServiceAddr  string        `env:"VEHICLE_SERVICE_ADDR" envDefault:"http://localhost:8082"`
	PaymentServiceAddr  string        `env:"PAYMENT_SERVICE_ADDR" envDefault:"http://localhost:8083"`
	CallTimeout         time.Duration `env:"PEER_CALL_TIMEOUT" envDefault:"5s"`
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true, если приложение запущено в production режиме.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
