// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Режимы работы с бэкендом данных.
const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"
	BackendOffline  = "offline"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	GRPCAddress             string `yaml:"grpc_address" env:"GRPC_ADDRESS"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"DATABASE_URL"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	Backend                 `yaml:"backend"`
	RedisConnection         `yaml:"redis_connection"`
	RabbitMQ                `yaml:"rabbitmq"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Presale                 `yaml:"presale"`
}

// Backend настройки подключения к хостингу данных (PostgREST-совместимый API).
type Backend struct {
	URL            string        `yaml:"url" env:"BACKEND_URL"`
	Key            string        `yaml:"key" env:"BACKEND_KEY"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"BACKEND_REQUEST_TIMEOUT" env-default:"10s"`
	RatePerSecond  float64       `yaml:"rate_per_second" env:"BACKEND_RATE_PER_SECOND" env-default:"20"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env:"HTTP_TIMEOUT" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user" env:"REDIS_USER"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	MaxRetries   int           `yaml:"max_retries" env:"REDIS_MAX_RETRIES"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env:"REDIS_TIMEOUT"`
}

// RabbitMQ настройки моста шины настроек между инстансами.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env:"RABBITMQ_MAX_RETRIES" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env:"RABBITMQ_RETRY_DELAY" env-default:"2s"`
	Exchange           string        `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"presale.settings"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
}

// Presale параметры поведения пресейла.
type Presale struct {
	RefreshDelay  time.Duration `yaml:"refresh_delay" env:"PRESALE_REFRESH_DELAY" env-default:"2s"`
	CountdownTick time.Duration `yaml:"countdown_tick" env:"PRESALE_COUNTDOWN_TICK" env-default:"1s"`
	CacheTTL      time.Duration `yaml:"cache_ttl" env:"PRESALE_CACHE_TTL" env-default:"30s"`
	HistoryLimit  int           `yaml:"history_limit" env:"PRESALE_HISTORY_LIMIT" env-default:"50"`
}

// MustLoad загружает конфиг из файла CONFIG_PATH (если задан) и переменных окружения.
func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from env: %s", err)
		}
		return &cfg
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

// BackendMode определяет, с каким бэкендом работает сервис.
// Без валидных URL и ключа используется PostgreSQL, а без строки подключения офлайн-режим с демо-данными.
func (c *Config) BackendMode() string {
	if c.Backend.URL != "" && c.Backend.Key != "" {
		if u, err := url.Parse(c.Backend.URL); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			return BackendREST
		}
	}
	if c.StorageConnectionString != "" {
		return BackendPostgres
	}
	return BackendOffline
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"BackendMode: %s\n"+
			"Backend:\n"+
			"  URL: %s\n"+
			"  RequestTimeout: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"RabbitMQ:\n"+
			"  Exchange: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Presale:\n"+
			"  RefreshDelay: %s\n"+
			"  CountdownTick: %s\n",
		c.Env,
		c.BackendMode(),
		c.Backend.URL,
		c.RequestTimeout,
		c.AddressRedis,
		c.DB,
		c.Exchange,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.RefreshDelay,
		c.CountdownTick,
	)
}
