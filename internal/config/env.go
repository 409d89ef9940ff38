package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func Load() *Config {
	return &Config{
		Service: &ServiceConfig{
			Name: getEnv("SERVICE_NAME", "orderpulse"),
			Env:  getEnv("SERVICE_ENV", "development"),
			Add:  getEnv("SERVICE_ADDR", ":8080"),
		},
		Redis: &RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE", 2),
			PingTimeout:  getEnvDuration("REDIS_PING_TIMEOUT", 2*time.Second),
		},
		Auth: &AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			TokenTTL:     getEnvDuration("JWT_TTL", 24*time.Hour),
			ServiceToken: getEnv("SERVICE_TOKEN", ""),
		},
		Hub: &HubConfig{
			SendBuffer:        getEnvInt("HUB_SEND_BUFFER", 256),
			WriteTimeout:      getEnvDuration("HUB_WRITE_TIMEOUT", 10*time.Second),
			ReadLimit:         int64(getEnvInt("HUB_READ_LIMIT", 64*1024)),
			HeartbeatInterval: getEnvDuration("HUB_HEARTBEAT_INTERVAL", 30*time.Second),
			PresenceTTL:       getEnvDuration("HUB_PRESENCE_TTL", 45*time.Second),
			RelayPrefix:       getEnv("HUB_RELAY_PREFIX", "notify:"),
			AllowedOrigins:    getEnvList("HUB_ALLOWED_ORIGINS"),
		},
		Worker: &WorkerConfig{
			IntakeMode:    getEnv("INTAKE_MODE", "direct"),
			Stream:        getEnv("WORKER_STREAM", "order-events"),
			ConsumerGroup: getEnv("WORKER_CONSUMER_GROUP", "order-event-routers"),
			BlockTimeout:  getEnvDuration("WORKER_BLOCK_TIMEOUT", 2*time.Second),
		},
		Logger: &LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracer: &TracerConfig{
			Enabled: getEnvBool("OTEL_ENABLED", false),
			Address: getEnv("OTEL_EXPORTER_ADDR", "localhost:4317"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
