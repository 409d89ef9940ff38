package config

import "time"

type Config struct {
	Service *ServiceConfig
	Redis   *RedisConfig
	Auth    *AuthConfig
	Hub     *HubConfig
	Worker  *WorkerConfig
	Logger  *LoggerConfig
	Tracer  *TracerConfig
}

type ServiceConfig struct {
	Name string
	Env  string
	Add  string
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

// AuthConfig holds the secrets used by the websocket authenticate step
// and the event intake endpoints. An empty JWTSecret switches the
// authenticate step to trusting the identity fields sent by the client.
type AuthConfig struct {
	JWTSecret    string
	TokenTTL     time.Duration
	ServiceToken string
}

type HubConfig struct {
	SendBuffer        int
	WriteTimeout      time.Duration
	ReadLimit         int64
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration
	RelayPrefix       string
	AllowedOrigins    []string
}

// WorkerConfig controls the order event stream. IntakeMode "stream" makes
// the HTTP intake append to the stream instead of routing in-process.
type WorkerConfig struct {
	IntakeMode    string
	Stream        string
	ConsumerGroup string
	BlockTimeout  time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Enabled bool
	Address string
}
