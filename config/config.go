package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LIVECHAT_POSTGRES_HOST.
const EnvPrefix = "LIVECHAT"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Client    ClientConfig    `mapstructure:"client"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// BroadcastConfig controls how created messages reach the gateway.
// Driver is one of "redis", "kafka" or "local".
type BroadcastConfig struct {
	Driver           string `mapstructure:"driver"`
	Channel          string `mapstructure:"channel"`
	Event            string `mapstructure:"event"`
	RedisChannel     string `mapstructure:"redis_channel"`
	Workers          int    `mapstructure:"workers"`
	QueueSize        int    `mapstructure:"queue_size"`
	PublishTimeoutMs int    `mapstructure:"publish_timeout_ms"`
}

// GatewayConfig describes the WebSocket relay. Host, Port, TLS and Cluster are
// what clients need to reach it; the rest tunes the server side.
type GatewayConfig struct {
	AppKey            string `mapstructure:"app_key"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	TLS               bool   `mapstructure:"tls"`
	Cluster           string `mapstructure:"cluster"`
	SendBuffer        int    `mapstructure:"send_buffer"`
	HeartbeatInterval int    `mapstructure:"heartbeat_interval"`
	MaxMessageSize    int64  `mapstructure:"max_message_size"`
}

type RateLimitConfig struct {
	// CreatePerMinute caps POST /messages per client IP. Zero disables the limit.
	CreatePerMinute int  `mapstructure:"create_per_minute"`
	FailOpen        bool `mapstructure:"fail_open"`
}

type ClientConfig struct {
	APIURL         string `mapstructure:"api_url"`
	RequestTimeout int    `mapstructure:"request_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("postgres.host", "127.0.0.1")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "livechat")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("postgres.max_open_conns", 50)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic", "livechat.events")
	v.SetDefault("kafka.group_id", "livechat-gateway")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("broadcast.driver", "redis")
	v.SetDefault("broadcast.channel", "chat-room")
	v.SetDefault("broadcast.event", "message.sent")
	v.SetDefault("broadcast.redis_channel", "livechat:broadcast")
	v.SetDefault("broadcast.workers", 4)
	v.SetDefault("broadcast.queue_size", 1024)
	v.SetDefault("broadcast.publish_timeout_ms", 2000)

	v.SetDefault("gateway.app_key", "livechat")
	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.tls", false)
	v.SetDefault("gateway.cluster", "mt1")
	v.SetDefault("gateway.send_buffer", 256)
	v.SetDefault("gateway.heartbeat_interval", 30)
	v.SetDefault("gateway.max_message_size", 4096)

	v.SetDefault("ratelimit.create_per_minute", 0)
	v.SetDefault("ratelimit.fail_open", true)

	v.SetDefault("client.api_url", "http://127.0.0.1:8080")
	v.SetDefault("client.request_timeout", 10)
}

// LoadConfig reads the TOML file at path, then applies LIVECHAT_* environment
// overrides. A missing file is not an error: defaults and environment still apply.
// Variables from a .env file in the working directory are loaded first.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Broadcast.Driver {
	case "redis", "kafka", "local":
	default:
		return fmt.Errorf("unknown broadcast driver %q", c.Broadcast.Driver)
	}
	if c.Broadcast.Channel == "" {
		return errors.New("broadcast.channel must not be empty")
	}
	if c.Broadcast.Event == "" {
		return errors.New("broadcast.event must not be empty")
	}
	if c.Gateway.AppKey == "" {
		return errors.New("gateway.app_key must not be empty")
	}
	if c.Broadcast.Driver == "kafka" && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers must not be empty when broadcast.driver is kafka")
	}
	return nil
}

// DSN builds the PostgreSQL connection string.
func (p PostgresConfig) DSN() string {
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslmode)
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// URL returns the WebSocket endpoint a client dials, including the app key path.
func (g GatewayConfig) URL() string {
	scheme := "ws"
	if g.TLS {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/app/%s", scheme, g.Host, g.Port, g.AppKey)
}
