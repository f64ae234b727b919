package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Bridge       BridgeConfig       `yaml:"bridge"`
	Cache        CacheConfig        `yaml:"cache"`
	CORS         CORSConfig         `yaml:"cors"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration. The API server and the bridge
// worker size their connection pools independently so a slow sync pass
// cannot starve API request-serving connections.
type DatabaseConfig struct {
	DSN                string `yaml:"dsn"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetime    int    `yaml:"conn_max_lifetime"`     // seconds
	WorkerMaxOpenConns int    `yaml:"worker_max_open_conns"` // bridge worker pool
	WorkerMaxIdleConns int    `yaml:"worker_max_idle_conns"`
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Addr returns the host:port address for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig authentication configuration
type AuthConfig struct {
	SecretKey          string `yaml:"secret_key"`
	APITokenPrefix     string `yaml:"api_token_prefix"`
	AccessTokenMinutes int    `yaml:"access_token_minutes"`
}

// AccessTokenTTL returns the session JWT lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenMinutes) * time.Minute
}

// RateLimitConfig rate limiting configuration
type RateLimitConfig struct {
	DefaultPerSecond int `yaml:"default_per_second"`
	DefaultBurst     int `yaml:"default_burst"`
	AdminPerSecond   int `yaml:"admin_per_second"`
	AdminBurst       int `yaml:"admin_burst"`
	LoginPerMinute   int `yaml:"login_per_minute"`
	LoginBurst       int `yaml:"login_burst"`
}

// OrchestratorConfig orchestrator polling configuration
type OrchestratorConfig struct {
	PollInterval   int `yaml:"poll_interval"`    // seconds
	RPCTimeout     int `yaml:"rpc_timeout"`      // seconds
	RPCPort        int `yaml:"rpc_port"`         // default node RPC port
	MinOnline      int `yaml:"min_online"`       // min online nodes for bridge "online"
	MaxConcurrency int `yaml:"max_concurrency"`  // simultaneous node queries
	InterCallDelay int `yaml:"inter_call_delay"` // ms between the two RPC calls per node
	RetentionDays  int `yaml:"retention_days"`   // snapshot history retention, 0 keeps forever
}

// BridgeConfig bridge ledger sync configuration
type BridgeConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	PollInterval    int    `yaml:"poll_interval"` // seconds
	RPCTimeout      int    `yaml:"rpc_timeout"`   // seconds
	BatchSize       int    `yaml:"batch_size"`    // records per RPC page
	MaxPendingPages int    `yaml:"max_pending_pages"`
}

// CacheConfig cache TTL configuration (seconds)
type CacheConfig struct {
	StatusTTL int `yaml:"status_ttl"`
	StatsTTL  int `yaml:"stats_ttl"`
	UserTTL   int `yaml:"user_ttl"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// Default returns a configuration with the built-in defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8001},
		Database: DatabaseConfig{
			MaxOpenConns:       15,
			MaxIdleConns:       5,
			ConnMaxLifetime:    3600,
			WorkerMaxOpenConns: 3,
			WorkerMaxIdleConns: 2,
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth: AuthConfig{
			APITokenPrefix:     "ora_",
			AccessTokenMinutes: 15,
		},
		RateLimit: RateLimitConfig{
			DefaultPerSecond: 10,
			DefaultBurst:     20,
			AdminPerSecond:   100,
			AdminBurst:       200,
			LoginPerMinute:   10,
			LoginBurst:       5,
		},
		Orchestrator: OrchestratorConfig{
			PollInterval:   60,
			RPCTimeout:     10,
			RPCPort:        55000,
			MinOnline:      16,
			MaxConcurrency: 5,
			InterCallDelay: 1000,
			RetentionDays:  30,
		},
		Bridge: BridgeConfig{
			PollInterval:    60,
			RPCTimeout:      30,
			BatchSize:       100,
			MaxPendingPages: 100,
		},
		Cache: CacheConfig{StatusTTL: 10, StatsTTL: 60, UserTTL: 300},
		CORS:  CORSConfig{AllowedOrigins: []string{"*"}, MaxAge: 3600},
	}
}

// LoadConfig loads the configuration file, applies environment overrides
// and returns the resulting configuration. A missing file is not fatal;
// defaults plus environment variables are used instead.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
		}
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	overrideFromEnv(config)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required (set database.dsn or DATABASE_DSN)")
	}
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth secret key is required (set auth.secret_key or SECRET_KEY)")
	}
	if c.Bridge.RPCURL == "" {
		return fmt.Errorf("bridge rpc url is required (set bridge.rpc_url or BRIDGE_RPC_URL)")
	}
	return nil
}

// overrideFromEnv applies environment variable overrides
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		config.Redis.Host = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		if p, err := strconv.Atoi(redisPort); err == nil {
			config.Redis.Port = p
		}
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.Redis.Password = redisPassword
	}

	if secretKey := os.Getenv("SECRET_KEY"); secretKey != "" {
		config.Auth.SecretKey = secretKey
	}

	if bridgeURL := os.Getenv("BRIDGE_RPC_URL"); bridgeURL != "" {
		config.Bridge.RPCURL = bridgeURL
	}
	if interval := os.Getenv("BRIDGE_POLL_INTERVAL"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			config.Bridge.PollInterval = v
		}
	}

	if interval := os.Getenv("ORCHESTRATOR_POLL_INTERVAL"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil {
			config.Orchestrator.PollInterval = v
		}
	}
	if minOnline := os.Getenv("MIN_ONLINE_FOR_BRIDGE"); minOnline != "" {
		if v, err := strconv.Atoi(minOnline); err == nil {
			config.Orchestrator.MinOnline = v
		}
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}
