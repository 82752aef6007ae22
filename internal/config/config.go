package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig        `toml:"app"`
	Auth       AuthConfig       `toml:"auth"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	RabbitMQ   RabbitMQConfig   `toml:"rabbitmq"`
	LLM        LLMConfig        `toml:"llm"`
	Agent      AgentConfig      `toml:"agent"`
	Datasource DatasourceConfig `toml:"datasource"`
}

type AppConfig struct {
	Name     string `toml:"name"`
	Env      string `toml:"env"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	GinMode  string `toml:"gin_mode"`
	LogLevel string `toml:"log_level"`
}

// DatabaseConfig selects the metadata store. Driver is "sqlite" or "mysql".
type DatabaseConfig struct {
	Driver        string `toml:"driver"`
	SQLitePath    string `toml:"sqlite_path"`
	MySQLHost     string `toml:"mysql_host"`
	MySQLPort     int    `toml:"mysql_port"`
	MySQLUser     string `toml:"mysql_user"`
	MySQLPassword string `toml:"mysql_password"`
	MySQLDB       string `toml:"mysql_db"`
	MySQLParams   string `toml:"mysql_params"`
}

// RedisConfig is optional; an empty Addr disables the history cache.
type RedisConfig struct {
	Addr                   string `toml:"addr"`
	Password               string `toml:"password"`
	DB                     int    `toml:"db"`
	HistoryTTLSeconds      int    `toml:"history_ttl_seconds"`
	HistoryDirtyTTLSeconds int    `toml:"history_dirty_ttl_seconds"`
}

// RabbitMQConfig is optional; an empty URL makes message writes synchronous.
type RabbitMQConfig struct {
	URL                 string `toml:"url"`
	MessagePersistQueue string `toml:"message_persist_queue"`
}

type AuthConfig struct {
	JWTSecret       string `toml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute"`
}

type LLMConfig struct {
	Provider          string `toml:"provider"`
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	MaxContextMessage int    `toml:"max_context_message"`
	TitleTimeoutMS    int    `toml:"title_timeout_ms"`
}

type AgentConfig struct {
	MaxSteps          int `toml:"max_steps"`
	RunTimeoutSeconds int `toml:"run_timeout_seconds"`
	RowLimit          int `toml:"row_limit"`
}

// DatasourceConfig governs user datasources. SQLite datasource files must live
// under SQLiteRoot; an empty root disables sqlite datasources.
type DatasourceConfig struct {
	SQLiteRoot string `toml:"sqlite_root"`
}

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	// .env only fills variables that are not already set.
	_ = godotenv.Load()

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("jwt secret must be set in production")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "dev" || c.App.Env == "development"
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.Database.MySQLUser,
		c.Database.MySQLPassword,
		c.Database.MySQLHost,
		c.Database.MySQLPort,
		c.Database.MySQLDB,
		c.Database.MySQLParams,
	)
}

func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.Auth.JWTExpireMinute) * time.Minute
}

func (c *Config) TitleTimeout() time.Duration {
	return time.Duration(c.LLM.TitleTimeoutMS) * time.Millisecond
}

func (c *Config) AgentRunTimeout() time.Duration {
	return time.Duration(c.Agent.RunTimeoutSeconds) * time.Second
}

const defaultJWTSecret = "change-me-in-production"

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "qwery",
			Env:      "dev",
			Host:     "0.0.0.0",
			Port:     8080,
			GinMode:  "debug",
			LogLevel: "info",
		},
		Auth: AuthConfig{
			JWTSecret:       defaultJWTSecret,
			JWTExpireMinute: 120,
		},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			SQLitePath:  "data/qwery.db",
			MySQLHost:   "127.0.0.1",
			MySQLPort:   3306,
			MySQLUser:   "root",
			MySQLDB:     "qwery",
			MySQLParams: "parseTime=true&loc=Local&charset=utf8mb4",
		},
		Redis: RedisConfig{
			HistoryTTLSeconds:      60,
			HistoryDirtyTTLSeconds: 5,
		},
		RabbitMQ: RabbitMQConfig{
			MessagePersistQueue: "qwery.message.persist",
		},
		LLM: LLMConfig{
			Provider:          "openai",
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			MaxContextMessage: 20,
			TitleTimeoutMS:    3000,
		},
		Agent: AgentConfig{
			MaxSteps:          8,
			RunTimeoutSeconds: 120,
			RowLimit:          500,
		},
		Datasource: DatasourceConfig{
			SQLiteRoot: "data/datasources",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)

	cfg.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", cfg.Database.Driver))
	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)
	cfg.Database.MySQLHost = getEnv("MYSQL_HOST", cfg.Database.MySQLHost)
	cfg.Database.MySQLPort = getEnvAsInt("MYSQL_PORT", cfg.Database.MySQLPort)
	cfg.Database.MySQLUser = getEnv("MYSQL_USER", cfg.Database.MySQLUser)
	cfg.Database.MySQLPassword = getEnv("MYSQL_PASSWORD", cfg.Database.MySQLPassword)
	cfg.Database.MySQLDB = getEnv("MYSQL_DB", cfg.Database.MySQLDB)
	cfg.Database.MySQLParams = getEnv("MYSQL_PARAMS", cfg.Database.MySQLParams)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)
	cfg.Redis.HistoryDirtyTTLSeconds = getEnvAsInt("REDIS_HISTORY_DIRTY_TTL_SECONDS", cfg.Redis.HistoryDirtyTTLSeconds)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.MessagePersistQueue = getEnv("RABBITMQ_MESSAGE_PERSIST_QUEUE", cfg.RabbitMQ.MessagePersistQueue)

	cfg.LLM.Provider = strings.ToLower(getEnv("LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.MaxContextMessage = getEnvAsInt("LLM_MAX_CONTEXT_MESSAGE", cfg.LLM.MaxContextMessage)
	cfg.LLM.TitleTimeoutMS = getEnvAsInt("LLM_TITLE_TIMEOUT_MS", cfg.LLM.TitleTimeoutMS)

	cfg.Agent.MaxSteps = getEnvAsInt("AGENT_MAX_STEPS", cfg.Agent.MaxSteps)
	cfg.Agent.RunTimeoutSeconds = getEnvAsInt("AGENT_RUN_TIMEOUT_SECONDS", cfg.Agent.RunTimeoutSeconds)
	cfg.Agent.RowLimit = getEnvAsInt("AGENT_ROW_LIMIT", cfg.Agent.RowLimit)

	cfg.Datasource.SQLiteRoot = getEnv("DATASOURCE_SQLITE_ROOT", cfg.Datasource.SQLiteRoot)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
