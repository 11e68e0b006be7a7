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
	App       AppConfig       `toml:"app"`
	HTTP      HTTPConfig      `toml:"http"`
	Inference InferenceConfig `toml:"inference"`
	Trainer   TrainerConfig   `toml:"trainer"`
	Documents DocumentsConfig `toml:"documents"`
	Auth      AuthConfig      `toml:"auth"`
	Redis     RedisConfig     `toml:"redis"`
	RabbitMQ  RabbitMQConfig  `toml:"rabbitmq"`
	MySQL     MySQLConfig     `toml:"mysql"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
	LogMode string `toml:"log_mode"`
}

type HTTPConfig struct {
	AllowedOrigins           []string `toml:"allowed_origins"`
	MaxJSONBodyBytes         int64    `toml:"max_json_body_bytes"`
	RateLimitRPS             float64  `toml:"rate_limit_rps"`
	RateLimitBurst           int      `toml:"rate_limit_burst"`
	ReadHeaderTimeoutSeconds int      `toml:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds   int      `toml:"shutdown_timeout_seconds"`
}

// InferenceConfig points at the conversational service's REST webhook.
type InferenceConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TrainerConfig points at the retraining service's streaming job endpoint.
type TrainerConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	SingleFlight   bool   `toml:"single_flight"`
	LockKey        string `toml:"lock_key"`
}

type DocumentsConfig struct {
	Dir            string `toml:"dir"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
	FormField      string `toml:"form_field"`
}

type AuthConfig struct {
	JWTSecret         string `toml:"jwt_secret"`
	JWTExpireMinute   int    `toml:"jwt_expire_minute"`
	AdminPasswordHash string `toml:"admin_password_hash"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type RabbitMQConfig struct {
	URL           string `toml:"url"`
	RetrainQueue  string `toml:"retrain_queue"`
	PersistEvents bool   `toml:"persist_events"`
}

type MySQLConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
}

func Load() (*Config, error) {
	_ = godotenv.Load(getEnv("DOTENV_FILE", ".env"))

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component could run with. Bad upstream URLs are
// not checked here; they only degrade the component that uses them.
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port %d is out of range", c.App.Port)
	}
	if c.Inference.TimeoutSeconds <= 0 {
		return fmt.Errorf("inference.timeout_seconds must be positive")
	}
	if c.Trainer.TimeoutSeconds <= 0 {
		return fmt.Errorf("trainer.timeout_seconds must be positive")
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return fmt.Errorf("http rate limit settings must not be negative")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.Inference.TimeoutSeconds) * time.Second
}

func (c *Config) RetrainTimeout() time.Duration {
	return time.Duration(c.Trainer.TimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.HTTP.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.HTTP.ReadHeaderTimeoutSeconds) * time.Second
}

func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.Auth.JWTExpireMinute) * time.Minute
}

// RedisEnabled, RabbitMQEnabled and MySQLEnabled report whether the optional
// integrations are configured at all.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

func (c *Config) RabbitMQEnabled() bool {
	return strings.TrimSpace(c.RabbitMQ.URL) != ""
}

func (c *Config) MySQLEnabled() bool {
	return strings.TrimSpace(c.MySQL.Host) != ""
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.DB,
		c.MySQL.Params,
	)
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "chatbot-gateway",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    5001,
			GinMode: "debug",
			LogMode: "dev",
		},
		HTTP: HTTPConfig{
			MaxJSONBodyBytes:         1 << 20,
			RateLimitRPS:             20,
			RateLimitBurst:           40,
			ReadHeaderTimeoutSeconds: 5,
			ShutdownTimeoutSeconds:   10,
		},
		Inference: InferenceConfig{
			URL:            "http://localhost:5005/webhooks/rest/webhook",
			TimeoutSeconds: 60,
		},
		Trainer: TrainerConfig{
			URL:            "http://localhost:8000/retrain",
			TimeoutSeconds: 30 * 60,
			SingleFlight:   true,
			LockKey:        "gateway:retrain:lock",
		},
		Documents: DocumentsConfig{
			Dir:            "ai-service/documents/pdfs",
			MaxUploadBytes: 50 << 20,
			FormField:      "pdf",
		},
		Auth: AuthConfig{
			JWTExpireMinute: 120,
		},
		Redis: RedisConfig{
			DB: 0,
		},
		RabbitMQ: RabbitMQConfig{
			RetrainQueue:  "gateway.retrain.runs",
			PersistEvents: true,
		},
		MySQL: MySQLConfig{
			Port:   3306,
			User:   "root",
			DB:     "chatbot_gateway",
			Params: "parseTime=true&loc=Local&charset=utf8mb4",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.LogMode = getEnv("LOG_MODE", cfg.App.LogMode)

	cfg.HTTP.AllowedOrigins = getEnvAsList("ALLOWED_ORIGINS", cfg.HTTP.AllowedOrigins)
	cfg.HTTP.MaxJSONBodyBytes = getEnvAsInt64("MAX_JSON_BODY_BYTES", cfg.HTTP.MaxJSONBodyBytes)
	cfg.HTTP.RateLimitRPS = getEnvAsFloat("RATE_LIMIT_RPS", cfg.HTTP.RateLimitRPS)
	cfg.HTTP.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", cfg.HTTP.RateLimitBurst)
	cfg.HTTP.ShutdownTimeoutSeconds = getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", cfg.HTTP.ShutdownTimeoutSeconds)

	cfg.Inference.URL = getEnv("RASA_URL", cfg.Inference.URL)
	cfg.Inference.TimeoutSeconds = getEnvAsInt("CHAT_TIMEOUT_SECONDS", cfg.Inference.TimeoutSeconds)

	cfg.Trainer.URL = getEnv("PYTHON_ADMIN_URL", cfg.Trainer.URL)
	cfg.Trainer.TimeoutSeconds = getEnvAsInt("RETRAIN_TIMEOUT_SECONDS", cfg.Trainer.TimeoutSeconds)
	cfg.Trainer.SingleFlight = getEnvAsBool("RETRAIN_SINGLE_FLIGHT", cfg.Trainer.SingleFlight)
	cfg.Trainer.LockKey = getEnv("RETRAIN_LOCK_KEY", cfg.Trainer.LockKey)

	cfg.Documents.Dir = getEnv("DOCUMENTS_DIR", cfg.Documents.Dir)
	cfg.Documents.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", cfg.Documents.MaxUploadBytes)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)
	cfg.Auth.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", cfg.Auth.AdminPasswordHash)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.RetrainQueue = getEnv("RABBITMQ_RETRAIN_QUEUE", cfg.RabbitMQ.RetrainQueue)
	cfg.RabbitMQ.PersistEvents = getEnvAsBool("RABBITMQ_PERSIST_EVENTS", cfg.RabbitMQ.PersistEvents)

	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.DB = getEnv("MYSQL_DB", cfg.MySQL.DB)
	cfg.MySQL.Params = getEnv("MYSQL_PARAMS", cfg.MySQL.Params)
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

func getEnvAsInt64(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
