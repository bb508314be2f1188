package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MQConfig struct {
	URL string `yaml:"url"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// AIConfig is the global default AI backend. Per-organization settings stored
// in the database take precedence; this is the fallback resolution.
type AIConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

type SyncConfig struct {
	TickSeconds int `yaml:"tick_seconds"`
	BatchSize   int `yaml:"batch_size"`
}

// CredentialsConfig controls how stored mailbox secrets are unwrapped.
// Mode "base64" is the plain at-rest encoding; "sealed" adds AES-GCM with a
// passphrase-derived key.
type CredentialsConfig struct {
	Mode       string `yaml:"mode"`
	Passphrase string `yaml:"passphrase"`
}

type OAuthConfig struct {
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
}

type Config struct {
	DB          DBConfig          `yaml:"db"`
	Redis       RedisConfig       `yaml:"redis"`
	MQ          MQConfig          `yaml:"mq"`
	JWT         JWTConfig         `yaml:"jwt"`
	Server      ServerConfig      `yaml:"server"`
	AI          AIConfig          `yaml:"ai"`
	Sync        SyncConfig        `yaml:"sync"`
	Credentials CredentialsConfig `yaml:"credentials"`
	OAuth       OAuthConfig       `yaml:"oauth"`
}

func Load() *Config {
	f, err := os.Open("config.yaml")
	if err != nil {
		log.Fatalf("failed to open config.yaml: %v", err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config.yaml: %v", err)
	}

	// 环境变量覆盖（生产环境使用）
	overrideFromEnv(&cfg)

	if cfg.Sync.TickSeconds <= 0 {
		cfg.Sync.TickSeconds = 60
	}
	if cfg.Sync.BatchSize <= 0 {
		cfg.Sync.BatchSize = 50
	}
	if cfg.Credentials.Mode == "" {
		cfg.Credentials.Mode = "base64"
	}

	return &cfg
}

func overrideFromEnv(cfg *Config) {
	// DB配置
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DB.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DB.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DB.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DB.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}

	// Redis配置
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	// MQ配置
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}

	// JWT配置
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWT.Secret = secret
	}

	// Server配置
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
	}

	// AI配置（全局默认）
	if key := os.Getenv("AI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if model := os.Getenv("AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}

	// 凭证解封配置
	if mode := os.Getenv("CREDENTIALS_MODE"); mode != "" {
		cfg.Credentials.Mode = mode
	}
	if pass := os.Getenv("CREDENTIALS_PASSPHRASE"); pass != "" {
		cfg.Credentials.Passphrase = pass
	}

	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		cfg.OAuth.GoogleClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		cfg.OAuth.GoogleClientSecret = secret
	}
}
