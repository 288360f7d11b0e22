package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/localmind-ai/localmind-backend/internal/platform/envutil"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

type Config struct {
	Port    string     `yaml:"port"`
	LogMode string     `yaml:"log_mode"`
	Auth    AuthConfig `yaml:"auth"`
	DB      DBConfig   `yaml:"db"`
	LLM     LLMConfig  `yaml:"llm"`
	RAG     RAGConfig  `yaml:"rag"`
	Redis   RedisConfig `yaml:"redis"`
}

type AuthConfig struct {
	JWTSecretKey   string        `yaml:"jwt_secret_key"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type LLMConfig struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	StreamTimeout time.Duration `yaml:"stream_timeout"`
}

type RAGConfig struct {
	TopK int `yaml:"top_k"`
}

type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// Load reads an optional YAML file named by CONFIG_PATH, then lets
// environment variables override every field. Defaults suit a single-node
// self-hosted install: sqlite on disk, no redis, llama.cpp on localhost.
func Load(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:    "8080",
		LogMode: "development",
		Auth: AuthConfig{
			JWTSecretKey:   "defaultsecret",
			AccessTokenTTL: time.Hour,
		},
		DB: DBConfig{
			Driver:  "sqlite",
			Path:    "localmind.db",
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			Name:    "localmind",
			SSLMode: "disable",
		},
		LLM: LLMConfig{
			BaseURL: "http://localhost:8081",
			Model:   "mistral-7b-instruct-v0.2",
		},
		RAG: RAGConfig{
			TopK: 3,
		},
	}

	if path := envutil.String("CONFIG_PATH", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
		log.Info("Loaded config file", "path", path)
	}

	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)

	cfg.Auth.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.Auth.JWTSecretKey)
	if ttl := envutil.Int("ACCESS_TOKEN_TTL", 0); ttl > 0 {
		cfg.Auth.AccessTokenTTL = time.Duration(ttl) * time.Second
	}

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.Path = envutil.String("DB_PATH", cfg.DB.Path)
	cfg.DB.Host = envutil.String("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envutil.String("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envutil.String("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Password = envutil.String("POSTGRES_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = envutil.String("POSTGRES_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.DB.SSLMode)

	cfg.LLM.BaseURL = envutil.String("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = envutil.String("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = envutil.String("LLM_MODEL", cfg.LLM.Model)
	if t := envutil.Int("LLM_STREAM_TIMEOUT", 0); t > 0 {
		cfg.LLM.StreamTimeout = time.Duration(t) * time.Second
	}

	if k := envutil.Int("RAG_TOP_K", 0); k > 0 {
		cfg.RAG.TopK = k
	}

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	return cfg, nil
}
