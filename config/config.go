// Package config loads application configuration from a yaml file with
// environment overrides for deployment-specific values.
package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig configures the asynq broker and status cache.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// OllamaConfig configures the model backend.
type OllamaConfig struct {
	BaseURL        string `yaml:"base_url"`
	ChatModel      string `yaml:"chat_model"`
	VisionModel    string `yaml:"vision_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ChunkingConfig configures document splitting.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// FigureConfig configures figure extraction.
type FigureConfig struct {
	RenderDPI    int    `yaml:"render_dpi"`
	PdftoppmPath string `yaml:"pdftoppm_path"`
}

// ReportConfig configures report assembly.
type ReportConfig struct {
	PandocPath string `yaml:"pandoc_path"`
}

// WorkerConfig configures background processing.
type WorkerConfig struct {
	Concurrency int            `yaml:"concurrency"`
	Queues      map[string]int `yaml:"queues"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Figure    FigureConfig    `yaml:"figure"`
	Report    ReportConfig    `yaml:"report"`
	Worker    WorkerConfig    `yaml:"worker"`
	DataDir   string          `yaml:"data_dir"`
	DBPath    string          `yaml:"db_path"`
	LogLevel  string          `yaml:"log_level"`
}

// Load reads the config from path. A missing file yields defaults.
// Environment variables (optionally from .env) override the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// .env is optional; plain environment variables still apply.
	_ = godotenv.Load()
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Redis:  RedisConfig{Addr: "localhost:6379", DB: 0},
		Ollama: OllamaConfig{
			BaseURL:        "http://localhost:11434",
			ChatModel:      "llama3.1",
			VisionModel:    "gemma3:27b",
			EmbeddingModel: "nomic-embed-text",
			TimeoutSecs:    300,
		},
		Retrieval: RetrievalConfig{TopK: 5},
		Chunking:  ChunkingConfig{ChunkSize: 1000, Overlap: 100},
		Figure:    FigureConfig{RenderDPI: 300, PdftoppmPath: "pdftoppm"},
		Report:    ReportConfig{PandocPath: "pandoc"},
		Worker: WorkerConfig{
			Concurrency: 5,
			Queues:      map[string]int{"critical": 6, "default": 3, "low": 1},
		},
		DataDir:  "data/projects",
		DBPath:   "data/researcher.db",
		LogLevel: "info",
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_CHAT_MODEL"); v != "" {
		cfg.Ollama.ChatModel = v
	}
	if v := os.Getenv("OLLAMA_VISION_MODEL"); v != "" {
		cfg.Ollama.VisionModel = v
	}
	if v := os.Getenv("OLLAMA_EMBEDDING_MODEL"); v != "" {
		cfg.Ollama.EmbeddingModel = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Chunking.ChunkSize <= 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.Overlap < 0 {
		cfg.Chunking.Overlap = 0
	}
	if cfg.Figure.RenderDPI <= 0 {
		cfg.Figure.RenderDPI = 300
	}
	if cfg.Worker.Concurrency <= 0 {
		cfg.Worker.Concurrency = 5
	}
	if len(cfg.Worker.Queues) == 0 {
		cfg.Worker.Queues = map[string]int{"critical": 6, "default": 3, "low": 1}
	}
}
