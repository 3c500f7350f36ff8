package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible
// embeddings endpoint (also covers Ollama-style local servers).
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	Dimension int                   `yaml:"dimension"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures the token-window chunker.
type ChunkerConfig struct {
	MaxTokens int `yaml:"max_tokens"`
	Overlap   int `yaml:"overlap"`
}

// QdrantConfig contains connection details for a Qdrant vector index.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Collection string `yaml:"collection"`
}

// IndexConfig selects and configures the vector index implementation.
type IndexConfig struct {
	Type   string        `yaml:"type"`
	Dir    string        `yaml:"dir"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	TopK  int     `yaml:"top_k"`
	Floor float64 `yaml:"floor"`
}

// FusionConfig configures the confidence gate and context budgets.
type FusionConfig struct {
	Threshold         float64 `yaml:"threshold"`
	MaxCharsPerSource int     `yaml:"max_chars_per_source"`
	UserAgent         string  `yaml:"user_agent"`
	PlanQueries       bool    `yaml:"plan_queries"`
}

// OpenAILLMConfig holds configuration for an OpenAI/Groq-compatible chat
// completions endpoint.
type OpenAILLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// GeminiLLMConfig holds configuration for the Gemini completer.
type GeminiLLMConfig struct {
	Model string `yaml:"model"`
}

// LLMConfig selects and configures the generative completer.
type LLMConfig struct {
	Type   string           `yaml:"type"`
	OpenAI *OpenAILLMConfig `yaml:"openai,omitempty"`
	Gemini *GeminiLLMConfig `yaml:"gemini,omitempty"`
}

// IndexerConfig configures batch ingestion.
type IndexerConfig struct {
	InboxDir   string `yaml:"inbox_dir"`
	Collection string `yaml:"collection"`
}

// HistoryConfig configures session history persistence.
type HistoryConfig struct {
	Dir         string `yaml:"dir"`
	RecentTurns int    `yaml:"recent_turns"`
}

// GraderConfig configures concurrent answer grading.
type GraderConfig struct {
	Workers int `yaml:"workers"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Fusion    FusionConfig    `yaml:"fusion"`
	LLM       LLMConfig       `yaml:"llm"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	History   HistoryConfig   `yaml:"history"`
	Grader    GraderConfig    `yaml:"grader"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/learnly/config.yaml.
// If neither exists, it writes defaults to ~/.config/learnly/config.yaml and
// returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations that would break pipeline invariants.
func (cfg *AppConfig) Validate() error {
	if cfg.Chunker.MaxTokens <= 0 {
		return fmt.Errorf("chunker.max_tokens must be positive, got %d", cfg.Chunker.MaxTokens)
	}
	if cfg.Chunker.Overlap < 0 {
		return fmt.Errorf("chunker.overlap must not be negative, got %d", cfg.Chunker.Overlap)
	}
	if cfg.Chunker.Overlap >= cfg.Chunker.MaxTokens {
		// The chunk window would never advance.
		return fmt.Errorf("chunker.overlap (%d) must be less than chunker.max_tokens (%d)",
			cfg.Chunker.Overlap, cfg.Chunker.MaxTokens)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.Floor < 0 || cfg.Retrieval.Floor > 1 {
		return fmt.Errorf("retrieval.floor must be in [0,1], got %g", cfg.Retrieval.Floor)
	}
	if cfg.Fusion.Threshold < 0 || cfg.Fusion.Threshold > 1 {
		return fmt.Errorf("fusion.threshold must be in [0,1], got %g", cfg.Fusion.Threshold)
	}
	if cfg.Embedder.Dimension <= 0 {
		return fmt.Errorf("embedder.dimension must be positive, got %d", cfg.Embedder.Dimension)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "learnly", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:  EmbedderConfig{Type: "hashing", Dimension: 384},
		Chunker:   ChunkerConfig{MaxTokens: 300, Overlap: 100},
		Index:     IndexConfig{Type: "flat", Dir: filepath.Join("data", "index")},
		Retrieval: RetrievalConfig{TopK: 5, Floor: 0.3},
		Fusion:    FusionConfig{Threshold: 0.8, MaxCharsPerSource: 1500},
		Indexer:   IndexerConfig{InboxDir: filepath.Join("data", "inbox"), Collection: "study"},
		History:   HistoryConfig{Dir: filepath.Join("data", "history"), RecentTurns: 6},
		Grader:    GraderConfig{Workers: 8},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.Chunker.MaxTokens == 0 {
		cfg.Chunker.MaxTokens = 300
	}
	if cfg.Chunker.Overlap == 0 && cfg.Chunker.MaxTokens == 300 {
		cfg.Chunker.Overlap = 100
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = filepath.Join("data", "index")
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Fusion.MaxCharsPerSource == 0 {
		cfg.Fusion.MaxCharsPerSource = 1500
	}
	if cfg.Fusion.UserAgent == "" {
		cfg.Fusion.UserAgent = "learnly/1.0"
	}
	if cfg.Indexer.Collection == "" {
		cfg.Indexer.Collection = "study"
	}
	if cfg.History.Dir == "" {
		cfg.History.Dir = filepath.Join("data", "history")
	}
	if cfg.History.RecentTurns == 0 {
		cfg.History.RecentTurns = 6
	}
	if cfg.Grader.Workers == 0 {
		cfg.Grader.Workers = 8
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.LLM.Type == "openai" && cfg.LLM.OpenAI != nil {
		if cfg.LLM.OpenAI.BaseURL == "" {
			cfg.LLM.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.LLM.OpenAI.APIKeyEnv == "" {
			cfg.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.LLM.OpenAI.TimeoutSecs == 0 {
			cfg.LLM.OpenAI.TimeoutSecs = 60
		}
	}
}
