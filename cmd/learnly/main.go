package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"learnly/internal/config"
	"learnly/internal/domain"
	"learnly/internal/embedding/hashing"
	"learnly/internal/embedding/openai"
	"learnly/internal/fusion"
	"learnly/internal/history"
	"learnly/internal/index"
	"learnly/internal/index/qdrant"
	"learnly/internal/llm"
	"learnly/internal/retriever"
	"learnly/internal/search"
	"learnly/internal/service"
	"learnly/internal/tui"
)

func main() {
	_ = godotenv.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/learnly/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	// Assemble components
	emb, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("embedder init failed")
	}
	idx, err := buildIndex(ctx, cfg, emb)
	if err != nil {
		log.Fatal().Err(err).Msg("index init failed")
	}
	completer, err := buildCompleter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("llm init failed")
	}

	var planner *fusion.Planner
	if cfg.Fusion.PlanQueries {
		planner = fusion.NewPlanner(completer, log)
	}
	fuser := fusion.New(fusion.Config{
		Retriever: retriever.New(emb, idx, cfg.Retrieval.Floor),
		Web: search.NewDuckDuckGo(search.DuckDuckGoConfig{
			UserAgent: cfg.Fusion.UserAgent,
		}),
		Wiki: search.NewWikipedia(search.WikipediaConfig{
			UserAgent: cfg.Fusion.UserAgent,
		}),
		Planner:           planner,
		TopK:              cfg.Retrieval.TopK,
		MaxCharsPerSource: cfg.Fusion.MaxCharsPerSource,
		Logger:            log,
	})

	store, err := history.NewStore(cfg.History.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("history init failed")
	}

	assistant, err := service.New(service.Config{
		Fuser:       fuser,
		Completer:   completer,
		History:     store,
		Threshold:   cfg.Fusion.Threshold,
		RecentTurns: cfg.History.RecentTurns,
		Logger:      log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("assistant init failed")
	}

	m := tui.New(assistant)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal().Err(err).Msg("tui failed")
	}
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Embedder.Dimension)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
			Dimension: cfg.Embedder.Dimension,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildIndex(ctx context.Context, cfg *config.AppConfig, emb domain.Embedder) (domain.VectorIndex, error) {
	switch cfg.Index.Type {
	case "flat", "":
		return index.Open(cfg.Index.Dir, emb.Name(), emb.Dimension())
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.Open(ctx, qdrant.Config{
			Addr:       cfg.Index.Qdrant.Addr,
			Collection: cfg.Index.Qdrant.Collection,
		}, emb.Dimension())
	default:
		return nil, fmt.Errorf("unknown index: %s", cfg.Index.Type)
	}
}

func buildCompleter(ctx context.Context, cfg *config.AppConfig) (domain.Completer, error) {
	switch cfg.LLM.Type {
	case "openai":
		if cfg.LLM.OpenAI == nil {
			return nil, fmt.Errorf("openai llm config missing")
		}
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			APIKeyEnv:   cfg.LLM.OpenAI.APIKeyEnv,
			Model:       cfg.LLM.OpenAI.Model,
			Temperature: cfg.LLM.OpenAI.Temperature,
			Timeout:     time.Duration(cfg.LLM.OpenAI.TimeoutSecs) * time.Second,
		})
	case "gemini":
		model := ""
		if cfg.LLM.Gemini != nil {
			model = cfg.LLM.Gemini.Model
		}
		return llm.NewGeminiClient(ctx, model)
	case "":
		return nil, fmt.Errorf("llm.type is required for the assistant (openai or gemini)")
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.LLM.Type)
	}
}
