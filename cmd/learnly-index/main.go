package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"learnly/internal/chunker"
	"learnly/internal/config"
	"learnly/internal/domain"
	"learnly/internal/embedding/hashing"
	"learnly/internal/embedding/openai"
	"learnly/internal/index"
	"learnly/internal/index/qdrant"
	"learnly/internal/indexer"
	"learnly/internal/summarizer"
)

func main() {
	_ = godotenv.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var cfgPath, dir, collection string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/learnly/config.yaml if not provided)")
	flag.StringVar(&dir, "dir", "", "Directory of files to index (overrides indexer.inbox_dir)")
	flag.StringVar(&collection, "collection", "", "Source collection tag for this batch (overrides indexer.collection)")
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
	if dir == "" {
		dir = cfg.Indexer.InboxDir
	}
	if collection == "" {
		collection = cfg.Indexer.Collection
	}

	ctx := context.Background()
	emb, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("embedder init failed")
	}
	idx, err := buildIndex(ctx, cfg, emb)
	if err != nil {
		log.Fatal().Err(err).Msg("index init failed")
	}

	ch, err := chunker.NewTokenChunker(cfg.Chunker.MaxTokens, cfg.Chunker.Overlap)
	if err != nil {
		log.Fatal().Err(err).Msg("chunker init failed")
	}

	ix := indexer.New(ch, emb, idx, summarizer.NewFrequencySummarizer(), collection, log)
	report, err := ix.IndexDirectory(ctx, dir)
	if err != nil {
		log.Fatal().Err(err).Msg("indexing failed")
	}
	for file, summary := range report.Summaries {
		fmt.Printf("%s: %s\n", file, summary)
	}
	fmt.Printf("indexed %d file(s), %d chunk(s); %d skipped, %d empty, %d failed\n",
		report.Indexed, report.Chunks, report.Skipped, report.Empty, report.Failed)
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
