// Package indexer ingests source files into the vector index: hash
// deduplication, text extraction, chunking, embedding and lockstep append,
// one file to completion at a time.
package indexer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"learnly/internal/domain"
	"learnly/internal/extract"
)

// Report summarizes one ingestion batch.
type Report struct {
	Indexed int
	Skipped int
	Empty   int
	Failed  int
	Chunks  int
	// Summaries maps indexed file names to a short machine summary.
	Summaries map[string]string
}

// Indexer runs batch ingestion over a directory of source files.
type Indexer struct {
	chunker    domain.Chunker
	embedder   domain.Embedder
	index      domain.VectorIndex
	summarizer domain.Summarizer
	collection string
	log        zerolog.Logger
}

// New creates an indexer. summarizer may be nil to skip per-file summaries.
func New(chunker domain.Chunker, embedder domain.Embedder, index domain.VectorIndex, summarizer domain.Summarizer, collection string, log zerolog.Logger) *Indexer {
	return &Indexer{
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		summarizer: summarizer,
		collection: collection,
		log:        log,
	}
}

// IndexDirectory ingests every supported file in dir. Files are processed
// sequentially and to completion, so a failure on one file never corrupts
// another's work. Per-file errors are logged and skipped. The index is
// persisted once after the batch when at least one file was indexed, and
// source files are deleted only after that persist succeeds: a crash before
// persist leaves the sources in place for an idempotent re-run. Files that
// fail extraction stay behind for manual retry; files with no extractable
// text are deleted, since retrying them cannot help.
func (ix *Indexer) IndexDirectory(ctx context.Context, dir string) (Report, error) {
	report := Report{Summaries: map[string]string{}}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read inbox %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if extract.Supported(p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	var indexed []string
	var remove []string
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch outcome := ix.indexFile(ctx, path, &report); outcome {
		case outcomeIndexed:
			indexed = append(indexed, path)
		case outcomeEmpty:
			remove = append(remove, path)
		}
	}

	if len(indexed) > 0 {
		if err := ix.index.Persist(); err != nil {
			return report, fmt.Errorf("persist index: %w", err)
		}
		// Persist before delete: losing a source file before its chunks
		// are durable would be unrecoverable, the reverse only risks a
		// duplicate-skip on the next run.
		remove = append(remove, indexed...)
	}
	for _, path := range remove {
		if err := os.Remove(path); err != nil {
			ix.log.Warn().Err(err).Str("file", path).Msg("could not remove source file")
		}
	}
	ix.log.Info().
		Int("indexed", report.Indexed).
		Int("skipped", report.Skipped).
		Int("empty", report.Empty).
		Int("failed", report.Failed).
		Int("chunks", report.Chunks).
		Msg("batch complete")
	return report, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeSkipped
	outcomeEmpty
	outcomeIndexed
)

func (ix *Indexer) indexFile(ctx context.Context, path string, report *Report) outcome {
	name := filepath.Base(path)
	log := ix.log.With().Str("file", name).Logger()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Msg("unreadable, keeping for retry")
		report.Failed++
		return outcomeFailed
	}
	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])

	seen, err := ix.index.HasFile(ctx, hash)
	if err != nil {
		log.Error().Err(err).Msg("dedup check failed, keeping for retry")
		report.Failed++
		return outcomeFailed
	}
	if seen {
		log.Info().Msg("already indexed, skipping")
		report.Skipped++
		return outcomeSkipped
	}

	text, err := extract.Text(path)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			log.Warn().Msg("no extractable text, dropping file")
			report.Empty++
			return outcomeEmpty
		}
		log.Error().Err(err).Msg("extraction failed, keeping for retry")
		report.Failed++
		return outcomeFailed
	}

	chunks := ix.chunker.Chunk(text)
	if len(chunks) == 0 {
		log.Warn().Msg("nothing to index, dropping file")
		report.Empty++
		return outcomeEmpty
	}

	vectors, err := ix.embedder.Embed(ctx, chunks)
	if err != nil {
		// No partial adds: the file is retried whole or not at all.
		log.Error().Err(err).Msg("embedding failed, keeping for retry")
		report.Failed++
		return outcomeFailed
	}

	meta := make([]domain.ChunkMeta, len(chunks))
	for i, chunk := range chunks {
		meta[i] = domain.ChunkMeta{
			ID:         uuid.NewString(),
			File:       name,
			ChunkID:    i,
			FileHash:   hash,
			Text:       chunk,
			Collection: ix.collection,
		}
	}
	if err := ix.index.Add(ctx, vectors, meta); err != nil {
		log.Error().Err(err).Msg("index append failed, keeping for retry")
		report.Failed++
		return outcomeFailed
	}

	if ix.summarizer != nil {
		if summary, err := ix.summarizer.Summarize(text, 3); err == nil && summary != "" {
			report.Summaries[name] = summary
		}
	}
	report.Indexed++
	report.Chunks += len(chunks)
	log.Info().Int("chunks", len(chunks)).Msg("indexed")
	return outcomeIndexed
}
