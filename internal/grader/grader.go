// Package grader scores free-text answers with an LLM. Questions are
// independent, so grading fans out over a bounded worker pool; the only
// shared resource is the completer, which must be safe for concurrent use.
package grader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"learnly/internal/domain"
	"learnly/internal/llmjson"
)

const gradePrompt = `Question: %s
Expected answer: %s
Student answer: %s

Grade the student answer against the expected answer on content, not
wording. Return ONLY valid JSON:
{"correct": true|false, "score": 0.0-1.0, "feedback": "one short sentence"}`

// Item is one question/answer pair to grade.
type Item struct {
	Question string
	Expected string
	Answer   string
}

// Grade is the outcome for one item. Graded is false when the LLM call or
// its output parsing failed; the rest of the batch is unaffected.
type Grade struct {
	Correct  bool    `json:"correct"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
	Graded   bool    `json:"-"`
}

// Grader grades batches of short answers concurrently.
type Grader struct {
	completer domain.Completer
	workers   int
	log       zerolog.Logger
}

// New creates a grader with the given pool size.
func New(completer domain.Completer, workers int, log zerolog.Logger) *Grader {
	if workers <= 0 {
		workers = 8
	}
	return &Grader{completer: completer, workers: workers, log: log}
}

// GradeAll grades every item, preserving input order. A single failed call
// yields an ungraded entry, never a batch failure; only context
// cancellation aborts the batch.
func (g *Grader) GradeAll(ctx context.Context, items []Item) ([]Grade, error) {
	grades := make([]Grade, len(items))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, item := range items {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			grade, err := g.gradeOne(egctx, item)
			if err != nil {
				g.log.Warn().Err(err).Str("question", item.Question).Msg("grading failed")
				return nil
			}
			grades[i] = grade
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return grades, nil
}

func (g *Grader) gradeOne(ctx context.Context, item Item) (Grade, error) {
	raw, err := g.completer.Complete(ctx, fmt.Sprintf(gradePrompt, item.Question, item.Expected, item.Answer))
	if err != nil {
		return Grade{}, err
	}
	var grade Grade
	if err := llmjson.Unmarshal(raw, &grade); err != nil {
		return Grade{}, fmt.Errorf("unparseable grade: %w", err)
	}
	if grade.Score < 0 || grade.Score > 1 {
		return Grade{}, fmt.Errorf("grade score %g out of range", grade.Score)
	}
	grade.Graded = true
	return grade, nil
}
