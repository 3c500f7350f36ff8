package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"learnly/internal/fusion"
	"learnly/internal/history"
)

// Answer is the outcome of one assistant query.
type Answer struct {
	Text    string
	Context *fusion.Result
}

// Assistant answers study questions: it fuses local course material with
// live search, hands the bounded context to the completer and records the
// exchange in the session history.
type Assistant struct {
	fuser     *fusion.Fuser
	completer Completer
	store     *history.Store
	session   *history.Session
	threshold float64
	recent    int
	log       zerolog.Logger
}

// Completer is the generation collaborator consumed by the assistant.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures an Assistant.
type Config struct {
	Fuser     *fusion.Fuser
	Completer Completer
	History   *history.Store
	// Threshold is this caller's confidence gate for including retrieval.
	Threshold float64
	// RecentTurns bounds how much session history enters the prompt.
	RecentTurns int
	Logger      zerolog.Logger
}

// New creates an assistant with a fresh session.
func New(cfg Config) (*Assistant, error) {
	var sess *history.Session
	if cfg.History != nil {
		var err error
		sess, err = cfg.History.NewSession()
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
	recent := cfg.RecentTurns
	if recent <= 0 {
		recent = 6
	}
	return &Assistant{
		fuser:     cfg.Fuser,
		completer: cfg.Completer,
		store:     cfg.History,
		session:   sess,
		threshold: cfg.Threshold,
		recent:    recent,
		log:       cfg.Logger,
	}, nil
}

// SessionID returns the current session id, or empty without history.
func (a *Assistant) SessionID() string {
	if a.session == nil {
		return ""
	}
	return a.session.ID
}

// Ask answers a single question. Search failures degrade to a thinner
// context; only a failed completion is an error.
func (a *Assistant) Ask(ctx context.Context, query string) (*Answer, error) {
	fused, err := a.fuser.Fuse(ctx, query, a.threshold)
	if err != nil {
		return nil, err
	}
	answer, err := a.completer.Complete(ctx, a.buildPrompt(query, fused))
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	if a.store != nil && a.session != nil {
		if err := a.store.Append(a.session, "user", query); err != nil {
			a.log.Warn().Err(err).Msg("could not record user turn")
		}
		if err := a.store.Append(a.session, "assistant", answer); err != nil {
			a.log.Warn().Err(err).Msg("could not record assistant turn")
		}
	}
	return &Answer{Text: answer, Context: fused}, nil
}

func (a *Assistant) buildPrompt(query string, fused *fusion.Result) string {
	var b strings.Builder
	b.WriteString("You are a study assistant. Answer using the reference material below when it is relevant; say so when it is not.\n\n")
	if ctx := fused.Render(); ctx != "" {
		b.WriteString("Reference material:\n")
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	if a.session != nil {
		if turns := a.session.Recent(a.recent); len(turns) > 0 {
			b.WriteString("Conversation so far:\n")
			for _, t := range turns {
				fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
