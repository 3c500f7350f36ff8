package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnly/internal/domain"
	"learnly/internal/fusion"
	"learnly/internal/history"
)

type fixedSearcher struct{ hit *domain.SearchHit }

func (s fixedSearcher) Search(context.Context, string) (*domain.SearchHit, error) {
	if s.hit == nil {
		return nil, errors.New("unavailable")
	}
	return s.hit, nil
}

type recordingCompleter struct {
	prompts []string
	reply   string
	err     error
}

func (c *recordingCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.reply, c.err
}

func newTestAssistant(t *testing.T, completer Completer, store *history.Store) *Assistant {
	t.Helper()
	fuser := fusion.New(fusion.Config{
		Web:  fixedSearcher{hit: &domain.SearchHit{Title: "Web", Content: "searched fact"}},
		Wiki: fixedSearcher{hit: &domain.SearchHit{Title: "Wiki", Content: "encyclopedia fact"}},
	})
	a, err := New(Config{
		Fuser:       fuser,
		Completer:   completer,
		History:     store,
		Threshold:   0.8,
		RecentTurns: 4,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return a
}

func TestAssistantAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("context flows into the prompt", func(t *testing.T) {
		c := &recordingCompleter{reply: "an answer"}
		a := newTestAssistant(t, c, nil)

		ans, err := a.Ask(ctx, "what is gravity?")
		require.NoError(t, err)
		assert.Equal(t, "an answer", ans.Text)
		require.NotNil(t, ans.Context)

		require.Len(t, c.prompts, 1)
		assert.Contains(t, c.prompts[0], "searched fact")
		assert.Contains(t, c.prompts[0], "encyclopedia fact")
		assert.Contains(t, c.prompts[0], "Question: what is gravity?")
	})

	t.Run("turns are persisted", func(t *testing.T) {
		store, err := history.NewStore(t.TempDir())
		require.NoError(t, err)
		a := newTestAssistant(t, &recordingCompleter{reply: "cell division"}, store)
		require.NotEmpty(t, a.SessionID())

		_, err = a.Ask(ctx, "what is mitosis?")
		require.NoError(t, err)

		sess, err := store.Open(a.SessionID())
		require.NoError(t, err)
		require.Len(t, sess.Turns, 2)
		assert.Equal(t, "user", sess.Turns[0].Role)
		assert.Equal(t, "what is mitosis?", sess.Turns[0].Content)
		assert.Equal(t, "assistant", sess.Turns[1].Role)
		assert.Equal(t, "cell division", sess.Turns[1].Content)
	})

	t.Run("recent history enters the next prompt", func(t *testing.T) {
		store, err := history.NewStore(t.TempDir())
		require.NoError(t, err)
		c := &recordingCompleter{reply: "ok"}
		a := newTestAssistant(t, c, store)

		_, err = a.Ask(ctx, "first question")
		require.NoError(t, err)
		_, err = a.Ask(ctx, "second question")
		require.NoError(t, err)

		require.Len(t, c.prompts, 2)
		assert.NotContains(t, c.prompts[0], "Conversation so far")
		assert.Contains(t, c.prompts[1], "Conversation so far")
		assert.Contains(t, c.prompts[1], "user: first question")
	})

	t.Run("completion failure is an error", func(t *testing.T) {
		a := newTestAssistant(t, &recordingCompleter{err: errors.New("llm down")}, nil)
		_, err := a.Ask(ctx, "anything")
		require.Error(t, err)
	})

	t.Run("no history store is fine", func(t *testing.T) {
		a := newTestAssistant(t, &recordingCompleter{reply: "ok"}, nil)
		assert.Empty(t, a.SessionID())
		_, err := a.Ask(ctx, "q")
		require.NoError(t, err)
	})
}
