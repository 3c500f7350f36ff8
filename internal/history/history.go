// Package history persists conversations as one JSON file per session.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Turn is a single utterance in a session.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
}

// Session is a persisted conversation.
type Session struct {
	ID      string    `json:"session_id"`
	Created time.Time `json:"created_at"`
	Updated time.Time `json:"last_updated"`
	Turns   []Turn    `json:"turns"`
}

// Store manages session files under a single directory.
type Store struct {
	dir string
}

// NewStore creates the history directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// NewSession creates and persists a fresh session.
func (s *Store) NewSession() (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:      fmt.Sprintf("session_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8]),
		Created: now,
		Updated: now,
	}
	if err := s.save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Open loads an existing session by id.
func (s *Store) Open(id string) (*Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session %s unreadable: %w", id, err)
	}
	return &sess, nil
}

// Append adds a turn to the session and persists it.
func (s *Store) Append(sess *Session, role, content string) error {
	now := time.Now().UTC()
	sess.Turns = append(sess.Turns, Turn{Role: role, Content: content, Created: now})
	sess.Updated = now
	return s.save(sess)
}

// List returns the ids of all persisted sessions.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".json")])
	}
	return ids, nil
}

// Recent returns up to n of the latest turns, oldest first, for prompt
// context.
func (sess *Session) Recent(n int) []Turn {
	if n <= 0 || len(sess.Turns) == 0 {
		return nil
	}
	if n > len(sess.Turns) {
		n = len(sess.Turns)
	}
	return sess.Turns[len(sess.Turns)-n:]
}

func (s *Store) save(sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path(sess.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(sess.ID))
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
