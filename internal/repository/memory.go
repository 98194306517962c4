package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"healthcare-assistant/internal/domain"
)

// MemoryStore is an in-process conversation store for local/dev use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.ConversationTurn
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns an empty store with the default TTL.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]domain.ConversationTurn),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
}

func (s *MemoryStore) AppendTurn(_ context.Context, turn domain.ConversationTurn) error {
	if turn.SessionID == "" || turn.MessageID == "" {
		return errors.New("repository: AppendTurn: session id and message id are required")
	}
	if turn.Timestamp.IsZero() {
		return errors.New("repository: AppendTurn: timestamp is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions[turn.SessionID] {
		if existing.MessageID == turn.MessageID {
			return fmt.Errorf("repository: AppendTurn: turn %s/%s already exists", turn.SessionID, turn.MessageID)
		}
	}
	if turn.TTL == 0 {
		turn.TTL = s.now().Add(s.ttl).Unix()
	}
	turn.Timestamp = turn.Timestamp.UTC()
	s.sessions[turn.SessionID] = append(s.sessions[turn.SessionID], turn)
	return nil
}

// GetConversation returns a copy of the session turns ordered by timestamp.
func (s *MemoryStore) GetConversation(_ context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.ConversationTurn{}, s.sessions[sessionID]...)
	sortChronologically(out)
	return out, nil
}

func (s *MemoryStore) RecentSessions(_ context.Context, userID string, limit int) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SessionSummary, 0)
	for _, turns := range s.sessions {
		var latest *domain.ConversationTurn
		for i := range turns {
			t := &turns[i]
			if t.UserID != userID {
				continue
			}
			if latest == nil || t.Timestamp.After(latest.Timestamp) {
				latest = t
			}
		}
		if latest != nil {
			out = append(out, summaryOf(*latest))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
