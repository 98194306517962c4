package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"healthcare-assistant/internal/domain"
)

func memTurn(sessionID, messageID, userID, text string, ts time.Time) domain.ConversationTurn {
	return domain.ConversationTurn{
		SessionID: sessionID,
		MessageID: messageID,
		UserID:    userID,
		Role:      domain.RoleAgent,
		Text:      text,
		Timestamp: ts,
	}
}

func TestMemoryStore_AppendAndGetConversation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AppendTurn(ctx, memTurn("s1", "m2", "u1", "second", baseTime.Add(time.Second))))
	require.NoError(t, s.AppendTurn(ctx, memTurn("s1", "m1", "u1", "first", baseTime)))

	turns, err := s.GetConversation(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	require.Equal(t, "first", turns[0].Text)
	require.Equal(t, "second", turns[1].Text)
	require.Greater(t, turns[0].TTL, int64(0))
}

func TestMemoryStore_DuplicateRejected(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendTurn(ctx, memTurn("s1", "m1", "u1", "first", baseTime)))
	require.ErrorContains(t, s.AppendTurn(ctx, memTurn("s1", "m1", "u1", "again", baseTime)), "already exists")
}

func TestMemoryStore_Validates(t *testing.T) {
	s := NewMemoryStore()
	require.Error(t, s.AppendTurn(context.Background(), memTurn("", "m1", "u1", "x", baseTime)))
	require.Error(t, s.AppendTurn(context.Background(), memTurn("s1", "m1", "u1", "x", time.Time{})))
}

func TestMemoryStore_GetConversationUnknownSession(t *testing.T) {
	turns, err := NewMemoryStore().GetConversation(context.Background(), "nope")
	require.NoError(t, err)
	require.NotNil(t, turns)
	require.Empty(t, turns)
}

func TestMemoryStore_RecentSessions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendTurn(ctx, memTurn("s1", "m1", "u1", "s1 only", baseTime)))
	require.NoError(t, s.AppendTurn(ctx, memTurn("s2", "m2", "u1", "s2 old", baseTime.Add(time.Second))))
	require.NoError(t, s.AppendTurn(ctx, memTurn("s2", "m3", "u1", "s2 new", baseTime.Add(3*time.Second))))
	require.NoError(t, s.AppendTurn(ctx, memTurn("s3", "m4", "u2", "other user", baseTime.Add(5*time.Second))))

	sessions, err := s.RecentSessions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "s2", sessions[0].SessionID)
	require.Equal(t, "s2 new", sessions[0].LastMessage)
	require.Equal(t, "s1", sessions[1].SessionID)

	sessions, err = s.RecentSessions(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	sessions, err = s.RecentSessions(ctx, "nobody", 5)
	require.NoError(t, err)
	require.NotNil(t, sessions)
	require.Empty(t, sessions)
}

func TestMemoryStore_GetConversationOrdersByTimestamp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendTurn(ctx, memTurn("s1", "zzz-user", "", "first", baseTime)))
	require.NoError(t, s.AppendTurn(ctx, memTurn("s1", "aaa-agent", "", "second", baseTime.Add(time.Second))))
	require.NoError(t, s.AppendTurn(ctx, memTurn("s1", "mmm-tie-b", "", "third-b", baseTime.Add(2*time.Second))))
	require.NoError(t, s.AppendTurn(ctx, memTurn("s1", "mmm-tie-a", "", "third-a", baseTime.Add(2*time.Second))))

	turns, err := s.GetConversation(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	require.Equal(t, "first", turns[0].Text)
	require.Equal(t, "second", turns[1].Text)
	require.Equal(t, "third-a", turns[2].Text)
	require.Equal(t, "third-b", turns[3].Text)
}

func TestMemoryStore_AnonymousTurnsAreNotListed(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.AppendTurn(ctx, memTurn("session-anonymous-1", "m1", "", "hi", baseTime)))

	sessions, err := s.RecentSessions(ctx, "anonymous", 10)
	require.NoError(t, err)
	require.Empty(t, sessions)
}
