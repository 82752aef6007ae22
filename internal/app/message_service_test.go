package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qwery/internal/apperr"
	"qwery/internal/cache"
	"qwery/internal/model"
	"qwery/internal/repository"
)

func (s *services) conversation(t *testing.T, userID string) *ConversationOutput {
	t.Helper()
	project := s.project(t, userID)
	conv, err := s.conversations.Create(context.Background(), CreateConversationInput{UserID: userID, ProjectID: project.ID, Title: "History"})
	require.NoError(t, err)
	return conv
}

func (s *services) fill(t *testing.T, userID, conversationID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := s.messages.Create(context.Background(), CreateMessageInput{
			UserID: userID, ConversationID: conversationID, Role: model.RoleUser, Content: fmt.Sprintf("m%d", i),
		})
		require.NoError(t, err)
	}
}

func contents(messages []*MessageOutput) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func TestListByConversationReturnsLatestMessages(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	conv := s.conversation(t, ada)
	s.fill(t, ada, conv.ID, 120)

	page, err := s.messages.ListByConversation(ctx, ada, conv.ID, 100)
	require.NoError(t, err)
	require.Len(t, page, 100)
	assert.Equal(t, "m21", page[0].Content)
	assert.Equal(t, "m120", page[99].Content)

	last, err := s.messages.ListByConversation(ctx, ada, conv.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m111", "m112", "m113", "m114", "m115", "m116", "m117", "m118", "m119", "m120"}, contents(last))

	all, err := s.messages.ListByConversation(ctx, ada, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 120)
	assert.Equal(t, "m1", all[0].Content)
}

func TestListByConversationServesFromHistoryCache(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	conv := s.conversation(t, ada)

	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	history := cache.NewHistoryCache(client, time.Minute, 2*time.Second)

	messages := repository.NewMessageRepository(s.db)
	svc := NewMessageService(MessageDeps{
		Organizations: repository.NewOrganizationRepository(s.db),
		Projects:      repository.NewProjectRepository(s.db),
		Conversations: repository.NewConversationRepository(s.db),
		Messages:      messages,
		Publisher:     NewDirectMessageWriter(messages),
		HistoryCache:  history,
		Logger:        zerolog.Nop(),
	})

	for _, content := range []string{"first", "second", "third"} {
		_, err := svc.Create(ctx, CreateMessageInput{UserID: ada, ConversationID: conv.ID, Content: content})
		require.NoError(t, err)
	}
	dirty, err := history.IsDirty(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, dirty)

	// A dirty conversation is read from the database and not cached.
	got, err := svc.ListByConversation(ctx, ada, conv.ID, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	_, hit, err := history.GetHistory(ctx, conv.ID)
	require.NoError(t, err)
	assert.False(t, hit)

	mr.FastForward(3 * time.Second)
	got, err = svc.ListByConversation(ctx, ada, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, contents(got))
	cached, hit, err := history.GetHistory(ctx, conv.ID)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Len(t, cached, 3)

	// Rows written behind the service stay invisible until the cache is dropped.
	sneaky := model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "unseen", CreatedAt: time.Now()}
	sneaky.AssignID()
	require.NoError(t, messages.Create(ctx, &sneaky))
	got, err = svc.ListByConversation(ctx, ada, conv.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "third"}, contents(got))

	_, err = svc.Create(ctx, CreateMessageInput{UserID: ada, ConversationID: conv.ID, Content: "fourth"})
	require.NoError(t, err)
	got, err = svc.ListByConversation(ctx, ada, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third", "unseen", "fourth"}, contents(got))
}

func TestMessagesHiddenFromOtherTenants(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	eve := s.register(t, "eve")
	conv := s.conversation(t, ada)
	s.fill(t, ada, conv.ID, 2)

	_, err := s.messages.ListByConversation(ctx, eve, conv.ID, 10)
	assert.True(t, apperr.Is(err, apperr.CodeConversationNotFound), "got %v", err)

	_, err = s.messages.Create(ctx, CreateMessageInput{UserID: eve, ConversationID: conv.ID, Content: "intrusion"})
	assert.True(t, apperr.Is(err, apperr.CodeConversationNotFound), "got %v", err)

	_, err = s.messages.SendMessage(ctx, SendMessageInput{UserID: eve, ConversationID: conv.ID, Content: "intrusion"})
	assert.True(t, apperr.Is(err, apperr.CodeConversationNotFound), "got %v", err)

	got, err := s.messages.ListByConversation(ctx, ada, conv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, contents(got))
}
