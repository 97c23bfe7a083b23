package repositories

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newBadgerStore(t *testing.T, limit int) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	store, err := NewBadgerStore(db, slog.Default(), limit)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
		_ = db.Close()
	})
	return store
}

func TestBadgerStore_Persist_With_Profiles(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t, 0)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return at }

	alice := domain.Profile{ID: 7, Email: "alice@example.com", Username: "alice", CreatedAt: at.Add(-time.Hour)}
	req.NoError(store.SaveUser(alice))

	// When alice writes to a user never saved locally
	message, err := store.Persist(context.Background(), "hello", 7, 42)

	// Then the message is numbered and enriched with what is known
	req.NoError(err)
	req.Equal(int64(1), message.ID)
	req.Equal("hello", message.Content)
	req.Equal(at, message.CreatedAt)
	req.Equal(alice, message.Sender)
	req.Equal(domain.Profile{ID: 42}, message.Receiver)

	// And ids keep growing
	second, err := store.Persist(context.Background(), "again", 7, 42)
	req.NoError(err)
	req.Equal(int64(2), second.ID)
}

func TestBadgerStore_Conversation_Both_Directions(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t, 0)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	exchange := []struct {
		from, to domain.UserID
		content  string
	}{
		{7, 42, "hello"},
		{42, 7, "hi alice"},
		{7, 42, "how are you?"},
	}
	for i, e := range exchange {
		store.now = func() time.Time { return at.Add(time.Duration(i) * time.Minute) }
		_, err := store.Persist(ctx, e.content, e.from, e.to)
		req.NoError(err)
	}
	// Given another conversation
	_, err := store.Persist(ctx, "unrelated", 7, 43)
	req.NoError(err)

	// Then the conversation is read in chronological order from either side
	for _, pair := range [][2]domain.UserID{{7, 42}, {42, 7}} {
		messages, err := store.Conversation(pair[0], pair[1])
		req.NoError(err)
		req.Len(messages, 3)
		req.Equal("hello", messages[0].Content)
		req.Equal("hi alice", messages[1].Content)
		req.Equal("how are you?", messages[2].Content)
	}
}

func TestBadgerStore_Conversation_Limit_Keeps_Latest(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t, 2)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, content := range []string{"one", "two", "three"} {
		store.now = func() time.Time { return at.Add(time.Duration(i) * time.Minute) }
		_, err := store.Persist(context.Background(), content, 7, 42)
		req.NoError(err)
	}

	messages, err := store.Conversation(7, 42)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("two", messages[0].Content)
	req.Equal("three", messages[1].Content)
}

func TestBadgerStore_UserExists(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t, 0)
	req.NoError(store.SaveUser(domain.Profile{ID: 7, Username: "alice"}))

	exists, err := store.UserExists(context.Background(), 7)
	req.NoError(err)
	req.True(exists)

	exists, err = store.UserExists(context.Background(), 8)
	req.NoError(err)
	req.False(exists)

	req.NoError(store.Ping(context.Background()))
}
