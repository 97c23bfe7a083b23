package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var persistColumns = []string{
	"id", "content", "created_at", "sender_id", "receiver_id",
	"id", "email", "username", "phone_number", "created_at",
	"id", "email", "username", "phone_number", "created_at",
}

func newPostgresStore(t *testing.T, at time.Time) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewPostgresStore(db, logs.GetLoggerFromLevel(slog.LevelDebug))
	store.now = func() time.Time { return at }
	return store, mock
}

func TestPostgresStore_Persist(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store, mock := newPostgresStore(t, at)
	phone := "+33600000000"

	// Given both users exist
	mock.ExpectQuery(regexp.QuoteMeta(persistQuery)).
		WithArgs("hello", int64(7), int64(42), at).
		WillReturnRows(sqlmock.NewRows(persistColumns).AddRow(
			int64(1), "hello", at, int64(7), int64(42),
			int64(7), "alice@example.com", "alice", nil, at.Add(-time.Hour),
			int64(42), "bob@example.com", "bob", phone, at.Add(-2*time.Hour),
		))

	// When a message is persisted
	message, err := store.Persist(context.Background(), "hello", 7, 42)

	// Then it comes back enriched with both profiles
	req.NoError(err)
	req.Equal(domain.Message{
		ID:         1,
		Content:    "hello",
		CreatedAt:  at,
		SenderID:   7,
		ReceiverID: 42,
		Sender: domain.Profile{
			ID: 7, Email: "alice@example.com", Username: "alice", CreatedAt: at.Add(-time.Hour),
		},
		Receiver: domain.Profile{
			ID: 42, Email: "bob@example.com", Username: "bob", PhoneNumber: &phone, CreatedAt: at.Add(-2 * time.Hour),
		},
	}, message)
	req.NoError(mock.ExpectationsWereMet())
}

func TestPostgresStore_Persist_Unknown_Receiver(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store, mock := newPostgresStore(t, at)

	// Given the receiver does not exist
	mock.ExpectQuery(regexp.QuoteMeta(persistQuery)).
		WithArgs("hello", int64(7), int64(404), at).
		WillReturnError(&pq.Error{Code: foreignKeyViolation, Detail: "Key (receiver_id)=(404) is not present"})

	_, err := store.Persist(context.Background(), "hello", 7, 404)

	req.ErrorIs(err, errors.ErrUnknownUser)
	req.NoError(mock.ExpectationsWereMet())
}

func TestPostgresStore_Persist_No_Row(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store, mock := newPostgresStore(t, at)

	mock.ExpectQuery(regexp.QuoteMeta(persistQuery)).
		WillReturnRows(sqlmock.NewRows(persistColumns))

	_, err := store.Persist(context.Background(), "hello", 7, 42)

	req.ErrorIs(err, errors.ErrUnknownUser)
}

func TestPostgresStore_Persist_Database_Down(t *testing.T) {
	req := require.New(t)
	store, mock := newPostgresStore(t, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(persistQuery)).
		WillReturnError(fmt.Errorf("connection refused"))

	_, err := store.Persist(context.Background(), "hello", 7, 42)

	req.Error(err)
	req.NotErrorIs(err, errors.ErrUnknownUser)
}

func TestPostgresStore_UserExists(t *testing.T) {
	req := require.New(t)
	store, mock := newPostgresStore(t, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(userExistsQuery)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(userExistsQuery)).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := store.UserExists(context.Background(), 7)
	req.NoError(err)
	req.True(exists)

	exists, err = store.UserExists(context.Background(), 8)
	req.NoError(err)
	req.False(exists)
	req.NoError(mock.ExpectationsWereMet())
}
