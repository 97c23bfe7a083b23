package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

var _ contract.IMessageStore = (*PostgresStore)(nil)

// foreignKeyViolation is the SQLSTATE raised when sender or receiver does not exist.
const foreignKeyViolation = "23503"

// persistQuery inserts the message and projects both users in a single round trip.
const persistQuery = `WITH inserted AS (
	INSERT INTO chat_messages (content, sender_id, receiver_id, created_at)
	VALUES ($1, $2, $3, $4)
	RETURNING id, content, created_at, sender_id, receiver_id
)
SELECT i.id, i.content, i.created_at, i.sender_id, i.receiver_id,
	s.id, s.email, s.username, s.phone_number, s.created_at,
	r.id, r.email, r.username, r.phone_number, r.created_at
FROM inserted i
JOIN users s ON s.id = i.sender_id
JOIN users r ON r.id = i.receiver_id`

const userExistsQuery = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

// PostgresStore persists messages in the relational schema shared with the
// request/response API (tables users and chat_messages).
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// OpenPostgres opens a pool on dsn and checks the server answers.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *sql.DB, log *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log, now: time.Now}
}

func (s *PostgresStore) Persist(ctx context.Context, content string, senderID, receiverID domain.UserID) (domain.Message, error) {
	var (
		message       domain.Message
		senderPhone   sql.NullString
		receiverPhone sql.NullString
	)
	row := s.db.QueryRowContext(ctx, persistQuery,
		content, int64(senderID), int64(receiverID), s.now().UTC())
	err := row.Scan(
		&message.ID, &message.Content, &message.CreatedAt, &message.SenderID, &message.ReceiverID,
		&message.Sender.ID, &message.Sender.Email, &message.Sender.Username, &senderPhone, &message.Sender.CreatedAt,
		&message.Receiver.ID, &message.Receiver.Email, &message.Receiver.Username, &receiverPhone, &message.Receiver.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrUnknownUser, pqErr.Detail)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, fmt.Errorf("%w: sender %d or receiver %d", errors.ErrUnknownUser, senderID, receiverID)
		}
		return domain.Message{}, fmt.Errorf("insert chat message: %w", err)
	}

	message.Sender.PhoneNumber = nullable(senderPhone)
	message.Receiver.PhoneNumber = nullable(receiverPhone)
	s.log.Debug("Message persisted", "message_id", message.ID, "sender_id", senderID, "receiver_id", receiverID)
	return message, nil
}

func (s *PostgresStore) UserExists(ctx context.Context, userID domain.UserID) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, userExistsQuery, int64(userID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("user lookup: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
