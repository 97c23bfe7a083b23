package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

var _ contract.IMessageStore = (*BadgerStore)(nil)

const (
	messagePrefix = "msg:"
	userPrefix    = "user:"
	sequenceKey   = "seq:chat_messages"
)

// BadgerStore is an embedded store for single-node deployments and local runs.
// Messages are keyed per conversation, see conversationKey.
type BadgerStore struct {
	db            *badger.DB
	seq           *badger.Sequence
	log           *slog.Logger
	limitMessages int
	now           func() time.Time
}

func NewBadgerStore(db *badger.DB, log *slog.Logger, limitMessages int) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), 100)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, log: log, limitMessages: limitMessages, now: time.Now}, nil
}

// conversationKey is "msg:{low}:{high}:{timestamp_padded}:{id_padded}".
// Both directions of a conversation share a prefix and the 19-digit padding keeps
// lexicographical order chronological.
func conversationKey(a, b domain.UserID, at time.Time, id int64) []byte {
	return []byte(fmt.Sprintf("%s%019d:%019d", conversationPrefix(a, b), at.UnixNano(), id))
}

func conversationPrefix(a, b domain.UserID) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s%d:%d:", messagePrefix, a, b)
}

func userKey(userID domain.UserID) []byte {
	return []byte(userPrefix + userID.String())
}

func (s *BadgerStore) Persist(ctx context.Context, content string, senderID, receiverID domain.UserID) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	next, err := s.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}
	message := domain.Message{
		ID:         int64(next) + 1,
		Content:    content,
		CreatedAt:  s.now().UTC(),
		SenderID:   senderID,
		ReceiverID: receiverID,
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		sender, err := s.profile(txn, senderID)
		if err != nil {
			return err
		}
		receiver, err := s.profile(txn, receiverID)
		if err != nil {
			return err
		}
		message.Sender, message.Receiver = sender, receiver
		bytes, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set(conversationKey(senderID, receiverID, message.CreatedAt, message.ID), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// profile falls back to a bare identity when the user was never saved locally.
func (s *BadgerStore) profile(txn *badger.Txn, userID domain.UserID) (domain.Profile, error) {
	item, err := txn.Get(userKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Profile{ID: userID}, nil
	}
	if err != nil {
		return domain.Profile{}, err
	}
	var profile domain.Profile
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &profile)
	})
	return profile, err
}

// SaveUser stores or replaces the public profile of a user.
func (s *BadgerStore) SaveUser(profile domain.Profile) error {
	bytes, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(profile.ID), bytes)
	})
}

func (s *BadgerStore) UserExists(_ context.Context, userID domain.UserID) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(userID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Conversation returns the latest messages exchanged between a and b, oldest first.
// It stops collecting messages once the configured limit is reached.
func (s *BadgerStore) Conversation(a, b domain.UserID) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefix(a, b))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key then walk backwards
		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if s.limitMessages > 0 && len(messages) == s.limitMessages {
				s.log.Debug(fmt.Sprintf("Maximum of %d message reached", s.limitMessages))
				break
			}
			var message domain.Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lo.Reverse(messages), nil
}

func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("badger is closed")
	}
	return nil
}

// Close releases the unused part of the id sequence, the DB stays open.
func (s *BadgerStore) Close() error {
	return s.seq.Release()
}
