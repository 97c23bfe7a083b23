// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable once persisted.
package domain

import (
	"time"
)

// Message is the persisted record and the sole unit of delivery over the bus.
// Its JSON encoding is the outbound wire format.
type Message struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	SenderID   UserID    `json:"sender_id"`
	ReceiverID UserID    `json:"receiver_id"`
	Sender     Profile   `json:"sender"`
	Receiver   Profile   `json:"receiver"`
}

// PostMessageCommand is an accepted frame bound to its sender.
type PostMessageCommand struct {
	SenderID   UserID
	ReceiverID UserID
	Content    string
}
