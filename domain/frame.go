package domain

import (
	"bytes"
	"chat-relay/errors"
	"encoding/json"
	"strings"
)

// InboundFrame is what a client sends over its connection.
type InboundFrame struct {
	ReceiverID UserID
	Content    string
}

// ErrorFrame is written back to the sender when a frame is rejected.
type ErrorFrame struct {
	Error string `json:"error"`
}

type rawFrame struct {
	ReceiverID json.RawMessage `json:"receiver_id"`
	Content    json.RawMessage `json:"content"`
}

// ParseFrame decodes a text frame and checks it against the recipient declared
// when the connection was opened. Checks run in a fixed order: JSON shape,
// receiver, then content.
func ParseFrame(data []byte, expected UserID) (InboundFrame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return InboundFrame{}, errors.ErrInvalidJSON
	}
	var raw rawFrame
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return InboundFrame{}, errors.ErrInvalidJSON
	}

	var receiver int64
	if len(raw.ReceiverID) == 0 || json.Unmarshal(raw.ReceiverID, &receiver) != nil {
		return InboundFrame{}, errors.ErrInvalidReceiver
	}
	if UserID(receiver) != expected {
		return InboundFrame{}, errors.ErrInvalidReceiver
	}

	var content string
	if len(raw.Content) == 0 || json.Unmarshal(raw.Content, &content) != nil {
		return InboundFrame{}, errors.ErrContentRequired
	}
	// Stricter than storing an empty body: blank content is refused outright.
	if strings.TrimSpace(content) == "" {
		return InboundFrame{}, errors.ErrContentRequired
	}

	return InboundFrame{ReceiverID: UserID(receiver), Content: content}, nil
}

// NewErrorFrame encodes the client-facing text for err.
func NewErrorFrame(err error) []byte {
	b, _ := json.Marshal(ErrorFrame{Error: errors.ClientMessage(err)})
	return b
}
