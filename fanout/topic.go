// Package fanout carries delivery-ready messages from the process that accepted
// them to every process holding a live connection of the recipient.
// It is a best-effort delivery fabric: subscribers that are not live miss messages.
package fanout

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
)

const topicPrefix = "user:"

// Topic returns the channel name for one recipient.
func Topic(userID domain.UserID) string {
	return topicPrefix + userID.String()
}

func encode(message domain.Message) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encode message %d: %w", message.ID, err)
	}
	return payload, nil
}

func decode(payload []byte) (domain.Message, error) {
	var message domain.Message
	if err := json.Unmarshal(payload, &message); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}
