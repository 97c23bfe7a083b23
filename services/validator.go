package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type postMessageRequest struct {
	SenderID   int64  `validate:"required,gt=0"`
	ReceiverID int64  `validate:"required,gt=0"`
	Content    string `validate:"required"`
}

// ValidatePostMessage checks an accepted frame before it reaches the store.
// maxContentLength counts runes, zero disables the limit.
func ValidatePostMessage(cmd domain.PostMessageCommand, maxContentLength int) error {
	request := postMessageRequest{
		SenderID:   int64(cmd.SenderID),
		ReceiverID: int64(cmd.ReceiverID),
		Content:    cmd.Content,
	}
	if err := validate.Struct(request); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldErr := range validationErrors {
				switch fieldErr.Field() {
				case "Content":
					return errors.ErrContentRequired
				case "ReceiverID":
					return errors.ErrInvalidReceiver
				}
			}
		}
		return err
	}

	if maxContentLength > 0 {
		if err := validate.Var(cmd.Content, fmt.Sprintf("max=%d", maxContentLength)); err != nil {
			return errors.ErrContentTooLong
		}
	}
	return nil
}
