package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// Protocol errors, reported to the sender, the connection stays open
	ErrInvalidJSON     = fmt.Errorf("invalid json frame")
	ErrInvalidReceiver = fmt.Errorf("receiver does not match the connection recipient")
	ErrContentRequired = fmt.Errorf("content is required")
	ErrContentTooLong  = fmt.Errorf("content is too long")

	// Auth errors, fatal to the connection attempt
	ErrMissingToken      = fmt.Errorf("missing token")
	ErrInvalidCredential = fmt.Errorf("invalid credential")

	ErrPersistence = fmt.Errorf("message persistence failed")
	ErrDelivery    = fmt.Errorf("message publication failed")

	ErrPeerClosed       = fmt.Errorf("peer is closed")
	ErrPeerBackpressure = fmt.Errorf("peer buffer is full")
	ErrUnknownUser      = fmt.Errorf("unknown user")
	ErrUnknownDriver    = fmt.Errorf("unknown driver")
)

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// IsProtocol reports whether err should be answered with an error frame.
func IsProtocol(err error) bool {
	return Is(err, ErrInvalidJSON) ||
		Is(err, ErrInvalidReceiver) ||
		Is(err, ErrContentRequired) ||
		Is(err, ErrContentTooLong)
}

// IsAuth reports whether err must close the connection with the credential close code.
func IsAuth(err error) bool {
	return Is(err, ErrMissingToken) || Is(err, ErrInvalidCredential)
}

// ClientMessage returns the text sent to clients inside an error frame.
func ClientMessage(err error) string {
	switch {
	case Is(err, ErrInvalidJSON):
		return "Invalid JSON"
	case Is(err, ErrInvalidReceiver):
		return "Invalid receiver"
	case Is(err, ErrContentRequired):
		return "Content required"
	case Is(err, ErrContentTooLong):
		return "Content too long"
	case Is(err, ErrPersistence):
		return "Message could not be saved"
	default:
		return "Internal error"
	}
}
