// Package notify delivers operator output to end users on the chat platform.
package notify

import "context"

// Notifier sends messages to the chat identified by externalID
type Notifier interface {
	SendText(ctx context.Context, externalID, text string) error
	// SendImage delivers a blob previously written to the blob store.
	SendImage(ctx context.Context, externalID, blobName string) error
}

// Nop accepts and discards every delivery
type Nop struct{}

func (Nop) SendText(context.Context, string, string) error  { return nil }
func (Nop) SendImage(context.Context, string, string) error { return nil }

// Fixed user-facing texts sent by the bot
const (
	TextTicketOpened      = "Your request has been registered. An operator will reply here soon."
	TextRegistered        = "Welcome! You are registered. Send a message or a photo to contact support."
	TextAlreadyRegistered = "You are already registered. Send a message or a photo to contact support."
	TextPleaseStart       = "Please send /start first."
	TextUnsupported       = "Please send text or an image."
	TextTemporaryFailure  = "Something went wrong, please try again later."
)
