// Package bot connects the desk to Telegram: outbound delivery, the update
// loop and the handling of each inbound update.
package bot

import (
	"context"
	"fmt"
	"strconv"

	"service-desk/backend/pkg/blob"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/pkg/resilience"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI used for delivery
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Gateway implements notify.Notifier on the Telegram Bot API
type Gateway struct {
	api     Sender
	blobs   blob.Store
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

func NewGateway(api Sender, blobs blob.Store, breaker *resilience.CircuitBreaker, log *logger.Logger) *Gateway {
	return &Gateway{api: api, blobs: blobs, breaker: breaker, log: log}
}

func (g *Gateway) SendText(ctx context.Context, externalID, text string) error {
	chatID, err := parseChatID(externalID)
	if err != nil {
		return err
	}
	return g.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (g *Gateway) SendImage(ctx context.Context, externalID, blobName string) error {
	chatID, err := parseChatID(externalID)
	if err != nil {
		return err
	}
	data, err := g.blobs.Get(ctx, blobName)
	if err != nil {
		return fmt.Errorf("failed to load image %s: %w", blobName, err)
	}
	return g.send(ctx, tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: blobName, Bytes: data}))
}

// send runs one API call through the breaker. The Bot API client takes no
// context, so the call is abandoned, not cancelled, when ctx expires.
func (g *Gateway) send(ctx context.Context, c tgbotapi.Chattable) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		done := make(chan error, 1)
		go func() {
			_, err := g.api.Send(c)
			done <- err
		}()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func parseChatID(externalID string) (int64, error) {
	chatID, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", externalID, err)
	}
	return chatID, nil
}
