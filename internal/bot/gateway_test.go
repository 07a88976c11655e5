package bot

import (
	"context"
	"errors"
	"testing"

	"service-desk/backend/pkg/blob"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/pkg/resilience"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func newTestGateway(t *testing.T, sender *fakeSender) (*Gateway, *blob.FSStore) {
	store, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	breaker := resilience.NewCircuitBreaker(resilience.DefaultConfig("telegram"), logger.Discard())
	return NewGateway(sender, store, breaker, logger.Discard()), store
}

func TestGatewaySendText(t *testing.T) {
	sender := &fakeSender{}
	g, _ := newTestGateway(t, sender)

	require.NoError(t, g.SendText(context.Background(), "12345", "hello"))
	require.Len(t, sender.sent, 1)

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(12345), msg.ChatID)
	assert.Equal(t, "hello", msg.Text)
}

func TestGatewaySendImageReadsBlob(t *testing.T) {
	sender := &fakeSender{}
	g, store := newTestGateway(t, sender)
	ctx := context.Background()

	name := blob.NewName(".jpg")
	require.NoError(t, store.Put(ctx, name, []byte{1, 2, 3}, "image/jpeg"))

	require.NoError(t, g.SendImage(ctx, "12345", name))
	require.Len(t, sender.sent, 1)

	photo, ok := sender.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, int64(12345), photo.ChatID)
	file, ok := photo.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, file.Bytes)
}

func TestGatewayErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("Forbidden: bot was blocked by the user")}
	g, _ := newTestGateway(t, sender)
	ctx := context.Background()

	assert.Error(t, g.SendText(ctx, "12345", "hi"))
	assert.Error(t, g.SendText(ctx, "not-a-chat", "hi"))
	assert.ErrorIs(t, g.SendImage(ctx, "12345", "missing.jpg"), blob.ErrNotFound)
}
