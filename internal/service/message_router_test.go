package service

import (
	"context"
	"sync"
	"testing"

	"service-desk/backend/internal/events"
	"service-desk/backend/internal/models"
	"service-desk/backend/internal/notify"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundTextOpensTicket(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "555")

	msg, created, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "hello"})
	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hello", *msg.Content)
	assert.Nil(t, msg.FileName)
	assert.Nil(t, msg.OperatorID)
	assert.Equal(t, "555", msg.Sender)

	active := env.activeTasks(t, user.ID)
	require.Len(t, active, 1)
	assert.Equal(t, models.TaskStatusOpen, active[0].Status)
	assert.Equal(t, active[0].ID, msg.TaskID)

	require.Len(t, env.notifier.texts, 1)
	assert.Equal(t, delivery{"555", notify.TextTicketOpened}, env.notifier.texts[0])
	assert.Equal(t, []string{events.TypeTaskOpened, events.TypeMessageCreated}, env.publisher.types())
}

func TestTwoInboundTextsShareTicket(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "556")

	m1, created1, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "one"})
	require.NoError(t, err)
	m2, created2, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "two"})
	require.NoError(t, err)

	assert.True(t, created1)
	assert.False(t, created2)
	assert.Equal(t, m1.TaskID, m2.TaskID)

	messages, err := env.tasks.ListMessages(ctx, m1.TaskID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", *messages[0].Content)
	assert.Equal(t, "two", *messages[1].Content)
	assert.Len(t, env.notifier.texts, 1, "only the first message confirms a new ticket")
}

func TestInboundAfterCloseOpensNewTicket(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "557")

	first, _, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "help"})
	require.NoError(t, err)

	closed, err := env.tasks.SetStatus(ctx, first.TaskID, models.TaskStatusClosed)
	require.NoError(t, err)
	require.NotNil(t, closed.CloseDate)

	second, created, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "again"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.TaskID, second.TaskID)

	old, err := env.tasks.Get(ctx, first.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusClosed, old.Status)
	assert.Len(t, old.Messages, 1)
}

func TestInboundImageIsStored(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "558")
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0}

	msg, _, err := env.router.RecordInboundMessage(ctx, user, Inbound{Image: img})
	require.NoError(t, err)
	assert.Nil(t, msg.Content)
	require.NotNil(t, msg.FileName)
	assert.NotContains(t, *msg.FileName, "558")

	stored, err := env.blobs.Get(ctx, *msg.FileName)
	require.NoError(t, err)
	assert.Equal(t, img, stored)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.InboundMessages.WithLabelValues("image")))
}

func TestInboundRejectsEmptyAndMixedInput(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "559")

	_, _, err := env.router.RecordInboundMessage(ctx, user, Inbound{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = env.router.RecordInboundMessage(ctx, user, Inbound{Text: "x", Image: []byte{1}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, env.activeTasks(t, user.ID))
	assert.Empty(t, env.publisher.types())
}

func TestConcurrentInboundKeepsOneActiveTicket(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "560")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "ping"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	active := env.activeTasks(t, user.ID)
	require.Len(t, active, 1)

	messages, err := env.tasks.ListMessages(ctx, active[0].ID)
	require.NoError(t, err)
	assert.Len(t, messages, n)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.TicketsOpened))
}

func TestOperatorReplyTextOnly(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "600")
	env.createManager(t, 7)
	inbound, _, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "broken"})
	require.NoError(t, err)
	env.notifier.texts = nil

	msg, err := env.router.RecordOperatorReply(ctx, inbound.TaskID, 7, Reply{Content: "fixed", Image: []byte{}})
	require.NoError(t, err)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "fixed", *msg.Content)
	assert.Nil(t, msg.FileName)
	require.NotNil(t, msg.OperatorID)
	assert.Equal(t, uint(7), *msg.OperatorID)
	assert.Equal(t, models.SenderManager, msg.Sender)

	assert.Equal(t, []delivery{{"600", "fixed"}}, env.notifier.texts)
	assert.Empty(t, env.notifier.images)
}

func TestOperatorReplyImageDeliveredDespiteTextFailure(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "601")
	env.createManager(t, 7)
	inbound, _, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "screenshot?"})
	require.NoError(t, err)

	env.notifier.textErr = errDeliveryDown
	msg, err := env.router.RecordOperatorReply(ctx, inbound.TaskID, 7, Reply{Content: "see attached", Image: []byte{1, 2, 3}})
	require.NoError(t, err)
	require.NotNil(t, msg.FileName)

	require.Len(t, env.notifier.images, 1)
	assert.Equal(t, *msg.FileName, env.notifier.images[0].Payload)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.DeliveryFailures.WithLabelValues("text")))

	messages, err := env.tasks.ListMessages(ctx, inbound.TaskID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestOperatorReplyErrors(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "602")
	env.createManager(t, 7)
	inbound, _, err := env.router.RecordInboundMessage(ctx, user, Inbound{Text: "hi"})
	require.NoError(t, err)

	_, err = env.router.RecordOperatorReply(ctx, 9999, 7, Reply{Content: "x"})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = env.router.RecordOperatorReply(ctx, inbound.TaskID, 8, Reply{Content: "x"})
	assert.ErrorIs(t, err, ErrManagerNotFound)

	_, err = env.router.RecordOperatorReply(ctx, inbound.TaskID, 7, Reply{Content: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	messages, err := env.tasks.ListMessages(ctx, inbound.TaskID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}
