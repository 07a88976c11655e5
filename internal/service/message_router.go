package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"service-desk/backend/internal/events"
	"service-desk/backend/internal/models"
	"service-desk/backend/internal/notify"
	"service-desk/backend/internal/repository"
	"service-desk/backend/pkg/blob"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Inbound is one message from an end user. Exactly one field is set.
type Inbound struct {
	Text  string
	Image []byte
}

// Reply is an operator answer. At least one field is set.
type Reply struct {
	Content string
	Image   []byte
}

// MessageRouterDeps groups the collaborators of MessageRouter
type MessageRouterDeps struct {
	Store     repository.Store
	Tasks     *TaskService
	Managers  *ManagerService
	Blobs     blob.Store
	Notifier  notify.Notifier
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Logger    *logger.Logger
}

// MessageRouter attaches messages to tickets and relays operator replies
type MessageRouter struct {
	store     repository.Store
	tasks     *TaskService
	managers  *ManagerService
	blobs     blob.Store
	notifier  notify.Notifier
	publisher events.Publisher
	metrics   *observability.Metrics
	log       *logger.Logger
	tracer    trace.Tracer
}

func NewMessageRouter(deps MessageRouterDeps) *MessageRouter {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &MessageRouter{
		store:     deps.Store,
		tasks:     deps.Tasks,
		managers:  deps.Managers,
		blobs:     deps.Blobs,
		notifier:  notifier,
		publisher: publisher,
		metrics:   deps.Metrics,
		log:       deps.Logger,
		tracer:    observability.Tracer(),
	}
}

// RecordInboundMessage stores a user message on the user's active ticket,
// opening one when needed. ticketCreated reports whether this call opened it.
func (r *MessageRouter) RecordInboundMessage(ctx context.Context, user *models.User, in Inbound) (*models.Message, bool, error) {
	ctx, span := r.tracer.Start(ctx, "MessageRouter.RecordInboundMessage",
		trace.WithAttributes(attribute.Int64("user.id", int64(user.ID))))
	defer span.End()

	hasText := strings.TrimSpace(in.Text) != ""
	hasImage := len(in.Image) > 0
	if hasText == hasImage {
		return nil, false, fmt.Errorf("%w: exactly one of text or image is required", ErrInvalidInput)
	}

	msg := &models.Message{Sender: user.ExternalID}
	kind := "text"
	if hasText {
		text := in.Text
		msg.Content = &text
	} else {
		name, err := r.storeImage(ctx, in.Image)
		if err != nil {
			return nil, false, err
		}
		msg.FileName = &name
		kind = "image"
	}

	task, created, err := r.tasks.withActiveTask(ctx, user, func(tx repository.Store, task *models.Task) error {
		msg.ID = 0
		msg.TaskID = task.ID
		return tx.Messages().Create(ctx, msg)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to record inbound message: %w", err)
	}

	r.metrics.InboundMessages.WithLabelValues(kind).Inc()
	log := r.log.WithChat(user.ExternalID).WithTask(task.ID)
	log.Debug("Inbound message recorded", "message_id", msg.ID, "kind", kind)

	if created {
		if err := r.notifier.SendText(ctx, user.ExternalID, notify.TextTicketOpened); err != nil {
			r.metrics.DeliveryFailures.WithLabelValues("text").Inc()
			log.Warn("Failed to confirm ticket to user", "error", err.Error())
		}
	}
	r.publisher.Publish(events.Event{Type: events.TypeMessageCreated, Content: msg})

	return msg, created, nil
}

// RecordOperatorReply stores an operator answer and relays it to the ticket
// owner. Delivery failures are logged and counted, never returned.
func (r *MessageRouter) RecordOperatorReply(ctx context.Context, taskID, operatorID uint, reply Reply) (*models.Message, error) {
	ctx, span := r.tracer.Start(ctx, "MessageRouter.RecordOperatorReply",
		trace.WithAttributes(
			attribute.Int64("task.id", int64(taskID)),
			attribute.Int64("operator.id", int64(operatorID)),
		))
	defer span.End()

	task, err := r.store.Tasks().GetByID(ctx, taskID, false)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if _, err := r.managers.Get(ctx, operatorID); err != nil {
		return nil, err
	}

	hasText := strings.TrimSpace(reply.Content) != ""
	hasImage := len(reply.Image) > 0
	if !hasText && !hasImage {
		return nil, fmt.Errorf("%w: content or image is required", ErrInvalidInput)
	}

	owner, err := r.store.Users().GetByID(ctx, task.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket owner: %w", err)
	}

	msg := &models.Message{
		TaskID:     task.ID,
		Sender:     models.SenderManager,
		OperatorID: &operatorID,
	}
	if hasText {
		content := reply.Content
		msg.Content = &content
	}
	if hasImage {
		name, err := r.storeImage(ctx, reply.Image)
		if err != nil {
			return nil, err
		}
		msg.FileName = &name
	}

	if err := r.store.Messages().Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record reply: %w", err)
	}

	log := r.log.WithChat(owner.ExternalID).WithTask(task.ID)
	log.Info("Operator reply recorded", "message_id", msg.ID, "operator_id", operatorID)
	r.publisher.Publish(events.Event{Type: events.TypeMessageCreated, Content: msg})

	if msg.Content != nil {
		r.deliver(log, "text", func() error {
			return r.notifier.SendText(ctx, owner.ExternalID, *msg.Content)
		})
	}
	if msg.FileName != nil {
		r.deliver(log, "image", func() error {
			return r.notifier.SendImage(ctx, owner.ExternalID, *msg.FileName)
		})
	}

	return msg, nil
}

func (r *MessageRouter) deliver(log *logger.Logger, kind string, send func() error) {
	if err := send(); err != nil {
		r.metrics.DeliveryFailures.WithLabelValues(kind).Inc()
		log.Warn("Failed to deliver reply", "kind", kind, "error", err.Error())
		return
	}
	r.metrics.OutboundMessages.WithLabelValues(kind).Inc()
}

func (r *MessageRouter) storeImage(ctx context.Context, data []byte) (string, error) {
	name := blob.NewName(".jpg")
	if err := r.blobs.Put(ctx, name, data, blob.ContentType(name)); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return name, nil
}
