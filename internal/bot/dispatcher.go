package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/notify"
	"service-desk/backend/internal/service"
	"service-desk/backend/pkg/dedup"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/shared/observability"
)

// UserRegistry registers and resolves end users
type UserRegistry interface {
	RegisterUser(ctx context.Context, in service.RegisterUserInput) (*models.User, bool, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// InboundRecorder attaches user messages to tickets
type InboundRecorder interface {
	RecordInboundMessage(ctx context.Context, user *models.User, in service.Inbound) (*models.Message, bool, error)
}

// FileDownloader fetches a file sent to the bot
type FileDownloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}

// DispatcherDeps groups the collaborators of Dispatcher
type DispatcherDeps struct {
	Users    UserRegistry
	Router   InboundRecorder
	Notifier notify.Notifier
	Files    FileDownloader
	Dedup    dedup.Store
	Metrics  *observability.Metrics
	Logger   *logger.Logger
}

// Dispatcher turns chat updates into desk operations
type Dispatcher struct {
	users    UserRegistry
	router   InboundRecorder
	notifier notify.Notifier
	files    FileDownloader
	dedup    dedup.Store
	metrics  *observability.Metrics
	log      *logger.Logger
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	return &Dispatcher{
		users:    deps.Users,
		router:   deps.Router,
		notifier: deps.Notifier,
		files:    deps.Files,
		dedup:    deps.Dedup,
		metrics:  deps.Metrics,
		log:      deps.Logger,
	}
}

// Handle processes one update. Errors are already reported to the user.
func (d *Dispatcher) Handle(ctx context.Context, upd Update) error {
	log := d.log.WithChat(upd.ExternalID).With("update_id", upd.ID)

	if seen, err := d.alreadySeen(ctx, upd); err != nil {
		log.Warn("Dedup lookup failed, processing anyway", "error", err.Error())
	} else if seen {
		d.metrics.DuplicateUpdates.Inc()
		log.Debug("Skipping duplicate update")
		return nil
	}

	if upd.Command == "start" {
		return d.handleStart(ctx, log, upd)
	}

	user, err := d.users.GetByExternalID(ctx, upd.ExternalID)
	if errors.Is(err, service.ErrUserNotFound) {
		d.reply(ctx, log, upd.ExternalID, notify.TextPleaseStart)
		return nil
	}
	if err != nil {
		d.reply(ctx, log, upd.ExternalID, notify.TextTemporaryFailure)
		return err
	}

	switch {
	case upd.PhotoFileID != "":
		return d.handlePhoto(ctx, log, user, upd)
	case strings.TrimSpace(upd.Text) != "":
		return d.record(ctx, log, user, service.Inbound{Text: upd.Text})
	case upd.Command != "":
		return d.record(ctx, log, user, service.Inbound{Text: "/" + upd.Command})
	default:
		d.reply(ctx, log, upd.ExternalID, notify.TextUnsupported)
		return nil
	}
}

func (d *Dispatcher) alreadySeen(ctx context.Context, upd Update) (bool, error) {
	if d.dedup == nil || upd.ID == 0 {
		return false, nil
	}
	first, err := d.dedup.FirstSeen(ctx, fmt.Sprintf("update:%d", upd.ID))
	if err != nil {
		return false, err
	}
	return !first, nil
}

func (d *Dispatcher) handleStart(ctx context.Context, log *logger.Logger, upd Update) error {
	_, created, err := d.users.RegisterUser(ctx, service.RegisterUserInput{
		ExternalID: upd.ExternalID,
		FirstName:  &upd.FirstName,
		LastName:   &upd.LastName,
	})
	if err != nil {
		d.reply(ctx, log, upd.ExternalID, notify.TextTemporaryFailure)
		return fmt.Errorf("failed to register user: %w", err)
	}

	if created {
		log.Info("User registered")
		d.reply(ctx, log, upd.ExternalID, notify.TextRegistered)
	} else {
		d.reply(ctx, log, upd.ExternalID, notify.TextAlreadyRegistered)
	}
	return nil
}

func (d *Dispatcher) handlePhoto(ctx context.Context, log *logger.Logger, user *models.User, upd Update) error {
	data, err := d.files.Download(ctx, upd.PhotoFileID)
	if err != nil {
		d.reply(ctx, log, upd.ExternalID, notify.TextTemporaryFailure)
		return fmt.Errorf("failed to download photo: %w", err)
	}
	if err := d.record(ctx, log, user, service.Inbound{Image: data}); err != nil {
		return err
	}
	if strings.TrimSpace(upd.Caption) != "" {
		return d.record(ctx, log, user, service.Inbound{Text: upd.Caption})
	}
	return nil
}

func (d *Dispatcher) record(ctx context.Context, log *logger.Logger, user *models.User, in service.Inbound) error {
	_, _, err := d.router.RecordInboundMessage(ctx, user, in)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrInvalidInput):
		d.reply(ctx, log, user.ExternalID, notify.TextUnsupported)
		return nil
	default:
		d.reply(ctx, log, user.ExternalID, notify.TextTemporaryFailure)
		return err
	}
}

func (d *Dispatcher) reply(ctx context.Context, log *logger.Logger, externalID, text string) {
	if err := d.notifier.SendText(ctx, externalID, text); err != nil {
		d.metrics.DeliveryFailures.WithLabelValues("text").Inc()
		log.Warn("Failed to reply to user", "error", err.Error())
	}
}
