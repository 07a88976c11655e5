package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"service-desk/backend/internal/events"
	"service-desk/backend/internal/models"
	"service-desk/backend/internal/repository"
	"service-desk/backend/pkg/lock"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TransitionPolicy decides which status changes operators may make
type TransitionPolicy int

const (
	// TransitionPermissive allows any status change, as long as the owner
	// keeps at most one active ticket.
	TransitionPermissive TransitionPolicy = iota
	// TransitionStrict follows models.CanTransition: nothing leaves CLOSED.
	TransitionStrict
)

// TaskServiceDeps groups the collaborators of TaskService
type TaskServiceDeps struct {
	Store     repository.Store
	Managers  *ManagerService
	Locks     *lock.KeyedMutex
	Policy    TransitionPolicy
	Publisher events.Publisher
	Metrics   *observability.Metrics
	Logger    *logger.Logger
}

// TaskService owns the ticket lifecycle
type TaskService struct {
	store     repository.Store
	managers  *ManagerService
	locks     *lock.KeyedMutex
	policy    TransitionPolicy
	publisher events.Publisher
	metrics   *observability.Metrics
	log       *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewTaskService(deps TaskServiceDeps) *TaskService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &TaskService{
		store:     deps.Store,
		managers:  deps.Managers,
		locks:     deps.Locks,
		policy:    deps.Policy,
		publisher: publisher,
		metrics:   deps.Metrics,
		log:       deps.Logger,
		tracer:    observability.Tracer(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ResolveActiveTask returns the user's active ticket, opening one when there is none.
func (s *TaskService) ResolveActiveTask(ctx context.Context, user *models.User) (*models.Task, bool, error) {
	ctx, span := s.tracer.Start(ctx, "TaskService.ResolveActiveTask",
		trace.WithAttributes(attribute.Int64("user.id", int64(user.ID))))
	defer span.End()

	return s.withActiveTask(ctx, user, nil)
}

// withActiveTask resolves the user's active ticket under the user's lock and
// runs fn in the same transaction. A unique violation from a writer outside
// this process is retried once with a fresh transaction.
func (s *TaskService) withActiveTask(
	ctx context.Context,
	user *models.User,
	fn func(tx repository.Store, task *models.Task) error,
) (*models.Task, bool, error) {
	unlock := s.locks.Lock(userLockKey(user.ID))
	defer unlock()

	var (
		task    *models.Task
		created bool
	)
	for attempt := 0; ; attempt++ {
		err := s.store.Transaction(ctx, func(tx repository.Store) error {
			var err error
			task, created, err = s.resolveInTx(ctx, tx, user)
			if err != nil {
				return err
			}
			if fn != nil {
				return fn(tx, task)
			}
			return nil
		})
		if err == nil {
			break
		}
		if attempt == 0 && repository.IsUniqueViolation(err) {
			s.log.WithChat(user.ExternalID).Warn("Concurrent ticket creation detected, retrying")
			continue
		}
		return nil, false, fmt.Errorf("failed to resolve active task: %w", err)
	}

	if created {
		s.metrics.TicketsOpened.Inc()
		s.log.WithChat(user.ExternalID).WithTask(task.ID).Info("Ticket opened")
		s.publisher.Publish(events.Event{Type: events.TypeTaskOpened, Content: task.ToResponse()})
	}
	return task, created, nil
}

func (s *TaskService) resolveInTx(ctx context.Context, tx repository.Store, user *models.User) (*models.Task, bool, error) {
	active, err := tx.Tasks().FindActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	if len(active) > 0 {
		return s.pickActive(user, active), false, nil
	}

	task := &models.Task{UserID: user.ID, Status: models.TaskStatusOpen}
	if err := tx.Tasks().Create(ctx, task); err != nil {
		return nil, false, err
	}
	return task, true, nil
}

// pickActive prefers OPEN over IN_PROGRESS, then the lowest id. More than one
// candidate means the one-active-ticket rule was broken somewhere.
func (s *TaskService) pickActive(user *models.User, active []models.Task) *models.Task {
	if len(active) > 1 {
		s.metrics.ActiveTicketViolations.Inc()
		s.log.WithChat(user.ExternalID).Error("User has more than one active ticket",
			"user_id", user.ID,
			"count", len(active),
		)
	}

	best := &active[0]
	for i := range active[1:] {
		t := &active[i+1]
		if best.Status != models.TaskStatusOpen && t.Status == models.TaskStatusOpen {
			best = t
		}
	}
	return best
}

// AssignManager sets the ticket owner and moves it to IN_PROGRESS.
func (s *TaskService) AssignManager(ctx context.Context, taskID, managerID uint) (*models.Task, error) {
	ctx, span := s.tracer.Start(ctx, "TaskService.AssignManager",
		trace.WithAttributes(
			attribute.Int64("task.id", int64(taskID)),
			attribute.Int64("manager.id", int64(managerID)),
		))
	defer span.End()

	manager, err := s.managers.Get(ctx, managerID)
	if err != nil {
		return nil, err
	}

	task, err := s.mutate(ctx, taskID, models.TaskStatusInProgress, func(t *models.Task) {
		t.ManagerID = &manager.ID
		t.Status = models.TaskStatusInProgress
	})
	if err != nil {
		return nil, err
	}

	s.log.WithTask(task.ID).Info("Ticket assigned", "manager_id", manager.ID)
	return task, nil
}

// SetStatus changes the ticket status. Every change into CLOSED stamps the
// close date; the date is never cleared.
func (s *TaskService) SetStatus(ctx context.Context, taskID uint, status models.TaskStatus) (*models.Task, error) {
	ctx, span := s.tracer.Start(ctx, "TaskService.SetStatus",
		trace.WithAttributes(
			attribute.Int64("task.id", int64(taskID)),
			attribute.String("task.status", string(status)),
		))
	defer span.End()

	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	task, err := s.mutate(ctx, taskID, status, func(t *models.Task) {
		t.Status = status
		if status == models.TaskStatusClosed {
			closed := s.now()
			t.CloseDate = &closed
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.WithTask(task.ID).Info("Ticket status changed", "status", string(task.Status))
	return task, nil
}

// mutate loads the ticket, checks the move to target against the policy and
// the active-ticket rule, applies change and saves, all under the owner's lock.
func (s *TaskService) mutate(ctx context.Context, taskID uint, target models.TaskStatus, change func(*models.Task)) (*models.Task, error) {
	current, err := s.store.Tasks().GetByID(ctx, taskID, false)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	unlock := s.locks.Lock(userLockKey(current.UserID))
	defer unlock()

	var task *models.Task
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		t, err := tx.Tasks().GetByID(ctx, taskID, false)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotFound
		}
		if err != nil {
			return err
		}

		if err := s.checkTransition(ctx, tx, t, target); err != nil {
			return err
		}

		change(t)
		if err := tx.Tasks().Save(ctx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrInvalidTransition):
		return nil, err
	case repository.IsUniqueViolation(err):
		return nil, fmt.Errorf("%w: user already has an active ticket", ErrInvalidTransition)
	default:
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.metrics.TicketTransitions.WithLabelValues(string(task.Status)).Inc()
	s.publisher.Publish(events.Event{Type: events.TypeTaskUpdated, Content: task.ToResponse()})
	return task, nil
}

func (s *TaskService) checkTransition(ctx context.Context, tx repository.Store, t *models.Task, target models.TaskStatus) error {
	if s.policy == TransitionStrict && !models.CanTransition(t.Status, target) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, t.Status, target)
	}

	// reopening a closed ticket must not give the owner a second active one
	if t.Status.IsActive() || !target.IsActive() {
		return nil
	}
	active, err := tx.Tasks().FindActiveByUser(ctx, t.UserID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return fmt.Errorf("%w: user already has active ticket %d", ErrInvalidTransition, active[0].ID)
	}
	return nil
}

// TaskFilter narrows List
type TaskFilter struct {
	Status       *models.TaskStatus
	UserID       *uint
	WithMessages bool
}

func (s *TaskService) List(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	tasks, err := s.store.Tasks().List(ctx, repository.TaskFilter{
		Status:       filter.Status,
		UserID:       filter.UserID,
		WithMessages: filter.WithMessages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Get returns the ticket with its messages in conversation order
func (s *TaskService) Get(ctx context.Context, id uint) (*models.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, id, true)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (s *TaskService) ListMessages(ctx context.Context, taskID uint) ([]models.Message, error) {
	if _, err := s.store.Tasks().GetByID(ctx, taskID, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	messages, err := s.store.Messages().ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func userLockKey(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}
