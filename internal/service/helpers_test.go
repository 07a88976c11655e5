package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"service-desk/backend/internal/events"
	"service-desk/backend/internal/models"
	"service-desk/backend/internal/repository"
	"service-desk/backend/internal/testutil"
	"service-desk/backend/pkg/blob"
	"service-desk/backend/pkg/cache"
	"service-desk/backend/pkg/lock"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/shared/observability"

	"github.com/stretchr/testify/require"
)

type delivery struct {
	ExternalID string
	Payload    string
}

type fakeNotifier struct {
	mu       sync.Mutex
	texts    []delivery
	images   []delivery
	textErr  error
	imageErr error
}

func (n *fakeNotifier) SendText(_ context.Context, externalID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.textErr != nil {
		return n.textErr
	}
	n.texts = append(n.texts, delivery{externalID, text})
	return nil
}

func (n *fakeNotifier) SendImage(_ context.Context, externalID, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.imageErr != nil {
		return n.imageErr
	}
	n.images = append(n.images, delivery{externalID, name})
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store     *repository.GormStore
	users     *UserService
	managers  *ManagerService
	tasks     *TaskService
	router    *MessageRouter
	blobs     *blob.FSStore
	notifier  *fakeNotifier
	publisher *recordingPublisher
	metrics   *observability.Metrics
}

var errDeliveryDown = errors.New("chat platform unavailable")

func newTestEnv(t *testing.T, policy TransitionPolicy) *testEnv {
	t.Helper()

	store := testutil.NewStore(t)
	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	c := cache.New(cache.Options{TTL: time.Minute})
	t.Cleanup(c.Close)

	env := &testEnv{
		store:     store,
		blobs:     blobs,
		notifier:  &fakeNotifier{},
		publisher: &recordingPublisher{},
		metrics:   observability.NewMetrics(),
	}
	log := logger.Discard()

	env.users = NewUserService(store)
	env.managers = NewManagerService(store, c)
	env.tasks = NewTaskService(TaskServiceDeps{
		Store:     store,
		Managers:  env.managers,
		Locks:     lock.NewKeyedMutex(),
		Policy:    policy,
		Publisher: env.publisher,
		Metrics:   env.metrics,
		Logger:    log,
	})
	env.router = NewMessageRouter(MessageRouterDeps{
		Store:     store,
		Tasks:     env.tasks,
		Managers:  env.managers,
		Blobs:     blobs,
		Notifier:  env.notifier,
		Publisher: env.publisher,
		Metrics:   env.metrics,
		Logger:    log,
	})
	return env
}

func (e *testEnv) registerUser(t *testing.T, externalID string) *models.User {
	t.Helper()
	user, _, err := e.users.RegisterUser(context.Background(), RegisterUserInput{ExternalID: externalID})
	require.NoError(t, err)
	return user
}

func (e *testEnv) createManager(t *testing.T, id uint) *models.Manager {
	t.Helper()
	m := &models.Manager{ID: id, FirstName: "Ada", LastName: "Operator"}
	require.NoError(t, e.store.Managers().Create(context.Background(), m))
	return m
}

func (e *testEnv) activeTasks(t *testing.T, userID uint) []models.Task {
	t.Helper()
	tasks, err := e.store.Tasks().FindActiveByUser(context.Background(), userID)
	require.NoError(t, err)
	return tasks
}
