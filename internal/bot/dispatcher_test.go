package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/notify"
	"service-desk/backend/internal/service"
	"service-desk/backend/pkg/cache"
	"service-desk/backend/pkg/dedup"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/shared/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	mu    sync.Mutex
	byExt map[string]*models.User
}

func (f *fakeUsers) RegisterUser(_ context.Context, in service.RegisterUserInput) (*models.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byExt[in.ExternalID]; ok {
		return u, false, nil
	}
	u := &models.User{ID: uint(len(f.byExt) + 1), ExternalID: in.ExternalID}
	f.byExt[in.ExternalID] = u
	return u, true, nil
}

func (f *fakeUsers) GetByExternalID(_ context.Context, externalID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byExt[externalID]; ok {
		return u, nil
	}
	return nil, service.ErrUserNotFound
}

type fakeRouter struct {
	inbound []service.Inbound
	err     error
}

func (f *fakeRouter) RecordInboundMessage(_ context.Context, _ *models.User, in service.Inbound) (*models.Message, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	f.inbound = append(f.inbound, in)
	return &models.Message{}, len(f.inbound) == 1, nil
}

type fakeNotifier struct {
	texts []string
}

func (f *fakeNotifier) SendText(_ context.Context, _ string, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) SendImage(context.Context, string, string) error { return nil }

type fakeFiles struct {
	data []byte
	err  error
}

func (f fakeFiles) Download(context.Context, string) ([]byte, error) { return f.data, f.err }

type dispatcherFixture struct {
	d        *Dispatcher
	users    *fakeUsers
	router   *fakeRouter
	notifier *fakeNotifier
	metrics  *observability.Metrics
}

func newDispatcherFixture(t *testing.T, files fakeFiles) *dispatcherFixture {
	c := cache.New(cache.Options{})
	t.Cleanup(c.Close)

	f := &dispatcherFixture{
		users:    &fakeUsers{byExt: map[string]*models.User{}},
		router:   &fakeRouter{},
		notifier: &fakeNotifier{},
		metrics:  observability.NewMetrics(),
	}
	f.d = NewDispatcher(DispatcherDeps{
		Users:    f.users,
		Router:   f.router,
		Notifier: f.notifier,
		Files:    files,
		Dedup:    dedup.NewMemoryStore(c, time.Hour),
		Metrics:  f.metrics,
		Logger:   logger.Discard(),
	})
	return f
}

func TestStartRegistersOnce(t *testing.T) {
	f := newDispatcherFixture(t, fakeFiles{})
	ctx := context.Background()

	require.NoError(t, f.d.Handle(ctx, Update{ID: 1, ExternalID: "42", Command: "start"}))
	require.NoError(t, f.d.Handle(ctx, Update{ID: 2, ExternalID: "42", Command: "start"}))

	assert.Len(t, f.users.byExt, 1)
	assert.Equal(t, []string{notify.TextRegistered, notify.TextAlreadyRegistered}, f.notifier.texts)
}

func TestUnregisteredUserIsAskedToStart(t *testing.T) {
	f := newDispatcherFixture(t, fakeFiles{})

	require.NoError(t, f.d.Handle(context.Background(), Update{ID: 1, ExternalID: "7", Text: "hi"}))

	assert.Empty(t, f.router.inbound)
	assert.Equal(t, []string{notify.TextPleaseStart}, f.notifier.texts)
}

func TestTextIsRecorded(t *testing.T) {
	f := newDispatcherFixture(t, fakeFiles{})
	ctx := context.Background()
	require.NoError(t, f.d.Handle(ctx, Update{ID: 1, ExternalID: "9", Command: "start"}))

	require.NoError(t, f.d.Handle(ctx, Update{ID: 2, ExternalID: "9", Text: "my printer is on fire"}))

	require.Len(t, f.router.inbound, 1)
	assert.Equal(t, "my printer is on fire", f.router.inbound[0].Text)
}

func TestPhotoWithCaptionRecordsTwoMessages(t *testing.T) {
	img := []byte{0xFF, 0xD8}
	f := newDispatcherFixture(t, fakeFiles{data: img})
	ctx := context.Background()
	require.NoError(t, f.d.Handle(ctx, Update{ID: 1, ExternalID: "9", Command: "start"}))

	require.NoError(t, f.d.Handle(ctx, Update{ID: 2, ExternalID: "9", PhotoFileID: "file-1", Caption: "error screen"}))

	require.Len(t, f.router.inbound, 2)
	assert.Equal(t, img, f.router.inbound[0].Image)
	assert.Equal(t, "error screen", f.router.inbound[1].Text)
}

func TestPhotoDownloadFailure(t *testing.T) {
	f := newDispatcherFixture(t, fakeFiles{err: errors.New("telegram down")})
	ctx := context.Background()
	require.NoError(t, f.d.Handle(ctx, Update{ID: 1, ExternalID: "9", Command: "start"}))

	err := f.d.Handle(ctx, Update{ID: 2, ExternalID: "9", PhotoFileID: "file-1"})
	assert.Error(t, err)
	assert.Empty(t, f.router.inbound)
	assert.Equal(t, notify.TextTemporaryFailure, f.notifier.texts[len(f.notifier.texts)-1])
}

func TestUnsupportedContent(t *testing.T) {
	f := newDispatcherFixture(t, fakeFiles{})
	ctx := context.Background()
	require.NoError(t, f.d.Handle(ctx, Update{ID: 1, ExternalID: "9", Command: "start"}))

	require.NoError(t, f.d.Handle(ctx, Update{ID: 2, ExternalID: "9"}))

	assert.Empty(t, f.router.inbound)
	assert.Equal(t, notify.TextUnsupported, f.notifier.texts[len(f.notifier.texts)-1])
}

func TestDuplicateUpdateIsSkipped(t *testing.T) {
	f := newDispatcherFixture(t, fakeFiles{})
	ctx := context.Background()
	require.NoError(t, f.d.Handle(ctx, Update{ID: 1, ExternalID: "9", Command: "start"}))

	upd := Update{ID: 2, ExternalID: "9", Text: "once"}
	require.NoError(t, f.d.Handle(ctx, upd))
	require.NoError(t, f.d.Handle(ctx, upd))

	assert.Len(t, f.router.inbound, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.DuplicateUpdates))
}

func TestStorageFailureIsReportedToUser(t *testing.T) {
	f := newDispatcherFixture(t, fakeFiles{})
	ctx := context.Background()
	require.NoError(t, f.d.Handle(ctx, Update{ID: 1, ExternalID: "9", Command: "start"}))

	f.router.err = errors.New("database is gone")
	err := f.d.Handle(ctx, Update{ID: 2, ExternalID: "9", Text: "hello"})
	assert.Error(t, err)
	assert.Equal(t, notify.TextTemporaryFailure, f.notifier.texts[len(f.notifier.texts)-1])
}
