package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/service"
	"service-desk/backend/internal/testutil"
	"service-desk/backend/pkg/blob"
	"service-desk/backend/pkg/cache"
	apperrors "service-desk/backend/pkg/errors"
	"service-desk/backend/pkg/lock"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/shared/observability"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ExternalID string
	Payload    string
	Image      bool
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *fakeNotifier) SendText(_ context.Context, externalID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{ExternalID: externalID, Payload: text})
	return nil
}

func (n *fakeNotifier) SendImage(_ context.Context, externalID, name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{ExternalID: externalID, Payload: name, Image: true})
	return nil
}

type apiEnv struct {
	engine   *gin.Engine
	users    *service.UserService
	router   *service.MessageRouter
	notifier *fakeNotifier
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := testutil.NewStore(t)
	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	c := cache.New(cache.Options{TTL: time.Minute})
	t.Cleanup(c.Close)

	log := logger.Discard()
	metrics := observability.NewMetrics()
	notifier := &fakeNotifier{}

	users := service.NewUserService(store)
	managers := service.NewManagerService(store, c)
	tasks := service.NewTaskService(service.TaskServiceDeps{
		Store:    store,
		Managers: managers,
		Locks:    lock.NewKeyedMutex(),
		Metrics:  metrics,
		Logger:   log,
	})
	router := service.NewMessageRouter(service.MessageRouterDeps{
		Store:    store,
		Tasks:    tasks,
		Managers: managers,
		Blobs:    blobs,
		Notifier: notifier,
		Metrics:  metrics,
		Logger:   log,
	})

	engine := gin.New()
	engine.Use(logger.Middleware(log))
	engine.Use(apperrors.ErrorHandler())

	v1 := engine.Group("/api/v1")
	NewUserHandler(users).RegisterRoutes(v1)
	NewManagerHandler(managers).RegisterRoutes(v1)
	NewTaskHandler(tasks, router, 1<<20).RegisterRoutes(v1)
	engine.GET("/static/img/:name", NewBlobHandler(blobs).Serve)

	return &apiEnv{engine: engine, users: users, router: router, notifier: notifier}
}

func (e *apiEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *apiEnv) postJSON(path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *apiEnv) postForm(path string, form string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func (e *apiEnv) postMultipart(t *testing.T, path string, fields map[string]string, image []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "photo.jpg")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

// openTicket registers a chat user and sends one text so a ticket exists
func (e *apiEnv) openTicket(t *testing.T, externalID string) (*models.User, uint) {
	t.Helper()
	ctx := context.Background()

	user, _, err := e.users.RegisterUser(ctx, service.RegisterUserInput{ExternalID: externalID})
	require.NoError(t, err)
	msg, _, err := e.router.RecordInboundMessage(ctx, user, service.Inbound{Text: "hello"})
	require.NoError(t, err)
	return user, msg.TaskID
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
