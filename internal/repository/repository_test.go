package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/repository"
	"service-desk/backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, store repository.Store, externalID string) *models.User {
	t.Helper()
	user := &models.User{ExternalID: externalID}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func TestUserLookups(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	user := newUser(t, store, "100")

	got, err := store.Users().GetByExternalID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = store.Users().GetByExternalID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.Users().GetByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = store.Users().Create(ctx, &models.User{ExternalID: "100"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.True(t, repository.IsUniqueViolation(err))
}

func TestOneActiveTaskPerUser(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	user := newUser(t, store, "200")

	require.NoError(t, store.Tasks().Create(ctx, &models.Task{UserID: user.ID, Status: models.TaskStatusOpen}))

	err := store.Tasks().Create(ctx, &models.Task{UserID: user.ID, Status: models.TaskStatusInProgress})
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolation(err))

	// closed tickets do not count
	for i := 0; i < 2; i++ {
		require.NoError(t, store.Tasks().Create(ctx, &models.Task{UserID: user.ID, Status: models.TaskStatusClosed}))
	}

	active, err := store.Tasks().FindActiveByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, models.TaskStatusOpen, active[0].Status)
}

func TestSaveUpdatesMutableColumns(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	user := newUser(t, store, "300")
	manager := &models.Manager{FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, store.Managers().Create(ctx, manager))

	task := &models.Task{UserID: user.ID, Status: models.TaskStatusOpen}
	require.NoError(t, store.Tasks().Create(ctx, task))

	closed := time.Now().UTC().Truncate(time.Second)
	task.Status = models.TaskStatusClosed
	task.ManagerID = &manager.ID
	task.CloseDate = &closed
	require.NoError(t, store.Tasks().Save(ctx, task))

	got, err := store.Tasks().GetByID(ctx, task.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusClosed, got.Status)
	require.NotNil(t, got.ManagerID)
	assert.Equal(t, manager.ID, *got.ManagerID)
	require.NotNil(t, got.CloseDate)
	assert.True(t, closed.Equal(got.CloseDate.UTC()))

	err = store.Tasks().Save(ctx, &models.Task{ID: 999, UserID: user.ID, Status: models.TaskStatusOpen})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	a := newUser(t, store, "401")
	b := newUser(t, store, "402")

	require.NoError(t, store.Tasks().Create(ctx, &models.Task{UserID: a.ID, Status: models.TaskStatusOpen}))
	require.NoError(t, store.Tasks().Create(ctx, &models.Task{UserID: a.ID, Status: models.TaskStatusClosed}))
	require.NoError(t, store.Tasks().Create(ctx, &models.Task{UserID: b.ID, Status: models.TaskStatusInProgress}))

	all, err := store.Tasks().List(ctx, repository.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	status := models.TaskStatusClosed
	closed, err := store.Tasks().List(ctx, repository.TaskFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, a.ID, closed[0].UserID)

	ofB, err := store.Tasks().List(ctx, repository.TaskFilter{UserID: &b.ID})
	require.NoError(t, err)
	require.Len(t, ofB, 1)
	assert.Equal(t, models.TaskStatusInProgress, ofB[0].Status)
}

func TestMessagesInConversationOrder(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	user := newUser(t, store, "500")
	task := &models.Task{UserID: user.ID, Status: models.TaskStatusOpen}
	require.NoError(t, store.Tasks().Create(ctx, task))

	base := time.Now().UTC()
	texts := []string{"second", "first", "third"}
	offsets := []time.Duration{time.Second, 0, 2 * time.Second}
	for i, text := range texts {
		content := text
		require.NoError(t, store.Messages().Create(ctx, &models.Message{
			TaskID:    task.ID,
			Sender:    user.ExternalID,
			Content:   &content,
			Timestamp: base.Add(offsets[i]),
		}))
	}

	messages, err := store.Messages().ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", *messages[0].Content)
	assert.Equal(t, "second", *messages[1].Content)
	assert.Equal(t, "third", *messages[2].Content)

	withMessages, err := store.Tasks().GetByID(ctx, task.ID, true)
	require.NoError(t, err)
	require.Len(t, withMessages.Messages, 3)
	assert.Equal(t, "first", *withMessages.Messages[0].Content)
}

func TestTransactionRollsBack(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, &models.User{ExternalID: "600"}); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	_, err = store.Users().GetByExternalID(ctx, "600")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.NoError(t, store.Ping(ctx))
}
