package service

import (
	"context"
	"testing"

	"service-desk/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserIsIdempotent(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	first := "Ann"

	u1, created, err := env.users.RegisterUser(ctx, RegisterUserInput{ExternalID: "100", FirstName: &first})
	require.NoError(t, err)
	assert.True(t, created)

	u2, created, err := env.users.RegisterUser(ctx, RegisterUserInput{ExternalID: "100"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u1.ID, u2.ID)

	users, err := env.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	require.NotNil(t, users[0].FirstName)
	assert.Equal(t, "Ann", *users[0].FirstName)
}

func TestRegisterUserRejectsEmptyExternalID(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)

	_, _, err := env.users.RegisterUser(context.Background(), RegisterUserInput{ExternalID: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUserLookups(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()
	user := env.registerUser(t, "200")

	got, err := env.users.GetByExternalID(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = env.users.GetByExternalID(ctx, "404")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.users.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestManagerServiceCreateAndGet(t *testing.T) {
	env := newTestEnv(t, TransitionPermissive)
	ctx := context.Background()

	m, err := env.managers.Create(ctx, modelsCreateManager("Grace", "Hopper"))
	require.NoError(t, err)

	got, err := env.managers.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", got.FullName())

	_, err = env.managers.Get(ctx, 12345)
	assert.ErrorIs(t, err, ErrManagerNotFound)

	_, err = env.managers.Create(ctx, modelsCreateManager("", "x"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	list, err := env.managers.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func modelsCreateManager(first, last string) models.CreateManagerRequest {
	return models.CreateManagerRequest{FirstName: first, LastName: last}
}
