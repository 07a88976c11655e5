package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/repository"
)

// RegisterUserInput describes an end user introducing themselves to the bot
type RegisterUserInput struct {
	ExternalID string
	FirstName  *string
	LastName   *string
}

// UserService handles end user registration and lookup
type UserService struct {
	store repository.Store
}

// NewUserService creates a new user service
func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

// RegisterUser creates the user for an external id, or returns the existing
// one with created=false.
func (s *UserService) RegisterUser(ctx context.Context, in RegisterUserInput) (*models.User, bool, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, false, fmt.Errorf("%w: external id is required", ErrInvalidInput)
	}

	existing, err := s.store.Users().GetByExternalID(ctx, externalID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	user := &models.User{
		ExternalID: externalID,
		FirstName:  nonEmpty(in.FirstName),
		LastName:   nonEmpty(in.LastName),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		// lost a race with a concurrent /start for the same chat
		if repository.IsUniqueViolation(err) {
			existing, getErr := s.store.Users().GetByExternalID(ctx, externalID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to re-read user: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}

	return user, true, nil
}

// GetByExternalID returns ErrUserNotFound for unknown chats
func (s *UserService) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	user, err := s.store.Users().GetByExternalID(ctx, externalID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.store.Users().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
