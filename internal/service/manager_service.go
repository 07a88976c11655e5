package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/repository"
	"service-desk/backend/pkg/cache"
)

// ManagerService handles operators. Managers are never mutated after
// creation, so lookups are memoised.
type ManagerService struct {
	store repository.Store
	cache *cache.Cache
}

func NewManagerService(store repository.Store, c *cache.Cache) *ManagerService {
	return &ManagerService{store: store, cache: c}
}

func (s *ManagerService) Create(ctx context.Context, req models.CreateManagerRequest) (*models.Manager, error) {
	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" || last == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}

	manager := &models.Manager{FirstName: first, LastName: last}
	if err := s.store.Managers().Create(ctx, manager); err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}
	s.cache.Set(managerKey(manager.ID), *manager)
	return manager, nil
}

// Get returns ErrManagerNotFound for unknown ids
func (s *ManagerService) Get(ctx context.Context, id uint) (*models.Manager, error) {
	if v, ok := s.cache.Get(managerKey(id)); ok {
		m := v.(models.Manager)
		return &m, nil
	}

	manager, err := s.store.Managers().GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrManagerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manager: %w", err)
	}

	s.cache.Set(managerKey(id), *manager)
	return manager, nil
}

func (s *ManagerService) List(ctx context.Context) ([]models.Manager, error) {
	managers, err := s.store.Managers().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}
	return managers, nil
}

func managerKey(id uint) string {
	return "manager:" + strconv.FormatUint(uint64(id), 10)
}
