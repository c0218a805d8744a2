package services

import (
	"context"
	"fmt"

	"github.com/toukan/toukan/internal/client/cache"
	"github.com/toukan/toukan/internal/client/client"
	"github.com/toukan/toukan/internal/client/models"
	"github.com/toukan/toukan/internal/logging"
)

// Observer receives memory states seen by reads so that the sync channel can
// adjust its cadence.
type Observer interface {
	Observe(list *models.MemoryList)
	Track(id string, status models.MemoryStatus)
}

// MemoryService defines the remote memory operations.
type MemoryService interface {
	List(ctx context.Context, p models.ListParams) (*models.MemoryList, error)
	Get(ctx context.Context, id string) (*models.Memory, error)
	Retry(ctx context.Context, id string) (*models.Memory, error)
	Delete(ctx context.Context, id string) error
}

type memoryService struct {
	client client.Client
	cache  *cache.Cache
	obs    Observer
	log    logging.Logger
}

// NewMemoryService builds a MemoryService. obs may be nil.
func NewMemoryService(c client.Client, ch *cache.Cache, obs Observer, log logging.Logger) MemoryService {
	return &memoryService{client: c, cache: ch, obs: obs, log: logging.Component(log, "memories")}
}

func (s *memoryService) List(ctx context.Context, p models.ListParams) (*models.MemoryList, error) {
	if l, ok := s.cache.List(p); ok {
		return l, nil
	}

	version := s.cache.ListVersion()
	l, err := s.client.List(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	s.cache.PutList(version, p, l)
	if s.obs != nil {
		s.obs.Observe(l)
	}
	return l, nil
}

func (s *memoryService) Get(ctx context.Context, id string) (*models.Memory, error) {
	if m, ok := s.cache.Memory(id); ok {
		return m, nil
	}

	version := s.cache.MemoryVersion(id)
	m, err := s.client.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting memory %s: %w", id, err)
	}
	s.cache.PutMemory(version, m)
	s.track(m)
	return m, nil
}

// Retry asks the backend to reprocess a memory.
func (s *memoryService) Retry(ctx context.Context, id string) (*models.Memory, error) {
	m, err := s.client.RetryProcessing(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reprocessing memory %s: %w", id, err)
	}
	s.cache.InvalidateMemory(id)
	s.cache.InvalidateList()
	s.track(m)
	return m, nil
}

func (s *memoryService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting memory %s: %w", id, err)
	}
	s.cache.InvalidateMemory(id)
	s.cache.InvalidateList()
	s.log.Info(ctx, "memory deleted", "memory_id", id)
	return nil
}

func (s *memoryService) track(m *models.Memory) {
	if s.obs != nil && m != nil {
		s.obs.Track(m.ID, m.Status)
	}
}
