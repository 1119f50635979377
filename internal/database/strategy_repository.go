package database

import (
	"context"
	"errors"
	"idea-research/internal/models"
	"maps"
	"slices"
	"sort"
	"sync"
)

// ErrNotFound is returned when a strategy does not exist
var ErrNotFound = errors.New("strategy not found")

// StrategyRepository persists strategies across their lifecycle
type StrategyRepository interface {
	// Save inserts or replaces a strategy
	Save(ctx context.Context, strategy *models.Strategy) error

	// Get returns the strategy with the given id or ErrNotFound
	Get(ctx context.Context, id string) (*models.Strategy, error)

	// ListBySession returns a session's strategies, oldest first
	ListBySession(ctx context.Context, sessionID string) ([]*models.Strategy, error)
}

// MemoryStrategyRepository keeps strategies in process memory
type MemoryStrategyRepository struct {
	strategies map[string]*models.Strategy
	mutex      sync.RWMutex
}

// NewMemoryStrategyRepository creates an empty in-memory repository
func NewMemoryStrategyRepository() *MemoryStrategyRepository {
	return &MemoryStrategyRepository{
		strategies: make(map[string]*models.Strategy),
	}
}

func (r *MemoryStrategyRepository) Save(_ context.Context, strategy *models.Strategy) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.strategies[strategy.ID] = cloneStrategy(strategy)
	return nil
}

func (r *MemoryStrategyRepository) Get(_ context.Context, id string) (*models.Strategy, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	strategy, ok := r.strategies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneStrategy(strategy), nil
}

func (r *MemoryStrategyRepository) ListBySession(_ context.Context, sessionID string) ([]*models.Strategy, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []*models.Strategy
	for _, strategy := range r.strategies {
		if strategy.SessionID == sessionID {
			result = append(result, cloneStrategy(strategy))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// cloneStrategy copies a strategy so callers cannot mutate stored state
func cloneStrategy(s *models.Strategy) *models.Strategy {
	c := *s
	c.Phases = slices.Clone(s.Phases)
	c.Insights = slices.Clone(s.Insights)
	c.NextSteps = slices.Clone(s.NextSteps)
	c.CustomParameters = maps.Clone(s.CustomParameters)
	c.Options = make([]models.ResearchOption, len(s.Options))
	for i, option := range s.Options {
		option.RiskFactors = slices.Clone(option.RiskFactors)
		option.MitigationStrategies = slices.Clone(option.MitigationStrategies)
		option.SuccessMetrics = slices.Clone(option.SuccessMetrics)
		c.Options[i] = option
	}
	if s.Options == nil {
		c.Options = nil
	}
	return &c
}
