package services

import (
	"context"
	"errors"
	"time"

	"healthplan_billing/internal/models"
	"healthplan_billing/internal/payments"
)

const planCacheTTL = time.Hour

// CatalogService resolves plan slugs against the read-only plan catalog,
// with a Redis cache in front. The cache is optional; a nil cache reads
// through to the database.
type CatalogService struct {
	plans PlanStore
	cache *RedisCache
}

func NewCatalogService(plans PlanStore, cache *RedisCache) *CatalogService {
	return &CatalogService{plans: plans, cache: cache}
}

// Resolve returns the active plan for a slug, or (nil, nil) when the
// slug is unknown. Unknown slugs are not cached.
func (s *CatalogService) Resolve(ctx context.Context, slug string) (*models.Plan, error) {
	if s.cache == nil {
		return s.plans.FindBySlug(ctx, slug)
	}

	plan, err := GetOrSet(s.cache, ctx, "plan:"+slug, planCacheTTL, func() (models.Plan, error) {
		p, err := s.plans.FindBySlug(ctx, slug)
		if err != nil {
			return models.Plan{}, err
		}
		if p == nil {
			return models.Plan{}, payments.ErrNotFound
		}
		return *p, nil
	})
	if err != nil {
		if errors.Is(err, payments.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
