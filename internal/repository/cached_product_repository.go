package repository

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/cache"
	"storefront/internal/model"

	"github.com/rs/zerolog"
)

// cachedProductRepository fronts a ProductRepository with a read-through cache.
// Cache failures fall through to the underlying repository.
type cachedProductRepository struct {
	next   ProductRepository
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedProductRepository wraps next with c.
func NewCachedProductRepository(next ProductRepository, c cache.Cache, ttl time.Duration, logger zerolog.Logger) ProductRepository {
	return &cachedProductRepository{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger.With().Str("repository", "product-cache").Logger(),
	}
}

func (r *cachedProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	products, err := r.GetByIDs(ctx, []string{id})
	if err != nil || len(products) == 0 {
		return nil, err
	}
	return &products[0], nil
}

func (r *cachedProductRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	products := make([]model.Product, 0, len(ids))
	var misses []string

	for _, id := range ids {
		raw, err := r.cache.Get(ctx, r.cache.GenerateKey("product", id))
		if err != nil {
			r.logger.Warn().Err(err).Str("product_id", id).Msg("product cache read failed")
		}
		if raw == "" {
			misses = append(misses, id)
			continue
		}

		var p model.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			misses = append(misses, id)
			continue
		}
		products = append(products, p)
	}

	if len(misses) == 0 {
		return products, nil
	}

	fetched, err := r.next.GetByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}

	for _, p := range fetched {
		data, err := json.Marshal(p)
		if err != nil {
			continue
		}
		if err := r.cache.Set(ctx, r.cache.GenerateKey("product", p.ID), data, r.ttl); err != nil {
			r.logger.Warn().Err(err).Str("product_id", p.ID).Msg("product cache write failed")
		}
	}

	return append(products, fetched...), nil
}
