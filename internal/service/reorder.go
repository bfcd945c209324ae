package service

import (
	"context"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog"
)

// Reasons reported for items that cannot be reordered.
const (
	UnavailableDiscontinued = "product is no longer sold"
	UnavailableOutOfStock   = "product is out of stock"
)

// reorderService implements ReorderService.
type reorderService struct {
	lifecycle *lifecycleService
	products  repository.ProductRepository
	logger    zerolog.Logger
}

// NewReorderService creates a reorder service. Ownership checks reuse the lifecycle service's rules.
func NewReorderService(orders repository.OrderRepository, products repository.ProductRepository, logger zerolog.Logger) ReorderService {
	return &reorderService{
		lifecycle: NewLifecycleService(LifecycleServiceDeps{Orders: orders}, logger).(*lifecycleService),
		products:  products,
		logger:    logger.With().Str("service", "reorder").Logger(),
	}
}

// Reorder prices the items of a past order against the live catalogue. Nothing is persisted.
func (s *reorderService) Reorder(ctx context.Context, identifier string, req *model.ReorderRequest, identity *model.Identity) (*model.ReorderDraft, error) {
	order, err := s.lifecycle.resolveOwned(ctx, identifier, identity)
	if err != nil {
		return nil, err
	}

	productIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, productIDs)
	if err != nil {
		s.logger.Error().Err(err).Str("order_number", order.OrderNumber).Msg("failed to load catalogue")
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	catalogue := make(map[string]model.Product, len(products))
	for _, p := range products {
		catalogue[p.ID] = p
	}

	draft := &model.ReorderDraft{
		SourceOrderID:    order.OrderNumber,
		Items:            []model.DraftItem{},
		ShippingAddress:  order.ShippingAddress,
		UnavailableItems: []model.UnavailableItem{},
	}
	if req != nil && req.ShippingAddress != nil {
		draft.ShippingAddress = *req.ShippingAddress
	}

	// Quantities already placed in the draft, so repeated lines share the stock.
	reserved := make(map[string]int)
	for _, item := range order.Items {
		product, ok := catalogue[item.ProductID]
		if !ok || !product.Active {
			draft.UnavailableItems = append(draft.UnavailableItems, model.UnavailableItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Reason:    UnavailableDiscontinued,
			})
			continue
		}

		remaining := product.Stock - reserved[product.ID]
		if remaining <= 0 {
			draft.UnavailableItems = append(draft.UnavailableItems, model.UnavailableItem{
				ProductID: item.ProductID,
				Name:      product.Name,
				Reason:    UnavailableOutOfStock,
			})
			continue
		}

		quantity := item.Quantity
		adjusted := false
		if quantity > remaining {
			quantity = remaining
			adjusted = true
		}
		reserved[product.ID] += quantity

		image := item.Image
		if product.Image != nil {
			image = product.Image
		}

		draft.Items = append(draft.Items, model.DraftItem{
			ProductID:        product.ID,
			Name:             product.Name,
			UnitPrice:        product.Price,
			Quantity:         quantity,
			QuantityAdjusted: adjusted,
			Image:            image,
			Color:            item.Color,
			Weight:           item.Weight,
		})
		draft.Subtotal += product.Price * int64(quantity)
	}

	s.logger.Debug().
		Str("order_number", order.OrderNumber).
		Int("items", len(draft.Items)).
		Int("unavailable", len(draft.UnavailableItems)).
		Msg("reorder draft built")

	return draft, nil
}
