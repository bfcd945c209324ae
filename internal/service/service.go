package service

import (
	"context"

	"storefront/internal/model"
)

// OrderService records paid purchases.
type OrderService interface {
	// CreatePaymentIntent registers the amount with the payment provider.
	CreatePaymentIntent(ctx context.Context, req *model.PaymentIntentRequest) (*model.PaymentIntentResponse, error)

	// VerifyAndFinalize checks the provider's signature and records the order exactly once
	// per provider payment.
	VerifyAndFinalize(ctx context.Context, req *model.VerifyPaymentRequest, identity *model.Identity) (*model.VerifyPaymentResponse, error)

	// CreateManualOrder records an order taken outside the payment gateway.
	CreateManualOrder(ctx context.Context, req *model.ManualOrderRequest, actor *model.Identity) (*model.Order, error)
}

// LifecycleService moves orders through their lifecycle and serves order reads.
type LifecycleService interface {
	Advance(ctx context.Context, identifier string, req *model.AdvanceRequest, actor *model.Identity) (*model.Order, error)
	CustomerCancel(ctx context.Context, identifier string, identity *model.Identity) (*model.Order, error)
	BulkAdvance(ctx context.Context, req *model.BulkAdvanceRequest, actor *model.Identity) (*model.BulkResult, error)
	GetTimeline(ctx context.Context, identifier string, identity *model.Identity) (*model.TimelineResponse, error)
	GetOrder(ctx context.Context, identifier string) (*model.Order, error)
	ListOrders(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
	UpdateTracking(ctx context.Context, identifier string, req *model.TrackingRequest) (*model.Order, error)
	UpdateAdminNotes(ctx context.Context, identifier string, req *model.NotesRequest) (*model.Order, error)
	SetArchived(ctx context.Context, identifier string, req *model.ArchiveRequest) (*model.Order, error)
}

// ReorderService builds baskets from past orders.
type ReorderService interface {
	Reorder(ctx context.Context, identifier string, req *model.ReorderRequest, identity *model.Identity) (*model.ReorderDraft, error)
}

// OutboxService exposes parked side effects to operators.
type OutboxService interface {
	ListFailed(ctx context.Context, limit int) ([]model.OutboxTask, error)
	Retry(ctx context.Context, taskID string) error
}

// Kicker wakes the side-effect relay.
type Kicker interface {
	Kick()
}
