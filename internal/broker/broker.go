// Package broker provides order venues for the execution engine.
package broker

import (
	"context"

	"signal-trader/internal/models"
)

// Broker is a venue the pipeline can trade against. It satisfies both
// execution.OrderPlacer and execution.AccountSource.
type Broker interface {
	// Orders
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)

	// Account
	FetchAccount(ctx context.Context) (models.AccountState, error)
}

// Order statuses.
const (
	StatusOpen      = "open"
	StatusFilled    = "filled"
	StatusCancelled = "cancelled"
)

// Order is a venue-side order record.
type Order struct {
	ID        string
	Request   models.OrderRequest
	Status    string
	FillPrice float64
	PlacedAt  int64
	FilledAt  int64
	Reason    string
}
