package notifications

import (
	"context"

	"github.com/reviewloop/reviewloop/internal/models"
)

// Dispatcher pushes a message to an end customer through an external
// channel. Best-effort from the pipeline's perspective: callers log and
// swallow errors, they never affect the primary state transition.
type Dispatcher interface {
	NotifyCustomer(ctx context.Context, customer *models.Customer, message string) error
}
