// server/internal/dispatch/store.go
package dispatch

import (
	"context"

	"ambulance-dispatch-api-server/internal/models"
)

// Store is the persistence backend for the dispatcher. Implementations
// must return ErrNotFound (wrapped or bare) for missing IDs. The
// dispatcher serializes all mutating calls, so implementations do not
// need their own write coordination.
type Store interface {
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
	GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error)
	SaveVehicle(ctx context.Context, v *models.Vehicle) error

	ListRequests(ctx context.Context) ([]models.EmergencyRequest, error)
	GetRequest(ctx context.Context, requestID string) (*models.EmergencyRequest, error)
	SaveRequest(ctx context.Context, r *models.EmergencyRequest) error
}

// Notifier delivers an event payload to a connected user. A missing or
// offline recipient is not an error.
type Notifier interface {
	Send(userID string, message []byte) error
}
