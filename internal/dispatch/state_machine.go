// server/internal/dispatch/state_machine.go
package dispatch

import (
	"fmt"

	"ambulance-dispatch-api-server/internal/models"
)

// requestTransitions defines the allowed request lifecycle as a directed
// graph. The lifecycle is strictly linear; completed is terminal.
var requestTransitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestPending:    {models.RequestDispatched},
	models.RequestDispatched: {models.RequestEnRoute},
	models.RequestEnRoute:    {models.RequestArrived},
	models.RequestArrived:    {models.RequestCompleted},
	models.RequestCompleted:  {},
}

// vehicleTransitions defines the allowed vehicle status changes.
// A dispatched vehicle is released back to available when its request
// completes or its assignment times out.
var vehicleTransitions = map[models.VehicleStatus][]models.VehicleStatus{
	models.VehicleAvailable:  {models.VehicleBusy, models.VehicleDispatched, models.VehicleOffline},
	models.VehicleBusy:       {models.VehicleAvailable, models.VehicleOffline},
	models.VehicleDispatched: {models.VehicleAvailable, models.VehicleBusy, models.VehicleOffline},
	models.VehicleOffline:    {models.VehicleAvailable},
}

// CanTransitionRequest reports whether from -> to is a legal request
// status change. A self-transition is always legal (idempotent update).
func CanTransitionRequest(from, to models.RequestStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := requestTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionVehicle reports whether from -> to is a legal vehicle
// status change. A self-transition is always legal.
func CanTransitionVehicle(from, to models.VehicleStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := vehicleTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func checkRequestTransition(from, to models.RequestStatus) error {
	if !CanTransitionRequest(from, to) {
		return fmt.Errorf("%w: request %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func checkVehicleTransition(from, to models.VehicleStatus) error {
	if !CanTransitionVehicle(from, to) {
		return fmt.Errorf("%w: vehicle %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
