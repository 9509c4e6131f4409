// server/internal/models/vehicle.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleStatus is the availability state of an ambulance. Persisted as a string.
type VehicleStatus string

const (
	VehicleAvailable  VehicleStatus = "available"  // idle, dispatchable
	VehicleBusy       VehicleStatus = "busy"       // occupied outside the dispatch flow (refuel, transfer, ...)
	VehicleDispatched VehicleStatus = "dispatched" // bound to an active emergency request
	VehicleOffline    VehicleStatus = "offline"    // out of service / retired; vehicles are never deleted
)

type Vehicle struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID    string             `bson:"vehicleID" json:"vehicleID"`       // server-generated, e.g. "AMB-1A2B3C4D"
	CallSign     string             `bson:"callSign" json:"callSign"`         // display string, e.g. "AMB-001"
	OperatorID   string             `bson:"operatorID" json:"operatorID"`     // user ID of the driver crewing this unit
	OperatorName string             `bson:"operatorName" json:"operatorName"`
	Status       VehicleStatus      `bson:"status" json:"status"`
	Location     Location           `bson:"location" json:"location"`
	Equipment    []string           `bson:"equipment" json:"equipment"` // capability tags: "AED", "Oxygen", ...
	LastUpdate   time.Time          `bson:"lastUpdate" json:"lastUpdate"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
