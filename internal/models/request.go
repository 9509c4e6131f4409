// server/internal/models/request.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus is the lifecycle state of an emergency request.
// The lifecycle is linear: pending -> dispatched -> en-route -> arrived -> completed.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestDispatched RequestStatus = "dispatched"
	RequestEnRoute    RequestStatus = "en-route"
	RequestArrived    RequestStatus = "arrived"
	RequestCompleted  RequestStatus = "completed"
)

// EmergencyType classifies the reported emergency.
type EmergencyType string

const (
	EmergencyCardiac     EmergencyType = "cardiac"
	EmergencyRespiratory EmergencyType = "respiratory"
	EmergencyTrauma      EmergencyType = "trauma"
	EmergencyStroke      EmergencyType = "stroke"
	EmergencyOverdose    EmergencyType = "overdose"
	EmergencyOther       EmergencyType = "other"
)

// Severity is the caller-reported urgency of a request.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank orders severities for the reassignment queue. Higher is more urgent.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

type EmergencyRequest struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequestID         string             `bson:"requestID" json:"requestID"` // server-generated, e.g. "REQ-1A2B3C4D"
	PatientName       string             `bson:"patientName" json:"patientName"`
	ContactPhone      string             `bson:"contactPhone" json:"contactPhone"`
	Location          Location           `bson:"location" json:"location"`
	EmergencyType     EmergencyType      `bson:"emergencyType" json:"emergencyType"`
	Severity          Severity           `bson:"severity" json:"severity"`
	Description       string             `bson:"description,omitempty" json:"description"`
	Status            RequestStatus      `bson:"status" json:"status"`
	AssignedVehicleID string             `bson:"assignedVehicleID,omitempty" json:"assignedVehicleID"` // weak reference into vehicles; empty until confirmed
	EstimatedArrival  *time.Time         `bson:"estimatedArrival,omitempty" json:"estimatedArrival"`
	Photos            []MediaPointer     `bson:"photos,omitempty" json:"photos"` // incident photos uploaded by the crew (S3 references)
	CreatedBy         string             `bson:"createdBy,omitempty" json:"createdBy"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ValidEmergencyType reports whether t is one of the accepted enum values.
func ValidEmergencyType(t EmergencyType) bool {
	switch t {
	case EmergencyCardiac, EmergencyRespiratory, EmergencyTrauma, EmergencyStroke, EmergencyOverdose, EmergencyOther:
		return true
	}
	return false
}

// ValidSeverity reports whether s is one of the accepted enum values.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
