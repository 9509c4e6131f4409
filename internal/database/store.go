// server/internal/database/store.go
package database

import (
	"context"
	"fmt"

	"ambulance-dispatch-api-server/internal/dispatch"
	"ambulance-dispatch-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	vehiclesCollection = "vehicles"
	requestsCollection = "emergency_requests"
)

// MongoStore implements dispatch.Store on top of MongoDB. Writes upsert
// by the public entity ID so the dispatcher can save new and existing
// documents through the same path.
type MongoStore struct {
	DB *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{DB: db}
}

func (s *MongoStore) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	cursor, err := s.DB.Collection(vehiclesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}
	return vehicles, nil
}

func (s *MongoStore) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.DB.Collection(vehiclesCollection).FindOne(ctx, bson.M{"vehicleID": vehicleID}).Decode(&v)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: vehicle %s", dispatch.ErrNotFound, vehicleID)
		}
		return nil, fmt.Errorf("retrieve vehicle: %w", err)
	}
	return &v, nil
}

func (s *MongoStore) SaveVehicle(ctx context.Context, v *models.Vehicle) error {
	filter := bson.M{"vehicleID": v.VehicleID}
	update := bson.M{"$set": bson.M{
		"vehicleID":    v.VehicleID,
		"callSign":     v.CallSign,
		"operatorID":   v.OperatorID,
		"operatorName": v.OperatorName,
		"status":       v.Status,
		"location":     v.Location,
		"equipment":    v.Equipment,
		"lastUpdate":   v.LastUpdate,
		"createdAt":    v.CreatedAt,
	}}
	_, err := s.DB.Collection(vehiclesCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save vehicle %s: %w", v.VehicleID, err)
	}
	return nil
}

func (s *MongoStore) ListRequests(ctx context.Context) ([]models.EmergencyRequest, error) {
	cursor, err := s.DB.Collection(requestsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []models.EmergencyRequest
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("decode requests: %w", err)
	}
	if requests == nil {
		requests = []models.EmergencyRequest{}
	}
	return requests, nil
}

func (s *MongoStore) GetRequest(ctx context.Context, requestID string) (*models.EmergencyRequest, error) {
	var r models.EmergencyRequest
	err := s.DB.Collection(requestsCollection).FindOne(ctx, bson.M{"requestID": requestID}).Decode(&r)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: request %s", dispatch.ErrNotFound, requestID)
		}
		return nil, fmt.Errorf("retrieve request: %w", err)
	}
	return &r, nil
}

func (s *MongoStore) SaveRequest(ctx context.Context, r *models.EmergencyRequest) error {
	filter := bson.M{"requestID": r.RequestID}
	update := bson.M{"$set": bson.M{
		"requestID":         r.RequestID,
		"patientName":       r.PatientName,
		"contactPhone":      r.ContactPhone,
		"location":          r.Location,
		"emergencyType":     r.EmergencyType,
		"severity":          r.Severity,
		"description":       r.Description,
		"status":            r.Status,
		"assignedVehicleID": r.AssignedVehicleID,
		"estimatedArrival":  r.EstimatedArrival,
		"photos":            r.Photos,
		"createdBy":         r.CreatedBy,
		"createdAt":         r.CreatedAt,
		"updatedAt":         r.UpdatedAt,
	}}
	_, err := s.DB.Collection(requestsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save request %s: %w", r.RequestID, err)
	}
	return nil
}
