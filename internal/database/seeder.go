// server/internal/database/seeder.go
package database

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"ambulance-dispatch-api-server/config"
	"ambulance-dispatch-api-server/internal/auth"
	"ambulance-dispatch-api-server/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SeedAdmin provisions the default admin account unless one exists.
func SeedAdmin(db *mongo.Database, cfg config.Config) error {
	userCollection := db.Collection("users")

	count, err := userCollection.CountDocuments(context.Background(), bson.M{"email": cfg.Seed.AdminEmail})
	if err != nil {
		return err
	}
	if count > 0 {
		log.Println("Admin already exists. Seeding skipped.")
		return nil
	}

	log.Println("Admin not found. Seeding...")
	hashedPassword, err := auth.HashPassword(cfg.Seed.AdminPassword)
	if err != nil {
		return err
	}

	admin := models.User{
		UserID:    fmt.Sprintf("USR-%s", strings.ToUpper(uuid.New().String()[:8])),
		Email:     cfg.Seed.AdminEmail,
		Name:      "Dispatch Admin",
		Password:  hashedPassword,
		Role:      "admin",
		Status:    "active",
		CreatedAt: time.Now(),
	}
	if _, err := userCollection.InsertOne(context.Background(), &admin); err != nil {
		return err
	}
	log.Println("Admin seeded successfully.")
	return nil
}

// SeedFleet provisions the demo fleet (and its driver accounts) when the
// vehicles collection is empty.
func SeedFleet(db *mongo.Database) error {
	vehicleCollection := db.Collection("vehicles")

	count, err := vehicleCollection.CountDocuments(context.Background(), bson.M{})
	if err != nil {
		return err
	}
	if count > 0 {
		log.Println("Fleet already provisioned. Seeding skipped.")
		return nil
	}

	log.Println("Empty fleet. Seeding demo vehicles...")
	now := time.Now()
	seeds := []struct {
		callSign  string
		operator  string
		status    models.VehicleStatus
		location  models.Location
		equipment []string
	}{
		{
			callSign:  "AMB-001",
			operator:  "John Smith",
			status:    models.VehicleAvailable,
			location:  models.Location{Latitude: 40.7128, Longitude: -74.0060, DisplayAddress: "Manhattan, NY"},
			equipment: []string{"AED", "Oxygen", "Stretcher", "First Aid"},
		},
		{
			callSign:  "AMB-002",
			operator:  "Sarah Johnson",
			status:    models.VehicleBusy,
			location:  models.Location{Latitude: 40.7589, Longitude: -73.9851, DisplayAddress: "Central Park, NY"},
			equipment: []string{"AED", "Oxygen", "Stretcher", "Ventilator"},
		},
		{
			callSign:  "AMB-003",
			operator:  "Mike Davis",
			status:    models.VehicleAvailable,
			location:  models.Location{Latitude: 40.6892, Longitude: -74.0445, DisplayAddress: "Brooklyn, NY"},
			equipment: []string{"AED", "Oxygen", "Stretcher", "Cardiac Monitor"},
		},
	}

	userCollection := db.Collection("users")
	for _, s := range seeds {
		driverID := fmt.Sprintf("USR-%s", strings.ToUpper(uuid.New().String()[:8]))
		hashedPassword, err := auth.HashPassword("driverpassword")
		if err != nil {
			return err
		}
		driver := models.User{
			UserID:    driverID,
			Email:     strings.ToLower(strings.ReplaceAll(s.operator, " ", ".")) + "@dispatch.example.com",
			Name:      s.operator,
			Password:  hashedPassword,
			Role:      "driver",
			Status:    "active",
			CreatedAt: now,
		}
		if _, err := userCollection.InsertOne(context.Background(), &driver); err != nil {
			return err
		}

		vehicle := models.Vehicle{
			VehicleID:    fmt.Sprintf("AMB-%s", strings.ToUpper(uuid.New().String()[:8])),
			CallSign:     s.callSign,
			OperatorID:   driverID,
			OperatorName: s.operator,
			Status:       s.status,
			Location:     s.location,
			Equipment:    s.equipment,
			LastUpdate:   now,
			CreatedAt:    now,
		}
		if _, err := vehicleCollection.InsertOne(context.Background(), &vehicle); err != nil {
			return err
		}
	}
	log.Println("Demo fleet seeded successfully.")
	return nil
}
