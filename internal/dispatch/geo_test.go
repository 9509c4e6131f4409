// server/internal/dispatch/geo_test.go
package dispatch

import (
	"math"
	"testing"

	"ambulance-dispatch-api-server/internal/models"
)

func TestHaversine(t *testing.T) {
	manhattan := models.Location{Latitude: 40.7128, Longitude: -74.0060}
	centralPark := models.Location{Latitude: 40.7589, Longitude: -73.9851}

	if d := Haversine(manhattan, manhattan); d != 0 {
		t.Errorf("distance to self = %f, want 0", d)
	}

	d := Haversine(manhattan, centralPark)
	// Roughly 5.3 km between the two points.
	if d < 5 || d > 6 {
		t.Errorf("Manhattan -> Central Park = %f km, want ~5.3", d)
	}
	if back := Haversine(centralPark, manhattan); math.Abs(back-d) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", d, back)
	}
}

func TestNearestAvailable(t *testing.T) {
	target := models.Location{Latitude: 40.7128, Longitude: -74.0060, DisplayAddress: "Manhattan, NY"}
	fleet := []models.Vehicle{
		{VehicleID: "AMB-A", Status: models.VehicleBusy, Location: target},
		{VehicleID: "AMB-B", Status: models.VehicleAvailable, Location: models.Location{Latitude: 40.7589, Longitude: -73.9851}},
		{VehicleID: "AMB-C", Status: models.VehicleAvailable, Location: models.Location{Latitude: 40.7130, Longitude: -74.0062}},
	}

	got := nearestAvailable(fleet, target, nil)
	if got == nil || got.VehicleID != "AMB-C" {
		t.Fatalf("expected AMB-C (closest available), got %+v", got)
	}

	t.Run("skip set excludes the closest unit", func(t *testing.T) {
		got := nearestAvailable(fleet, target, map[string]bool{"AMB-C": true})
		if got == nil || got.VehicleID != "AMB-B" {
			t.Fatalf("expected AMB-B, got %+v", got)
		}
	})

	t.Run("ties break by vehicleID", func(t *testing.T) {
		same := models.Location{Latitude: 40.70, Longitude: -74.00}
		fleet := []models.Vehicle{
			{VehicleID: "AMB-2", Status: models.VehicleAvailable, Location: same},
			{VehicleID: "AMB-1", Status: models.VehicleAvailable, Location: same},
		}
		got := nearestAvailable(fleet, target, nil)
		if got == nil || got.VehicleID != "AMB-1" {
			t.Fatalf("expected AMB-1 on tie, got %+v", got)
		}
	})

	t.Run("units without coordinates sort last", func(t *testing.T) {
		fleet := []models.Vehicle{
			{VehicleID: "AMB-1", Status: models.VehicleAvailable},
			{VehicleID: "AMB-2", Status: models.VehicleAvailable, Location: models.Location{Latitude: 41.0, Longitude: -75.0}},
		}
		got := nearestAvailable(fleet, target, nil)
		if got == nil || got.VehicleID != "AMB-2" {
			t.Fatalf("expected AMB-2 (has coordinates), got %+v", got)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		fleet := []models.Vehicle{{VehicleID: "AMB-1", Status: models.VehicleOffline}}
		if got := nearestAvailable(fleet, target, nil); got != nil {
			t.Fatalf("expected nil, got %+v", got)
		}
	})
}
