// server/internal/dispatch/geo.go
package dispatch

import (
	"math"

	"ambulance-dispatch-api-server/internal/models"
)

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two locations in
// kilometers.
func Haversine(a, b models.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// nearestAvailable picks the available vehicle closest to target by
// haversine distance, breaking ties by vehicleID ascending. Vehicles
// without coordinates sort after all vehicles that have them, so they
// are only chosen when nothing better exists. When the target itself
// has no coordinates, fleet order (vehicleID) decides. Vehicles whose
// ID is in skip are ignored. Returns nil when no candidate exists.
func nearestAvailable(vehicles []models.Vehicle, target models.Location, skip map[string]bool) *models.Vehicle {
	var best *models.Vehicle
	var bestDist float64

	for i := range vehicles {
		v := &vehicles[i]
		if v.Status != models.VehicleAvailable || skip[v.VehicleID] {
			continue
		}

		dist := math.Inf(1)
		if target.HasCoordinates() && v.Location.HasCoordinates() {
			dist = Haversine(v.Location, target)
		}

		switch {
		case best == nil:
			best, bestDist = v, dist
		case dist < bestDist:
			best, bestDist = v, dist
		case dist == bestDist && v.VehicleID < best.VehicleID:
			best, bestDist = v, dist
		}
	}
	return best
}
