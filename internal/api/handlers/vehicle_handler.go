// server/internal/api/handlers/vehicle_handler.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"ambulance-dispatch-api-server/internal/cache"
	"ambulance-dispatch-api-server/internal/dispatch"
	"ambulance-dispatch-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const vehicleSnapshotTTL = 30 * time.Second

type VehicleHandler struct {
	Dispatcher *dispatch.Dispatcher
	Cache      *cache.Client
	DB         *mongo.Database
}

type CreateVehiclePayload struct {
	CallSign   string          `json:"callSign" binding:"required"`
	OperatorID string          `json:"operatorID" binding:"required"`
	Location   models.Location `json:"location"`
	Equipment  []string        `json:"equipment"`
}

// CreateVehicle provisions a new ambulance and binds it to a driver.
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	var payload CreateVehiclePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var driver models.User
	err := h.DB.Collection("users").FindOne(context.Background(), bson.M{"userID": payload.OperatorID, "role": "driver"}).Decode(&driver)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID or role"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check driver"})
		}
		return
	}

	vehicle, err := h.Dispatcher.ProvisionVehicle(c.Request.Context(), dispatch.ProvisionVehicleInput{
		CallSign:     payload.CallSign,
		OperatorID:   driver.UserID,
		OperatorName: driver.Name,
		Location:     payload.Location,
		Equipment:    payload.Equipment,
	})
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	h.Cache.InvalidateStats(c.Request.Context())
	c.JSON(http.StatusCreated, vehicle)
}

// GetAllVehicles lists the fleet in stable vehicleID order.
func (h *VehicleHandler) GetAllVehicles(c *gin.Context) {
	vehicles, err := h.Dispatcher.ListVehicles(c.Request.Context())
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

// GetVehicleByID returns one vehicle, served from the Redis snapshot
// when fresh.
func (h *VehicleHandler) GetVehicleByID(c *gin.Context) {
	vehicleID := c.Param("id")

	var cached models.Vehicle
	if h.Cache.GetVehicleSnapshot(c.Request.Context(), vehicleID, &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	vehicle, err := h.Dispatcher.GetVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	h.Cache.SetVehicleSnapshot(c.Request.Context(), vehicleID, vehicle, vehicleSnapshotTTL)
	c.JSON(http.StatusOK, vehicle)
}

// GetMyVehicle returns the unit operated by the calling driver.
func (h *VehicleHandler) GetMyVehicle(c *gin.Context) {
	operatorID := c.GetString("user_id")

	vehicles, err := h.Dispatcher.ListVehicles(c.Request.Context())
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	for _, v := range vehicles {
		if v.OperatorID == operatorID {
			c.JSON(http.StatusOK, v)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "No vehicle assigned to this driver"})
}

type UpdateVehicleStatusPayload struct {
	Status models.VehicleStatus `json:"status" binding:"required"`
}

// UpdateVehicleStatus applies a status change. Drivers may only touch
// their own unit; admins any.
func (h *VehicleHandler) UpdateVehicleStatus(c *gin.Context) {
	var payload UpdateVehicleStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vehicleID := c.Param("id")
	if !h.authorizeVehicleAccess(c, vehicleID) {
		return
	}

	vehicle, err := h.Dispatcher.UpdateVehicleStatus(c.Request.Context(), vehicleID, payload.Status)
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	h.Cache.SetVehicleSnapshot(c.Request.Context(), vehicleID, vehicle, vehicleSnapshotTTL)
	h.Cache.InvalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, vehicle)
}

// UpdateVehicleLocation stores a position report.
func (h *VehicleHandler) UpdateVehicleLocation(c *gin.Context) {
	var loc models.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vehicleID := c.Param("id")
	if !h.authorizeVehicleAccess(c, vehicleID) {
		return
	}

	vehicle, err := h.Dispatcher.UpdateVehicleLocation(c.Request.Context(), vehicleID, loc)
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	h.Cache.SetVehicleSnapshot(c.Request.Context(), vehicleID, vehicle, vehicleSnapshotTTL)
	c.JSON(http.StatusOK, vehicle)
}

// authorizeVehicleAccess rejects drivers touching a unit they do not
// operate. Writes the error response itself and returns false on deny.
func (h *VehicleHandler) authorizeVehicleAccess(c *gin.Context, vehicleID string) bool {
	if c.GetString("user_role") == "admin" {
		return true
	}
	vehicle, err := h.Dispatcher.GetVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		respondDispatchError(c, err)
		return false
	}
	if vehicle.OperatorID != c.GetString("user_id") {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not operate this vehicle"})
		return false
	}
	return true
}
