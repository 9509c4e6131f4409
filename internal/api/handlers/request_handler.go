// server/internal/api/handlers/request_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"ambulance-dispatch-api-server/internal/cache"
	"ambulance-dispatch-api-server/internal/dispatch"
	"ambulance-dispatch-api-server/internal/models"
	"ambulance-dispatch-api-server/internal/s3"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RequestHandler struct {
	Dispatcher *dispatch.Dispatcher
	S3Uploader *s3.Uploader
	Cache      *cache.Client
}

type CreateRequestPayload struct {
	PatientName   string               `json:"patientName" binding:"required"`
	ContactPhone  string               `json:"contactPhone" binding:"required"`
	Location      models.Location      `json:"location" binding:"required"`
	EmergencyType models.EmergencyType `json:"emergencyType" binding:"required"`
	Severity      models.Severity      `json:"severity"`
	Description   string               `json:"description"`
}

// CreateRequest submits a new emergency. The response carries the
// request in pending state; the dispatched transition lands once the
// assigned driver confirms.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var payload CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Dispatcher.CreateRequest(c.Request.Context(), dispatch.CreateRequestInput{
		PatientName:   payload.PatientName,
		ContactPhone:  payload.ContactPhone,
		Location:      payload.Location,
		EmergencyType: payload.EmergencyType,
		Severity:      payload.Severity,
		Description:   payload.Description,
		CreatedBy:     c.GetString("user_id"),
	})
	if err != nil {
		respondDispatchError(c, err)
		return
	}

	h.Cache.InvalidateStats(c.Request.Context())
	c.JSON(http.StatusCreated, req)
}

// GetAllRequests lists emergency requests, newest first, optionally
// filtered by status.
func (h *RequestHandler) GetAllRequests(c *gin.Context) {
	requests, err := h.Dispatcher.ListRequests(c.Request.Context())
	if err != nil {
		respondDispatchError(c, err)
		return
	}

	if status := c.Query("status"); status != "" {
		filtered := make([]models.EmergencyRequest, 0, len(requests))
		for _, r := range requests {
			if string(r.Status) == status {
				filtered = append(filtered, r)
			}
		}
		requests = filtered
	}
	c.JSON(http.StatusOK, requests)
}

// GetRequestByID returns a single request.
func (h *RequestHandler) GetRequestByID(c *gin.Context) {
	req, err := h.Dispatcher.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type UpdateRequestStatusPayload struct {
	Status models.RequestStatus `json:"status" binding:"required"`
}

// UpdateRequestStatus advances a request through its lifecycle.
func (h *RequestHandler) UpdateRequestStatus(c *gin.Context) {
	var payload UpdateRequestStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.Dispatcher.UpdateRequestStatus(c.Request.Context(), c.Param("id"), payload.Status)
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	h.Cache.InvalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, req)
}

// ConfirmAssignment is the driver acknowledgment that commits an
// in-flight assignment. Admins may confirm on a driver's behalf.
func (h *RequestHandler) ConfirmAssignment(c *gin.Context) {
	operatorID := c.GetString("user_id")
	if c.GetString("user_role") == "admin" {
		operatorID = "" // skip the operator check
	}

	req, err := h.Dispatcher.ConfirmAssignment(c.Request.Context(), c.Param("id"), operatorID)
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	h.Cache.InvalidateStats(c.Request.Context())
	c.JSON(http.StatusOK, req)
}

// UploadIncidentPhoto stores a crew-submitted photo on S3 and attaches
// its reference to the request. Multipart field name: "photo".
func (h *RequestHandler) UploadIncidentPhoto(c *gin.Context) {
	if h.S3Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Media storage is not configured"})
		return
	}

	requestID := c.Param("id")
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	photoID := strings.ToUpper(uuid.New().String()[:8])
	objectKey := fmt.Sprintf("requests/%s/photos/%s-%s", requestID, photoID, fileHeader.Filename)
	contentType := fileHeader.Header.Get("Content-Type")

	url, err := h.S3Uploader.UploadFile(c.Request.Context(), file, objectKey, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
		return
	}

	req, err := h.Dispatcher.AttachPhoto(c.Request.Context(), requestID, models.MediaPointer{
		ID:       photoID,
		URL:      url,
		FileName: fileHeader.Filename,
		FileType: contentType,
	})
	if err != nil {
		respondDispatchError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
