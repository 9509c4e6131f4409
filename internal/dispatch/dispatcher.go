// server/internal/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ambulance-dispatch-api-server/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config carries the dispatch tunables.
type Config struct {
	// ConfirmTimeout is how long an assigned driver has to acknowledge
	// before the assignment is reverted and the vehicle released.
	ConfirmTimeout time.Duration
	// ETAOffset is added to a request's creation time to produce its
	// estimated arrival once an assignment is confirmed.
	ETAOffset time.Duration
	// Timezone decides the calendar-day boundary for the
	// completed-today statistic.
	Timezone *time.Location
}

const (
	defaultConfirmTimeout = 30 * time.Second
	defaultETAOffset      = 8 * time.Minute
)

// pendingAssignment tracks a vehicle reserved for a request while the
// driver acknowledgment is outstanding.
type pendingAssignment struct {
	requestID string
	vehicleID string
	timer     *time.Timer
}

// Dispatcher is the single source of truth for vehicle and request
// mutations. Every mutating operation takes the dispatcher mutex, so
// the availability scan and the resulting status flip commit as one
// unit and two concurrent creates cannot double-assign a vehicle.
type Dispatcher struct {
	mu      sync.Mutex
	store   Store
	hub     Notifier
	log     *zap.SugaredLogger
	cfg     Config
	pending map[string]*pendingAssignment // keyed by requestID
	now     func() time.Time
}

func NewDispatcher(store Store, hub Notifier, log *zap.SugaredLogger, cfg Config) *Dispatcher {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if cfg.ETAOffset <= 0 {
		cfg.ETAOffset = defaultETAOffset
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{
		store:   store,
		hub:     hub,
		log:     log,
		cfg:     cfg,
		pending: make(map[string]*pendingAssignment),
		now:     time.Now,
	}
}

// Stop cancels all outstanding confirmation timers. Reserved vehicles
// stay dispatched; the next process picks them up from the store.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, pa := range d.pending {
		pa.timer.Stop()
		delete(d.pending, id)
	}
}

// ListVehicles returns the fleet snapshot in stable vehicleID order.
func (d *Dispatcher) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	vehicles, err := d.store.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].VehicleID < vehicles[j].VehicleID })
	return vehicles, nil
}

// ListRequests returns the request snapshot, newest-created first.
func (d *Dispatcher) ListRequests(ctx context.Context) ([]models.EmergencyRequest, error) {
	requests, err := d.store.ListRequests(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
	return requests, nil
}

// GetRequest returns a single request by its public ID.
func (d *Dispatcher) GetRequest(ctx context.Context, requestID string) (*models.EmergencyRequest, error) {
	return d.store.GetRequest(ctx, requestID)
}

// GetVehicle returns a single vehicle by its public ID.
func (d *Dispatcher) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	return d.store.GetVehicle(ctx, vehicleID)
}

// ProvisionVehicleInput is the admin-supplied portion of a new vehicle.
type ProvisionVehicleInput struct {
	CallSign     string
	OperatorID   string
	OperatorName string
	Location     models.Location
	Equipment    []string
}

// ProvisionVehicle adds a unit to the fleet in available status and
// immediately runs a pass, in case requests were queued waiting for
// capacity.
func (d *Dispatcher) ProvisionVehicle(ctx context.Context, in ProvisionVehicleInput) (*models.Vehicle, error) {
	if strings.TrimSpace(in.CallSign) == "" {
		return nil, fmt.Errorf("%w: callSign is required", ErrValidation)
	}
	if strings.TrimSpace(in.OperatorName) == "" {
		return nil, fmt.Errorf("%w: operatorName is required", ErrValidation)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	v := &models.Vehicle{
		VehicleID:    fmt.Sprintf("AMB-%s", strings.ToUpper(uuid.New().String()[:8])),
		CallSign:     strings.TrimSpace(in.CallSign),
		OperatorID:   strings.TrimSpace(in.OperatorID),
		OperatorName: strings.TrimSpace(in.OperatorName),
		Status:       models.VehicleAvailable,
		Location:     in.Location,
		Equipment:    in.Equipment,
		LastUpdate:   now,
		CreatedAt:    now,
	}
	if err := d.store.SaveVehicle(ctx, v); err != nil {
		return nil, err
	}
	d.log.Infow("vehicle provisioned", "vehicleID", v.VehicleID, "callSign", v.CallSign)
	d.runPassLocked(ctx)
	return v, nil
}

// CreateRequestInput is the caller-supplied portion of a new request.
type CreateRequestInput struct {
	PatientName   string
	ContactPhone  string
	Location      models.Location
	EmergencyType models.EmergencyType
	Severity      models.Severity
	Description   string
	CreatedBy     string
}

func (in *CreateRequestInput) validate() error {
	if strings.TrimSpace(in.PatientName) == "" {
		return fmt.Errorf("%w: patientName is required", ErrValidation)
	}
	if strings.TrimSpace(in.ContactPhone) == "" {
		return fmt.Errorf("%w: contactPhone is required", ErrValidation)
	}
	if strings.TrimSpace(in.Location.DisplayAddress) == "" {
		return fmt.Errorf("%w: location.displayAddress is required", ErrValidation)
	}
	if in.EmergencyType == "" {
		return fmt.Errorf("%w: emergencyType is required", ErrValidation)
	}
	if !models.ValidEmergencyType(in.EmergencyType) {
		return fmt.Errorf("%w: unknown emergencyType %q", ErrValidation, in.EmergencyType)
	}
	if in.Severity == "" {
		in.Severity = models.SeverityMedium
	}
	if !models.ValidSeverity(in.Severity) {
		return fmt.Errorf("%w: unknown severity %q", ErrValidation, in.Severity)
	}
	return nil
}

// CreateRequest validates and persists a new emergency request, then
// synchronously runs an assignment attempt for it. The returned request
// is still pending; callers observe the dispatched transition once the
// assigned driver confirms.
func (d *Dispatcher) CreateRequest(ctx context.Context, in CreateRequestInput) (*models.EmergencyRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	req := &models.EmergencyRequest{
		RequestID:     fmt.Sprintf("REQ-%s", strings.ToUpper(uuid.New().String()[:8])),
		PatientName:   strings.TrimSpace(in.PatientName),
		ContactPhone:  strings.TrimSpace(in.ContactPhone),
		Location:      in.Location,
		EmergencyType: in.EmergencyType,
		Severity:      in.Severity,
		Description:   strings.TrimSpace(in.Description),
		Status:        models.RequestPending,
		CreatedBy:     in.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := d.store.SaveRequest(ctx, req); err != nil {
		return nil, err
	}
	d.log.Infow("emergency request created",
		"requestID", req.RequestID, "emergencyType", req.EmergencyType, "severity", req.Severity)

	if _, err := d.assignLocked(ctx, req, nil); err != nil {
		// The request is already persisted; assignment failure leaves it
		// pending for a later pass rather than failing the create.
		d.log.Warnw("assignment attempt failed", "requestID", req.RequestID, "err", err)
	}
	return req, nil
}

// UpdateVehicleStatus applies a state-machine-checked status change and
// bumps lastUpdate. A vehicle entering available triggers a
// reassignment pass over pending requests.
func (d *Dispatcher) UpdateVehicleStatus(ctx context.Context, vehicleID string, status models.VehicleStatus) (*models.Vehicle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if err := checkVehicleTransition(v.Status, status); err != nil {
		return nil, err
	}

	prev := v.Status
	v.Status = status
	v.LastUpdate = d.now()
	if err := d.store.SaveVehicle(ctx, v); err != nil {
		return nil, err
	}
	d.log.Infow("vehicle status updated", "vehicleID", v.VehicleID, "from", prev, "to", status)

	// A reserved vehicle pulled out of dispatched cancels its pending
	// assignment; the request goes back into the queue.
	if prev == models.VehicleDispatched && status != models.VehicleDispatched {
		d.cancelPendingByVehicleLocked(v.VehicleID)
	}
	if status == models.VehicleAvailable && prev != models.VehicleAvailable {
		d.runPassLocked(ctx)
	}
	return v, nil
}

// UpdateVehicleLocation stores a new position report for the vehicle.
func (d *Dispatcher) UpdateVehicleLocation(ctx context.Context, vehicleID string, loc models.Location) (*models.Vehicle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	v.Location = loc
	v.LastUpdate = d.now()
	if err := d.store.SaveVehicle(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateRequestStatus applies a state-machine-checked lifecycle change.
// pending -> dispatched is reserved for ConfirmAssignment. Completing a
// request releases its vehicle and triggers a reassignment pass.
func (d *Dispatcher) UpdateRequestStatus(ctx context.Context, requestID string, status models.RequestStatus) (*models.EmergencyRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := checkRequestTransition(req.Status, status); err != nil {
		return nil, err
	}
	if status == models.RequestDispatched && req.AssignedVehicleID == "" {
		return nil, fmt.Errorf("%w: request %s has no assignment to commit", ErrConflict, requestID)
	}

	req.Status = status
	req.UpdatedAt = d.now()
	if err := d.store.SaveRequest(ctx, req); err != nil {
		return nil, err
	}
	d.log.Infow("request status updated", "requestID", req.RequestID, "status", status)

	if status == models.RequestCompleted && req.AssignedVehicleID != "" {
		d.releaseVehicleLocked(ctx, req.AssignedVehicleID)
		d.runPassLocked(ctx)
	}
	return req, nil
}

// ConfirmAssignment commits an in-flight assignment: the driver has
// acknowledged, so the request binds to the vehicle, moves to
// dispatched and receives its estimated arrival. operatorID is the
// confirming user; pass empty to skip the operator check (admin).
func (d *Dispatcher) ConfirmAssignment(ctx context.Context, requestID, operatorID string) (*models.EmergencyRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pa, ok := d.pending[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: no assignment awaiting confirmation for %s", ErrConflict, requestID)
	}

	req, err := d.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	v, err := d.store.GetVehicle(ctx, pa.vehicleID)
	if err != nil {
		return nil, err
	}
	if operatorID != "" && v.OperatorID != operatorID {
		return nil, fmt.Errorf("%w: vehicle %s is not operated by the caller", ErrConflict, v.VehicleID)
	}
	if v.Status != models.VehicleDispatched {
		// The vehicle slipped away between assignment and confirmation.
		pa.timer.Stop()
		delete(d.pending, requestID)
		return nil, fmt.Errorf("%w: vehicle %s no longer dispatched", ErrConflict, v.VehicleID)
	}
	if err := checkRequestTransition(req.Status, models.RequestDispatched); err != nil {
		return nil, err
	}

	pa.timer.Stop()
	delete(d.pending, requestID)

	eta := req.CreatedAt.Add(d.cfg.ETAOffset)
	req.AssignedVehicleID = v.VehicleID
	req.Status = models.RequestDispatched
	req.EstimatedArrival = &eta
	req.UpdatedAt = d.now()
	if err := d.store.SaveRequest(ctx, req); err != nil {
		return nil, err
	}
	d.log.Infow("assignment confirmed",
		"requestID", req.RequestID, "vehicleID", v.VehicleID, "estimatedArrival", eta)
	return req, nil
}

// AttachPhoto appends an uploaded incident photo reference to a request.
func (d *Dispatcher) AttachPhoto(ctx context.Context, requestID string, p models.MediaPointer) (*models.EmergencyRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	req, err := d.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	req.Photos = append(req.Photos, p)
	req.UpdatedAt = d.now()
	if err := d.store.SaveRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// RunAssignmentPass walks pending requests in priority order and
// assigns available vehicles. Returns the number of assignments made.
func (d *Dispatcher) RunAssignmentPass(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runPassLocked(ctx), nil
}

// Stats is the derived fleet overview.
type Stats struct {
	TotalVehicles     int `json:"totalVehicles"`
	AvailableVehicles int `json:"availableVehicles"`
	ActiveRequests    int `json:"activeRequests"`
	CompletedToday    int `json:"completedToday"`
}

// ComputeStats derives the fleet statistics. completedToday counts
// requests whose completion falls on the current calendar day in the
// configured timezone.
func (d *Dispatcher) ComputeStats(ctx context.Context) (Stats, error) {
	var st Stats

	vehicles, err := d.store.ListVehicles(ctx)
	if err != nil {
		return st, err
	}
	requests, err := d.store.ListRequests(ctx)
	if err != nil {
		return st, err
	}

	st.TotalVehicles = len(vehicles)
	for _, v := range vehicles {
		if v.Status == models.VehicleAvailable {
			st.AvailableVehicles++
		}
	}

	dayStart := startOfDay(d.now(), d.cfg.Timezone)
	for _, r := range requests {
		switch r.Status {
		case models.RequestPending, models.RequestDispatched, models.RequestEnRoute:
			st.ActiveRequests++
		case models.RequestCompleted:
			if !r.UpdatedAt.Before(dayStart) {
				st.CompletedToday++
			}
		}
	}
	return st, nil
}

func startOfDay(t time.Time, tz *time.Location) time.Time {
	y, m, day := t.In(tz).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, tz)
}

// --- internal, caller holds d.mu ---

// assignLocked reserves the nearest available vehicle for req and arms
// the confirmation deadline. Returns false when no vehicle qualifies.
func (d *Dispatcher) assignLocked(ctx context.Context, req *models.EmergencyRequest, skip map[string]bool) (bool, error) {
	vehicles, err := d.store.ListVehicles(ctx)
	if err != nil {
		return false, err
	}

	v := nearestAvailable(vehicles, req.Location, skip)
	if v == nil {
		d.log.Infow("no vehicle available, request stays pending", "requestID", req.RequestID)
		return false, nil
	}

	if err := checkVehicleTransition(v.Status, models.VehicleDispatched); err != nil {
		return false, err
	}
	v.Status = models.VehicleDispatched
	v.LastUpdate = d.now()
	if err := d.store.SaveVehicle(ctx, v); err != nil {
		return false, err
	}

	requestID := req.RequestID
	pa := &pendingAssignment{requestID: requestID, vehicleID: v.VehicleID}
	pa.timer = time.AfterFunc(d.cfg.ConfirmTimeout, func() { d.expireAssignment(requestID) })
	d.pending[requestID] = pa

	d.log.Infow("vehicle reserved, awaiting driver confirmation",
		"requestID", requestID, "vehicleID", v.VehicleID, "deadline", d.cfg.ConfirmTimeout)
	d.notifyDriver(v, req)
	return true, nil
}

// expireAssignment fires when a driver never confirmed: the vehicle is
// released and the request rejoins the queue, preferring another unit.
func (d *Dispatcher) expireAssignment(requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pa, ok := d.pending[requestID]
	if !ok {
		return // confirmed or cancelled just before the timer fired
	}
	delete(d.pending, requestID)

	ctx := context.Background()
	d.log.Warnw("assignment confirmation timed out", "requestID", requestID, "vehicleID", pa.vehicleID)
	d.releaseVehicleLocked(ctx, pa.vehicleID)

	req, err := d.store.GetRequest(ctx, requestID)
	if err != nil {
		d.log.Errorw("reassignment lookup failed", "requestID", requestID, "err", err)
		return
	}
	if req.Status != models.RequestPending {
		return
	}
	// Retry immediately but not with the unit that just went silent.
	if _, err := d.assignLocked(ctx, req, map[string]bool{pa.vehicleID: true}); err != nil {
		d.log.Errorw("reassignment attempt failed", "requestID", requestID, "err", err)
	}
}

// releaseVehicleLocked returns a dispatched vehicle to available.
func (d *Dispatcher) releaseVehicleLocked(ctx context.Context, vehicleID string) {
	v, err := d.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		d.log.Errorw("vehicle release lookup failed", "vehicleID", vehicleID, "err", err)
		return
	}
	if v.Status != models.VehicleDispatched {
		return
	}
	v.Status = models.VehicleAvailable
	v.LastUpdate = d.now()
	if err := d.store.SaveVehicle(ctx, v); err != nil {
		d.log.Errorw("vehicle release failed", "vehicleID", vehicleID, "err", err)
		return
	}
	d.log.Infow("vehicle released", "vehicleID", vehicleID)
}

// cancelPendingByVehicleLocked drops the in-flight assignment holding
// the given vehicle, if any.
func (d *Dispatcher) cancelPendingByVehicleLocked(vehicleID string) {
	for id, pa := range d.pending {
		if pa.vehicleID == vehicleID {
			pa.timer.Stop()
			delete(d.pending, id)
			d.log.Infow("pending assignment cancelled", "requestID", id, "vehicleID", vehicleID)
			return
		}
	}
}

// runPassLocked assigns vehicles to queued requests, most urgent first,
// oldest first within the same severity.
func (d *Dispatcher) runPassLocked(ctx context.Context) int {
	requests, err := d.store.ListRequests(ctx)
	if err != nil {
		d.log.Errorw("assignment pass aborted", "err", err)
		return 0
	}

	var queue []models.EmergencyRequest
	for _, r := range requests {
		if r.Status != models.RequestPending {
			continue
		}
		if _, inFlight := d.pending[r.RequestID]; inFlight {
			continue
		}
		queue = append(queue, r)
	}
	sort.Slice(queue, func(i, j int) bool {
		ri, rj := models.SeverityRank(queue[i].Severity), models.SeverityRank(queue[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return queue[i].CreatedAt.Before(queue[j].CreatedAt)
	})

	assigned := 0
	for i := range queue {
		ok, err := d.assignLocked(ctx, &queue[i], nil)
		if err != nil {
			d.log.Errorw("assignment pass step failed", "requestID", queue[i].RequestID, "err", err)
			continue
		}
		if !ok {
			break // fleet exhausted
		}
		assigned++
	}
	return assigned
}

// assignedEvent is the payload pushed to the reserved vehicle's driver.
type assignedEvent struct {
	Type          string               `json:"type"`
	RequestID     string               `json:"requestID"`
	VehicleID     string               `json:"vehicleID"`
	EmergencyType models.EmergencyType `json:"emergencyType"`
	Severity      models.Severity      `json:"severity"`
	Location      models.Location      `json:"location"`
}

func (d *Dispatcher) notifyDriver(v *models.Vehicle, req *models.EmergencyRequest) {
	if d.hub == nil || v.OperatorID == "" {
		return
	}
	msg, err := json.Marshal(assignedEvent{
		Type:          "dispatch.assigned",
		RequestID:     req.RequestID,
		VehicleID:     v.VehicleID,
		EmergencyType: req.EmergencyType,
		Severity:      req.Severity,
		Location:      req.Location,
	})
	if err != nil {
		return
	}
	if err := d.hub.Send(v.OperatorID, msg); err != nil {
		d.log.Warnw("driver notification failed", "operatorID", v.OperatorID, "err", err)
	}
}
