// server/internal/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ambulance-dispatch-api-server/internal/models"
)

// fakeStore is an in-memory Store. It copies on read and write so tests
// observe only persisted state, mirroring a real database round trip.
type fakeStore struct {
	mu       sync.Mutex
	vehicles map[string]models.Vehicle
	requests map[string]models.EmergencyRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		vehicles: make(map[string]models.Vehicle),
		requests: make(map[string]models.EmergencyRequest),
	}
}

func (f *fakeStore) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Vehicle, 0, len(f.vehicles))
	for _, v := range f.vehicles {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) GetVehicle(ctx context.Context, vehicleID string) (*models.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[vehicleID]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %s", ErrNotFound, vehicleID)
	}
	return &v, nil
}

func (f *fakeStore) SaveVehicle(ctx context.Context, v *models.Vehicle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vehicles[v.VehicleID] = *v
	return nil
}

func (f *fakeStore) ListRequests(ctx context.Context) ([]models.EmergencyRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.EmergencyRequest, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) GetRequest(ctx context.Context, requestID string) (*models.EmergencyRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	return &r, nil
}

func (f *fakeStore) SaveRequest(ctx context.Context, r *models.EmergencyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[r.RequestID] = *r
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent map[string][][]byte
}

func (f *fakeNotifier) Send(userID string, message []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = make(map[string][][]byte)
	}
	f.sent[userID] = append(f.sent[userID], message)
	return nil
}

func seedVehicle(t *testing.T, store *fakeStore, id string, status models.VehicleStatus, lat, lng float64, operatorID string) {
	t.Helper()
	v := models.Vehicle{
		VehicleID:    id,
		CallSign:     id,
		OperatorID:   operatorID,
		OperatorName: "Operator " + id,
		Status:       status,
		Location:     models.Location{Latitude: lat, Longitude: lng, DisplayAddress: "somewhere"},
		Equipment:    []string{"AED", "Oxygen"},
	}
	if err := store.SaveVehicle(context.Background(), &v); err != nil {
		t.Fatalf("seed vehicle %s: %v", id, err)
	}
}

func validInput() CreateRequestInput {
	return CreateRequestInput{
		PatientName:   "Jane Doe",
		ContactPhone:  "+1-555-0100",
		Location:      models.Location{Latitude: 40.7128, Longitude: -74.0060, DisplayAddress: "Manhattan, NY"},
		EmergencyType: models.EmergencyCardiac,
		Severity:      models.SeverityHigh,
	}
}

func newTestDispatcher(store *fakeStore, hub Notifier, cfg Config) *Dispatcher {
	return NewDispatcher(store, hub, nil, cfg)
}

func TestCreateRequestValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateRequestInput)
	}{
		{"missing patient name", func(in *CreateRequestInput) { in.PatientName = "  " }},
		{"missing contact phone", func(in *CreateRequestInput) { in.ContactPhone = "" }},
		{"missing address", func(in *CreateRequestInput) { in.Location.DisplayAddress = "" }},
		{"missing emergency type", func(in *CreateRequestInput) { in.EmergencyType = "" }},
		{"unknown emergency type", func(in *CreateRequestInput) { in.EmergencyType = "sprain" }},
		{"unknown severity", func(in *CreateRequestInput) { in.Severity = "extreme" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := newFakeStore()
			d := newTestDispatcher(store, nil, Config{})
			in := validInput()
			c.mutate(&in)
			_, err := d.CreateRequest(context.Background(), in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if n := len(store.requests); n != 0 {
				t.Fatalf("expected nothing persisted, found %d requests", n)
			}
		})
	}
}

func TestCreateRequestAssignsNearestAndConfirmSetsETA(t *testing.T) {
	store := newFakeStore()
	hub := &fakeNotifier{}
	// AMB-001 in Manhattan (closest), AMB-003 in Brooklyn, AMB-002 busy.
	seedVehicle(t, store, "AMB-001", models.VehicleAvailable, 40.7128, -74.0060, "driver-1")
	seedVehicle(t, store, "AMB-002", models.VehicleBusy, 40.7589, -73.9851, "driver-2")
	seedVehicle(t, store, "AMB-003", models.VehicleAvailable, 40.6892, -74.0445, "driver-3")

	d := newTestDispatcher(store, hub, Config{})
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return created }
	defer d.Stop()

	req, err := d.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if req.Status != models.RequestPending {
		t.Fatalf("new request status = %s, want pending", req.Status)
	}
	if req.AssignedVehicleID != "" {
		t.Fatalf("request must stay unassigned until confirmation, got %q", req.AssignedVehicleID)
	}

	v1, _ := store.GetVehicle(context.Background(), "AMB-001")
	if v1.Status != models.VehicleDispatched {
		t.Fatalf("nearest vehicle status = %s, want dispatched", v1.Status)
	}
	v3, _ := store.GetVehicle(context.Background(), "AMB-003")
	if v3.Status != models.VehicleAvailable {
		t.Fatalf("exactly one vehicle must be dispatched; AMB-003 is %s", v3.Status)
	}
	if len(hub.sent["driver-1"]) != 1 {
		t.Fatalf("expected one notification to driver-1, got %d", len(hub.sent["driver-1"]))
	}

	got, err := d.ConfirmAssignment(context.Background(), req.RequestID, "driver-1")
	if err != nil {
		t.Fatalf("ConfirmAssignment: %v", err)
	}
	if got.Status != models.RequestDispatched {
		t.Fatalf("confirmed request status = %s, want dispatched", got.Status)
	}
	if got.AssignedVehicleID != "AMB-001" {
		t.Fatalf("assignedVehicleID = %q, want AMB-001", got.AssignedVehicleID)
	}
	wantETA := created.Add(8 * time.Minute)
	if got.EstimatedArrival == nil || !got.EstimatedArrival.Equal(wantETA) {
		t.Fatalf("estimatedArrival = %v, want %v", got.EstimatedArrival, wantETA)
	}
}

func TestCreateRequestNoVehicleStaysPending(t *testing.T) {
	store := newFakeStore()
	seedVehicle(t, store, "AMB-001", models.VehicleBusy, 40.7128, -74.0060, "driver-1")
	seedVehicle(t, store, "AMB-002", models.VehicleBusy, 40.7589, -73.9851, "driver-2")

	d := newTestDispatcher(store, nil, Config{})
	defer d.Stop()

	req, err := d.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if req.Status != models.RequestPending || req.AssignedVehicleID != "" {
		t.Fatalf("request should remain pending and unassigned, got %s / %q", req.Status, req.AssignedVehicleID)
	}
	if _, err := d.ConfirmAssignment(context.Background(), req.RequestID, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("confirm with nothing in flight: expected ErrConflict, got %v", err)
	}

	// A vehicle freeing up triggers the reassignment pass.
	if _, err := d.UpdateVehicleStatus(context.Background(), "AMB-001", models.VehicleAvailable); err != nil {
		t.Fatalf("UpdateVehicleStatus: %v", err)
	}
	v, _ := store.GetVehicle(context.Background(), "AMB-001")
	if v.Status != models.VehicleDispatched {
		t.Fatalf("freed vehicle should be re-reserved, status = %s", v.Status)
	}
	if _, err := d.ConfirmAssignment(context.Background(), req.RequestID, "driver-1"); err != nil {
		t.Fatalf("ConfirmAssignment after reassignment: %v", err)
	}
}

func TestConfirmationTimeoutRevertsVehicle(t *testing.T) {
	store := newFakeStore()
	seedVehicle(t, store, "AMB-001", models.VehicleAvailable, 40.7128, -74.0060, "driver-1")

	d := newTestDispatcher(store, nil, Config{ConfirmTimeout: 30 * time.Millisecond})
	defer d.Stop()

	req, err := d.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		v, _ := store.GetVehicle(context.Background(), "AMB-001")
		if v.Status == models.VehicleAvailable {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("vehicle never reverted to available, status = %s", v.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	got, _ := store.GetRequest(context.Background(), req.RequestID)
	if got.Status != models.RequestPending || got.AssignedVehicleID != "" {
		t.Fatalf("request after timeout = %s / %q, want pending / unassigned", got.Status, got.AssignedVehicleID)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	d := newTestDispatcher(newFakeStore(), nil, Config{})
	defer d.Stop()

	if _, err := d.UpdateVehicleStatus(context.Background(), "AMB-404", models.VehicleAvailable); !errors.Is(err, ErrNotFound) {
		t.Fatalf("vehicle: expected ErrNotFound, got %v", err)
	}
	if _, err := d.UpdateRequestStatus(context.Background(), "REQ-404", models.RequestCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("request: expected ErrNotFound, got %v", err)
	}
}

func TestIllegalTransitionPersistsNothing(t *testing.T) {
	store := newFakeStore()
	seedVehicle(t, store, "AMB-001", models.VehicleBusy, 0, 0, "driver-1")
	d := newTestDispatcher(store, nil, Config{})
	defer d.Stop()

	before, _ := store.GetVehicle(context.Background(), "AMB-001")
	_, err := d.UpdateVehicleStatus(context.Background(), "AMB-001", models.VehicleDispatched)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	after, _ := store.GetVehicle(context.Background(), "AMB-001")
	if after.Status != before.Status || !after.LastUpdate.Equal(before.LastUpdate) {
		t.Fatalf("rejected transition must not persist changes: %+v", after)
	}
}

func TestIdempotentVehicleStatusUpdate(t *testing.T) {
	store := newFakeStore()
	seedVehicle(t, store, "AMB-001", models.VehicleAvailable, 0, 0, "driver-1")
	d := newTestDispatcher(store, nil, Config{})
	defer d.Stop()

	first, err := d.UpdateVehicleStatus(context.Background(), "AMB-001", models.VehicleAvailable)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	second, err := d.UpdateVehicleStatus(context.Background(), "AMB-001", models.VehicleAvailable)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if first.Status != second.Status {
		t.Fatalf("repeated update changed status: %s vs %s", first.Status, second.Status)
	}
}

func TestCompletionReleasesVehicleAndReassigns(t *testing.T) {
	store := newFakeStore()
	seedVehicle(t, store, "AMB-001", models.VehicleAvailable, 40.7128, -74.0060, "driver-1")
	d := newTestDispatcher(store, nil, Config{})
	defer d.Stop()

	ctx := context.Background()
	first, err := d.CreateRequest(ctx, validInput())
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := d.ConfirmAssignment(ctx, first.RequestID, "driver-1"); err != nil {
		t.Fatalf("confirm first: %v", err)
	}

	// Second request queues behind the single occupied unit.
	in := validInput()
	in.Severity = models.SeverityCritical
	second, err := d.CreateRequest(ctx, in)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if got, _ := store.GetRequest(ctx, second.RequestID); got.Status != models.RequestPending {
		t.Fatalf("second request should queue, status = %s", got.Status)
	}

	// Walk the first request to completion.
	for _, status := range []models.RequestStatus{models.RequestEnRoute, models.RequestArrived, models.RequestCompleted} {
		if _, err := d.UpdateRequestStatus(ctx, first.RequestID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	// Completion released the vehicle and the pass re-reserved it.
	v, _ := store.GetVehicle(ctx, "AMB-001")
	if v.Status != models.VehicleDispatched {
		t.Fatalf("vehicle after completion = %s, want dispatched for queued request", v.Status)
	}
	got, err := d.ConfirmAssignment(ctx, second.RequestID, "driver-1")
	if err != nil {
		t.Fatalf("confirm second: %v", err)
	}
	if got.AssignedVehicleID != "AMB-001" {
		t.Fatalf("second request bound to %q, want AMB-001", got.AssignedVehicleID)
	}
}

func TestAssignmentPassPrefersSeverity(t *testing.T) {
	store := newFakeStore()
	d := newTestDispatcher(store, nil, Config{})
	defer d.Stop()
	ctx := context.Background()

	// Queue two requests with no fleet, then bring one vehicle online.
	older := validInput()
	older.Severity = models.SeverityMedium
	reqOlder, err := d.CreateRequest(ctx, older)
	if err != nil {
		t.Fatalf("create older: %v", err)
	}
	newer := validInput()
	newer.Severity = models.SeverityCritical
	reqNewer, err := d.CreateRequest(ctx, newer)
	if err != nil {
		t.Fatalf("create newer: %v", err)
	}

	seedVehicle(t, store, "AMB-001", models.VehicleAvailable, 40.7128, -74.0060, "driver-1")
	n, err := d.RunAssignmentPass(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RunAssignmentPass = %d, %v; want 1, nil", n, err)
	}

	// The critical request wins the only unit despite being newer.
	if _, err := d.ConfirmAssignment(ctx, reqNewer.RequestID, "driver-1"); err != nil {
		t.Fatalf("critical request was not the one assigned: %v", err)
	}
	if got, _ := store.GetRequest(ctx, reqOlder.RequestID); got.Status != models.RequestPending {
		t.Fatalf("medium request should still be pending, got %s", got.Status)
	}
}

func TestComputeStats(t *testing.T) {
	store := newFakeStore()
	seedVehicle(t, store, "AMB-001", models.VehicleAvailable, 0, 0, "d1")
	seedVehicle(t, store, "AMB-002", models.VehicleDispatched, 0, 0, "d2")
	seedVehicle(t, store, "AMB-003", models.VehicleOffline, 0, 0, "d3")

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()
	save := func(id string, status models.RequestStatus, updated time.Time) {
		r := models.EmergencyRequest{RequestID: id, Status: status, UpdatedAt: updated}
		if err := store.SaveRequest(ctx, &r); err != nil {
			t.Fatalf("seed request %s: %v", id, err)
		}
	}
	save("REQ-1", models.RequestPending, now)
	save("REQ-2", models.RequestEnRoute, now)
	save("REQ-3", models.RequestArrived, now) // not counted as active
	save("REQ-4", models.RequestCompleted, now.Add(-2*time.Hour))   // today
	save("REQ-5", models.RequestCompleted, now.Add(-30*time.Hour))  // yesterday

	d := newTestDispatcher(store, nil, Config{})
	d.now = func() time.Time { return now }
	defer d.Stop()

	st, err := d.ComputeStats(ctx)
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}
	want := Stats{TotalVehicles: 3, AvailableVehicles: 1, ActiveRequests: 2, CompletedToday: 1}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

func TestListOrdering(t *testing.T) {
	store := newFakeStore()
	seedVehicle(t, store, "AMB-002", models.VehicleAvailable, 0, 0, "d2")
	seedVehicle(t, store, "AMB-001", models.VehicleAvailable, 0, 0, "d1")

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for i, id := range []string{"REQ-OLD", "REQ-NEW"} {
		r := models.EmergencyRequest{RequestID: id, Status: models.RequestPending, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.SaveRequest(ctx, &r); err != nil {
			t.Fatalf("seed request: %v", err)
		}
	}

	d := newTestDispatcher(store, nil, Config{})
	defer d.Stop()

	vehicles, err := d.ListVehicles(ctx)
	if err != nil {
		t.Fatalf("ListVehicles: %v", err)
	}
	if vehicles[0].VehicleID != "AMB-001" || vehicles[1].VehicleID != "AMB-002" {
		t.Fatalf("vehicles not in vehicleID order: %s, %s", vehicles[0].VehicleID, vehicles[1].VehicleID)
	}

	requests, err := d.ListRequests(ctx)
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if requests[0].RequestID != "REQ-NEW" {
		t.Fatalf("requests not newest-first: %s first", requests[0].RequestID)
	}
}

func TestConcurrentCreatesNeverDoubleAssign(t *testing.T) {
	store := newFakeStore()
	seedVehicle(t, store, "AMB-001", models.VehicleAvailable, 40.7128, -74.0060, "driver-1")
	d := newTestDispatcher(store, nil, Config{})
	defer d.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.CreateRequest(context.Background(), validInput()); err != nil {
				t.Errorf("CreateRequest: %v", err)
			}
		}()
	}
	wg.Wait()

	dispatched := 0
	vehicles, _ := store.ListVehicles(context.Background())
	for _, v := range vehicles {
		if v.Status == models.VehicleDispatched {
			dispatched++
		}
	}
	if dispatched != 1 {
		t.Fatalf("dispatched vehicles = %d, want exactly 1", dispatched)
	}
	if inFlight := len(d.pending); inFlight != 1 {
		t.Fatalf("pending assignments = %d, want exactly 1", inFlight)
	}
}
