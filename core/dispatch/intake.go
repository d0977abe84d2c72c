package dispatch

import (
	"context"
	"strings"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

// NewRequest carries the caller-supplied fields of an intake.
type NewRequest struct {
	Capability  model.Capability `json:"capability"`
	Priority    model.Priority   `json:"priority,omitempty"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	Latitude    *float64         `json:"latitude,omitempty"`
	Longitude   *float64         `json:"longitude,omitempty"`
	VictimName  string           `json:"victim_name,omitempty"`
	VictimPhone string           `json:"victim_phone,omitempty"`
	CreatedBy   string           `json:"created_by,omitempty"`
}

// Intake persists a PENDING request, announces it and tries to auto-assign
// it. The request is kept even when auto-assignment fails or panics.
func (c *Controller) Intake(ctx context.Context, in NewRequest) (model.EmergencyRequest, error) {
	const op = "intake"
	start := c.now()

	capability, err := model.ParseCapability(string(in.Capability))
	if err != nil {
		c.recordOperation(op, start, err)
		return model.EmergencyRequest{}, opError(op, "", "", ErrInvalidInput, "%v", err)
	}
	priority, err := model.ParsePriority(string(in.Priority))
	if err != nil {
		c.recordOperation(op, start, err)
		return model.EmergencyRequest{}, opError(op, "", "", ErrInvalidInput, "%v", err)
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		err := opError(op, "", "", ErrInvalidInput, "latitude %v out of range", *in.Latitude)
		c.recordOperation(op, start, err)
		return model.EmergencyRequest{}, err
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		err := opError(op, "", "", ErrInvalidInput, "longitude %v out of range", *in.Longitude)
		c.recordOperation(op, start, err)
		return model.EmergencyRequest{}, err
	}

	now := c.now()
	req := model.EmergencyRequest{
		ID:          c.newID(),
		Capability:  capability,
		Priority:    priority,
		Status:      model.RequestPending,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		VictimName:  strings.TrimSpace(in.VictimName),
		VictimPhone: strings.TrimSpace(in.VictimPhone),
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := req.Validate(); err != nil {
		c.recordOperation(op, start, err)
		return model.EmergencyRequest{}, opError(op, req.ID, "", ErrInvalidInput, "%v", err)
	}
	if err := c.store.CreateRequest(ctx, req); err != nil {
		err = storeError(op, req.ID, "", err)
		c.recordOperation(op, start, err)
		return model.EmergencyRequest{}, err
	}
	c.log.Infof("new %s request %s (%s)", req.Capability, req.ID, req.Priority)
	c.publish(ctx, model.Event{
		Kind:       model.EventNewRequest,
		RequestID:  req.ID,
		Status:     req.Status,
		Capability: req.Capability,
		Priority:   req.Priority,
		Timestamp:  now,
	})
	c.recordOperation(op, start, nil)

	c.AutoAssign(ctx, req.ID)

	cur, err := c.store.GetRequest(ctx, req.ID)
	if err != nil {
		c.log.Warnf("intake %s: reload after auto-assign: %v", req.ID, err)
		return req, nil
	}
	return cur, nil
}

// GetRequest returns one request.
func (c *Controller) GetRequest(ctx context.Context, id string) (model.EmergencyRequest, error) {
	r, err := c.store.GetRequest(ctx, id)
	if err != nil {
		return model.EmergencyRequest{}, storeError("get", id, "", err)
	}
	return r, nil
}

// ListRequests returns the requests matching f.
func (c *Controller) ListRequests(ctx context.Context, f store.RequestFilter) ([]model.EmergencyRequest, error) {
	rs, err := c.store.ListRequests(ctx, f)
	if err != nil {
		return nil, storeError("list", "", "", err)
	}
	return rs, nil
}

// AddResolutionNotes replaces the free-text notes of a request. Notes do not
// change status and may be written on terminal requests.
func (c *Controller) AddResolutionNotes(ctx context.Context, requestID, notes string) (model.EmergencyRequest, error) {
	const op = "notes"
	unlock := c.locks.Lock(requestKey(requestID))
	defer unlock()

	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		return model.EmergencyRequest{}, storeError(op, requestID, "", err)
	}
	req.ResolutionNotes = strings.TrimSpace(notes)
	req.UpdatedAt = c.now()
	if err := c.store.SaveRequest(ctx, req, req.Status); err != nil {
		return model.EmergencyRequest{}, storeError(op, requestID, "", err)
	}
	return req, nil
}
