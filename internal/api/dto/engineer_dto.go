package dto

import "github.com/spec-kit/ticket-router/internal/assignment"

// AvailabilityRequest payload for the availability toggle.
type AvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// SweepResponse lists what a sweep claimed.
type SweepResponse struct {
	Assigned []int64 `json:"assigned_ticket_ids"`
	Skipped  []int64 `json:"skipped_ticket_ids"`
}

// AvailabilityResponse reports a toggle.
type AvailabilityResponse struct {
	EngineerID      int64          `json:"engineer_id"`
	Previous        bool           `json:"previous"`
	Available       bool           `json:"available"`
	ReassignedCount int            `json:"reassigned_count"`
	Sweep           *SweepResponse `json:"sweep,omitempty"`
}

// EngineerWorkloadResponse is one row of the workload report.
type EngineerWorkloadResponse struct {
	Engineer UserResponse `json:"engineer"`
	Workload int          `json:"workload"`
}

// NewAvailabilityResponse maps a toggle result.
func NewAvailabilityResponse(r assignment.ToggleResult) AvailabilityResponse {
	resp := AvailabilityResponse{
		EngineerID:      r.EngineerID,
		Previous:        r.Previous,
		Available:       r.Available,
		ReassignedCount: r.ReassignedCount,
	}
	if r.Swept {
		resp.Sweep = NewSweepResponse(r.Sweep)
	}
	return resp
}

// NewSweepResponse maps a sweep result.
func NewSweepResponse(r assignment.SweepResult) *SweepResponse {
	resp := &SweepResponse{Assigned: r.Assigned, Skipped: r.Skipped}
	if resp.Assigned == nil {
		resp.Assigned = []int64{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []int64{}
	}
	return resp
}
