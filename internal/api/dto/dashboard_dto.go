package dto

import "github.com/spec-kit/ticket-router/internal/service"

// DashboardResponse is the per-role summary.
type DashboardResponse struct {
	Overview *OverviewCounts  `json:"overview,omitempty"`
	Mine     *RequesterCounts `json:"mine,omitempty"`
	Engineer *EngineerCounts  `json:"engineer,omitempty"`
}

type OverviewCounts struct {
	Open          int `json:"open"`
	Assigned      int `json:"assigned"`
	InProgress    int `json:"in_progress"`
	ResolvedToday int `json:"resolved_today"`
	Total         int `json:"total"`
}

type RequesterCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Resolved int `json:"resolved"`
}

type EngineerCounts struct {
	Assigned        int  `json:"assigned"`
	PendingResponse int  `json:"pending_response"`
	InProgress      int  `json:"in_progress"`
	Available       bool `json:"available"`
}

// NewDashboardResponse maps the service summary.
func NewDashboardResponse(d service.Dashboard) DashboardResponse {
	var resp DashboardResponse
	if d.Overview != nil {
		resp.Overview = &OverviewCounts{
			Open:          d.Overview.Open,
			Assigned:      d.Overview.Assigned,
			InProgress:    d.Overview.InProgress,
			ResolvedToday: d.Overview.ResolvedToday,
			Total:         d.Overview.Total,
		}
	}
	if d.Mine != nil {
		resp.Mine = &RequesterCounts{Total: d.Mine.Total, Pending: d.Mine.Pending, Resolved: d.Mine.Resolved}
	}
	if d.Engineer != nil {
		resp.Engineer = &EngineerCounts{
			Assigned:        d.Engineer.Assigned,
			PendingResponse: d.Engineer.PendingResponse,
			InProgress:      d.Engineer.InProgress,
			Available:       d.Engineer.Available,
		}
	}
	return resp
}
