package assignment

import (
	"context"
	"fmt"
)

// WorkloadSource counts non-terminal tickets per assignee.
type WorkloadSource interface {
	CountActiveByAssignee(ctx context.Context, engineerIDs []int64) (map[int64]int, error)
}

// Accountant reports per engineer workload.
type Accountant struct {
	source WorkloadSource
}

// NewAccountant constructs an Accountant over the ticket store.
func NewAccountant(source WorkloadSource) *Accountant {
	return &Accountant{source: source}
}

// Workloads maps every requested id to the number of tickets assigned to it
// that are not Resolved or Closed. Ids with no such tickets map to zero.
func (a *Accountant) Workloads(ctx context.Context, engineerIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(engineerIDs))
	if len(engineerIDs) == 0 {
		return out, nil
	}
	counts, err := a.source.CountActiveByAssignee(ctx, engineerIDs)
	if err != nil {
		return nil, fmt.Errorf("workloads: %w", err)
	}
	for _, id := range engineerIDs {
		out[id] = counts[id]
	}
	return out, nil
}
