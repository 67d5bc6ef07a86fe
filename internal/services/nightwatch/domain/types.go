// Package domain holds the nightwatch sweep types
package domain

import "context"

// SweepOutcome is the per-tenant result of a sweep
type SweepOutcome struct {
	TenantID int64  `json:"tenant_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// SweepResult summarizes one full pass over the active tenants
type SweepResult struct {
	Tenants   int            `json:"tenants"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Outcomes  []SweepOutcome `json:"outcomes"`
}

// SweeperPort runs lifecycle sweeps across all active tenants
type SweeperPort interface {
	// RetrainAll retrains every active tenant's defect model.
	// A failing tenant is recorded and skipped, never fatal
	RetrainAll(ctx context.Context) (*SweepResult, error)

	// ScanAll runs anomaly detection over each tenant's trailing window
	ScanAll(ctx context.Context) (*SweepResult, error)
}
