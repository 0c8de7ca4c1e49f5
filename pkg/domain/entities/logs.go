package entities

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an append-only deployment_logs row. Never mutated.
type AuditEntry struct {
	ID           uuid.UUID   `json:"id"`
	ProjectID    uuid.UUID   `json:"projectId"`
	DeploymentID *uuid.UUID  `json:"deploymentId"`
	Action       AuditAction `json:"action"`
	Actor        string      `json:"actor"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// BuildLogEntity is the captured build output of one deployment, write-once.
type BuildLogEntity struct {
	LogID        string    `json:"logId"`
	DeploymentID uuid.UUID `json:"deploymentId"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RuntimeLogEntity is the captured runtime output of one log stream plus the
// result of the external reachability probe.
type RuntimeLogEntity struct {
	LogID        string    `json:"logId"`
	DeploymentID uuid.UUID `json:"deploymentId"`
	Stream       string    `json:"stream"`
	Content      string    `json:"content"`
	ProbeStatus  string    `json:"probeStatus"`
	Hostname     string    `json:"hostname"`
	CreatedAt    time.Time `json:"createdAt"`
}
