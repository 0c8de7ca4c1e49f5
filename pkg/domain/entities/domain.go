package entities

import (
	"encoding/json"

	"github.com/google/uuid"
)

// DomainEntity binds a DNS hostname to a project. Name is either a subdomain
// label or the bare project name; at most one domain exists per
// (project, name) pair.
type DomainEntity struct {
	ID             uuid.UUID         `json:"id"`
	ProjectID      uuid.UUID         `json:"projectId"`
	Name           string            `json:"name"`
	IsPrimary      bool              `json:"isPrimary"`
	Environment    DomainEnvironment `json:"environment"`
	CertificateARN string            `json:"certificateArn"`
	RecordSnapshot json.RawMessage   `json:"recordSnapshot"`
	RedirectTarget string            `json:"redirectTarget"`
	DeploymentID   *uuid.UUID        `json:"deploymentId"`
}
