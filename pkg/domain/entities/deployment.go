package entities

import (
	"time"

	"github.com/google/uuid"
)

// DeploymentEntity is one build+provisioning attempt. At most one deployment
// per project is active at a time.
type DeploymentEntity struct {
	ID             uuid.UUID        `json:"id"`
	ProjectID      uuid.UUID        `json:"projectId"`
	DomainID       *uuid.UUID       `json:"domainId"`
	Status         DeploymentStatus `json:"status"`
	CommitSHA      string           `json:"commitSha"`
	TaskDefARN     string           `json:"taskDefArn"`
	URL            string           `json:"url"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	LastDeployedAt *time.Time       `json:"lastDeployedAt"`
}
