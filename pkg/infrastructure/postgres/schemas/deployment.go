package schemas

import (
	"time"

	"github.com/google/uuid"

	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

type Deployment struct {
	ID             uuid.UUID                 `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	ProjectID      uuid.UUID                 `gorm:"type:uuid;not null;column:project_id;index"`
	Project        Project                   `gorm:"foreignKey:ProjectID"`
	DomainID       *uuid.UUID                `gorm:"type:uuid;column:domain_id"`
	Status         entities.DeploymentStatus `gorm:"not null;column:status;index"`
	CommitSHA      string                    `gorm:"column:commit_sha"`
	TaskDefARN     string                    `gorm:"column:task_def_arn"`
	URL            string                    `gorm:"column:url"`
	CreatedAt      time.Time                 `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt      time.Time                 `gorm:"autoUpdateTime;column:updated_at"`
	LastDeployedAt *time.Time                `gorm:"column:last_deployed_at"`
}

func (Deployment) TableName() string {
	return "deployments"
}
