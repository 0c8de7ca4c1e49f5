package schemas

import (
	"time"

	"github.com/google/uuid"

	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

// DeploymentLog rows are append-only; nothing updates or deletes them except
// project teardown.
type DeploymentLog struct {
	ID           uuid.UUID            `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	ProjectID    uuid.UUID            `gorm:"type:uuid;not null;column:project_id;index"`
	DeploymentID *uuid.UUID           `gorm:"type:uuid;column:deployment_id"`
	Action       entities.AuditAction `gorm:"not null;column:action"`
	Actor        string               `gorm:"column:actor"`
	CreatedAt    time.Time            `gorm:"autoCreateTime;column:created_at"`
}

func (DeploymentLog) TableName() string {
	return "deployment_logs"
}

type BuildLog struct {
	LogID        string    `gorm:"primaryKey;column:log_id"`
	DeploymentID uuid.UUID `gorm:"type:uuid;not null;column:deployment_id;index"`
	Content      string    `gorm:"type:text;column:content"`
	CreatedAt    time.Time `gorm:"autoCreateTime;column:created_at"`
}

func (BuildLog) TableName() string {
	return "build_logs"
}

type RuntimeLog struct {
	LogID        string    `gorm:"primaryKey;column:log_id"`
	DeploymentID uuid.UUID `gorm:"type:uuid;not null;column:deployment_id;index"`
	Stream       string    `gorm:"column:stream"`
	Content      string    `gorm:"type:text;column:content"`
	ProbeStatus  string    `gorm:"column:probe_status"`
	Hostname     string    `gorm:"column:hostname"`
	CreatedAt    time.Time `gorm:"autoCreateTime;column:created_at"`
}

func (RuntimeLog) TableName() string {
	return "runtime_logs"
}
