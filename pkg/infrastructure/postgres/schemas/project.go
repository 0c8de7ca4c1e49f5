package schemas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Project struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	OrgID          uuid.UUID      `gorm:"type:uuid;not null;column:org_id;uniqueIndex:idx_projects_org_name"`
	Name           string         `gorm:"not null;column:name;uniqueIndex:idx_projects_org_name"`
	Repo           string         `gorm:"not null;column:repo"`
	Branch         string         `gorm:"not null;column:branch"`
	InstallCommand string         `gorm:"column:install_command"`
	BuildCommand   string         `gorm:"column:build_command"`
	RootDir        string         `gorm:"column:root_dir"`
	OutputDir      string         `gorm:"column:output_dir"`
	EnvVars        datatypes.JSON `gorm:"type:jsonb;column:env_vars"`

	PreviousDeploymentID *uuid.UUID `gorm:"type:uuid;column:previous_deployment_id"`
	CurrentDeploymentID  *uuid.UUID `gorm:"type:uuid;column:current_deployment_id"`

	CreatedAt time.Time `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;column:updated_at"`
}

func (Project) TableName() string {
	return "projects"
}
