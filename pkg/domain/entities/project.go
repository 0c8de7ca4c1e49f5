package entities

import (
	"github.com/google/uuid"
)

// ProjectEntity is a tenant-scoped deployable unit. Created on the first
// successful deploy; its deployment pointers rotate on every redeploy.
type ProjectEntity struct {
	ID             uuid.UUID         `json:"id"`
	OrgID          uuid.UUID         `json:"orgId"`
	Name           string            `json:"name"`
	Repo           string            `json:"repo"`
	Branch         string            `json:"branch"`
	InstallCommand string            `json:"installCommand"`
	BuildCommand   string            `json:"buildCommand"`
	RootDir        string            `json:"rootDir"`
	OutputDir      string            `json:"outputDir"`
	EnvVars        map[string]string `json:"envVars"`

	PreviousDeploymentID *uuid.UUID `json:"previousDeploymentId"`
	CurrentDeploymentID  *uuid.UUID `json:"currentDeploymentId"`
}
