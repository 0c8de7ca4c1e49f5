package dtos

import (
	"errors"

	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/services"
)

type DeployRequest struct {
	ProjectName    string            `json:"projectName" binding:"required"`
	Repo           string            `json:"repo"        binding:"required"`
	Branch         string            `json:"branch"`
	InstallCommand string            `json:"installCommand"`
	BuildCommand   string            `json:"buildCommand"`
	RootDir        string            `json:"rootDir"`
	OutputDir      string            `json:"outputDir"`
	EnvVars        map[string]string `json:"envVars"`
	Subdomains     []string          `json:"subdomains"`
}

func (request *DeployRequest) Validate() error {
	if !utils.ValidHostLabel(request.ProjectName) {
		return errors.New("projectName must be a valid hostname label: lowercase letters, digits and hyphens")
	}
	for _, sub := range request.Subdomains {
		if !utils.ValidHostLabel(sub) {
			return errors.New("subdomains must be valid hostname labels")
		}
	}
	return nil
}

func (request *DeployRequest) ToLaunchRequest(userID string) services.LaunchRequest {
	return services.LaunchRequest{
		UserID:         userID,
		ProjectName:    request.ProjectName,
		Repo:           request.Repo,
		Branch:         request.Branch,
		InstallCommand: request.InstallCommand,
		BuildCommand:   request.BuildCommand,
		RootDir:        request.RootDir,
		OutputDir:      request.OutputDir,
		EnvVars:        request.EnvVars,
		Subdomains:     request.Subdomains,
	}
}
