package services

import (
	"github.com/google/uuid"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

// Read-side operations used by the HTTP layer. Every lookup is scoped to the
// caller's organization; a row owned elsewhere reads as not found.

func (s *DeploymentService) GetDeployment(userID, deploymentID string) (*entities.DeploymentEntity, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	deployment, err := s.deployments.GetByID(deploymentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(user, deployment.ProjectID); err != nil {
		return nil, err
	}
	return deployment, nil
}

func (s *DeploymentService) GetBuildLog(userID, deploymentID string) (*entities.BuildLogEntity, error) {
	deployment, err := s.GetDeployment(userID, deploymentID)
	if err != nil {
		return nil, err
	}
	return s.logs.GetBuildLogByDeployment(deployment.ID)
}

func (s *DeploymentService) ListProjects(userID string) ([]*entities.ProjectEntity, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return s.projects.ListByOrg(user.OrgID)
}

func (s *DeploymentService) GetProject(userID, projectID string) (*entities.ProjectEntity, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(projectID)
	if err != nil {
		return nil, err
	}
	if project.OrgID != user.OrgID {
		return nil, errs.NotFound("project %s", projectID)
	}
	return project, nil
}

func (s *DeploymentService) ListAudit(userID, projectID string) ([]*entities.AuditEntry, error) {
	project, err := s.GetProject(userID, projectID)
	if err != nil {
		return nil, err
	}
	return s.logs.ListAuditByProject(project.ID)
}

func (s *DeploymentService) checkOwnership(user *entities.UserEntity, projectID uuid.UUID) error {
	project, err := s.projects.GetByID(projectID.String())
	if err != nil {
		return err
	}
	if project.OrgID != user.OrgID {
		return errs.NotFound("deployment")
	}
	return nil
}
