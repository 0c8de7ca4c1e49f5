package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

// Rollback re-activates an existing deployment: the service is forced onto
// its task definition, listener rules are recomputed for the hostnames that
// deployment serves, and the active/primary pointers flip. No new deployment
// row is created, no image is rebuilt and DNS records are left untouched;
// routing alone changes.
func (s *DeploymentService) Rollback(ctx context.Context, userID, deploymentID string) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	target, err := s.deployments.GetByID(deploymentID)
	if err != nil {
		return err
	}
	project, err := s.projects.GetByID(target.ProjectID.String())
	if err != nil {
		return err
	}
	if project.OrgID != user.OrgID {
		return errs.Authentication("deployment %s does not belong to your organization", deploymentID)
	}

	taskDefARN := target.TaskDefARN
	if taskDefARN == "" {
		// Older rows may predate ARN capture; the family name resolves to
		// its latest revision.
		taskDefARN = utils.TaskFamily(project.Name)
	}

	if err := s.compute.ForceDeployment(ctx, project.Name, taskDefARN); err != nil {
		return err
	}

	if err := s.reconcileRollbackRouting(ctx, project, target); err != nil {
		return err
	}

	previous, err := s.deployments.GetActiveByProject(project.ID)
	if err != nil {
		return err
	}
	var previousID *entities.DeploymentEntity
	if previous != nil && previous.ID != target.ID {
		if err := s.deployments.UpdateStatus(previous.ID.String(), entities.DeploymentStatusInactive); err != nil {
			return err
		}
		previousID = previous
	}
	if err := s.deployments.UpdateStatus(target.ID.String(), entities.DeploymentStatusActive); err != nil {
		return err
	}

	var prevPtr = project.CurrentDeploymentID
	if previousID != nil {
		prevPtr = &previousID.ID
	}
	if err := s.projects.UpdateDeploymentPointers(project.ID.String(), prevPtr, &target.ID); err != nil {
		return err
	}

	s.audit(project.ID, &target.ID, entities.AuditActionRollback, user.Login)
	logger.Info("rollback complete",
		zap.String("project", project.Name),
		zap.String("deploymentId", target.ID.String()))
	return nil
}

// reconcileRollbackRouting recomputes the hostname set the target deployment
// serves, deletes listener rules for hostnames no longer active and re-points
// the remaining ones at the project's target group. Primary flags follow:
// the bare project domain keeps it among the still-active domains.
func (s *DeploymentService) reconcileRollbackRouting(ctx context.Context, project *entities.ProjectEntity, target *entities.DeploymentEntity) error {
	domains, err := s.domains.ListByProject(project.ID)
	if err != nil {
		return err
	}

	var activeDomains, staleDomains []*entities.DomainEntity
	for _, d := range domains {
		if d.DeploymentID != nil && *d.DeploymentID == target.ID {
			activeDomains = append(activeDomains, d)
		} else {
			staleDomains = append(staleDomains, d)
		}
	}
	// A deployment never served by any domain still serves the bare host.
	if len(activeDomains) == 0 {
		for _, d := range domains {
			if strings.EqualFold(d.Name, project.Name) {
				activeDomains = append(activeDomains, d)
				staleDomains = removeDomain(staleDomains, d)
			}
		}
	}

	staleHosts := make([]string, 0, len(staleDomains))
	for _, d := range staleDomains {
		staleHosts = append(staleHosts, utils.QualifyHost(d.Name, project.Name, s.cfg.BaseDomain))
	}
	if len(staleHosts) > 0 {
		if err := s.compute.DeleteRulesForHosts(ctx, staleHosts); err != nil {
			return err
		}
	}

	targetGroupARN, err := s.compute.EnsureTargetGroup(ctx, project.Name)
	if err != nil {
		return err
	}
	for _, d := range activeDomains {
		host := utils.QualifyHost(d.Name, project.Name, s.cfg.BaseDomain)
		if err := s.compute.EnsureHostRules(ctx, host, targetGroupARN); err != nil {
			return err
		}
		if err := s.domains.UpdateDeployment(d.ID.String(), &target.ID); err != nil {
			return err
		}
		if err := s.domains.SetPrimary(d.ID.String(), strings.EqualFold(d.Name, project.Name)); err != nil {
			return err
		}
	}
	for _, d := range staleDomains {
		if err := s.domains.SetPrimary(d.ID.String(), false); err != nil {
			return err
		}
	}
	return nil
}

func removeDomain(list []*entities.DomainEntity, target *entities.DomainEntity) []*entities.DomainEntity {
	out := list[:0]
	for _, d := range list {
		if d.ID != target.ID {
			out = append(out, d)
		}
	}
	return out
}
