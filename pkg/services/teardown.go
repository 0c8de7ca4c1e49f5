package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/dnscert"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

// DeleteProject tears a project down in reverse provisioning order. Every
// cloud-side step is best-effort and recorded in the returned report, so one
// missing resource never blocks the rest. Only the final database deletions
// are fatal: the rows are the source of truth, and leaving them behind would
// resurrect the project.
func (s *DeploymentService) DeleteProject(ctx context.Context, userID, projectID string) (*errs.CleanupReport, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetByID(projectID)
	if err != nil {
		return nil, err
	}
	if project.OrgID != user.OrgID {
		return nil, errs.Authentication("project %s does not belong to your organization", projectID)
	}

	domains, err := s.domains.ListByProject(project.ID)
	if err != nil {
		return nil, err
	}

	hostnames := []string{
		utils.ProjectHost(project.Name, s.cfg.BaseDomain),
		utils.WildcardHost(project.Name, s.cfg.BaseDomain),
	}
	for _, d := range domains {
		hostnames = append(hostnames, utils.QualifyHost(d.Name, project.Name, s.cfg.BaseDomain))
	}

	report := &errs.CleanupReport{}

	report.Record("delete service",
		s.compute.DeleteService(ctx, project.Name))
	report.Record("delete image repository",
		s.builds.DeleteImageRepository(ctx, utils.ImageRepoName(project.Name)))
	report.Record("delete listener rules",
		s.compute.DeleteRulesForHosts(ctx, hostnames))

	for _, d := range domains {
		if d.CertificateARN == "" {
			continue
		}
		report.Record("detach certificate",
			s.dns.DetachCertificate(ctx, d.CertificateARN))
		report.Record("delete certificate",
			s.dns.DeleteCertificate(ctx, d.CertificateARN))
	}

	report.Record("delete dns records",
		s.dns.DeleteRecords(ctx, recordedSnapshots(domains)))
	report.Record("delete build project",
		s.builds.DeleteBuildProject(ctx, project.Name))
	report.Record("delete runtime log group",
		s.compute.DeleteLogGroup(ctx, utils.RuntimeLogGroup(project.Name)))
	report.Record("delete build log group",
		s.compute.DeleteLogGroup(ctx, utils.BuildLogGroup(project.Name)))
	report.Record("delete target group",
		s.compute.DeleteTargetGroup(ctx, project.Name))

	for _, failed := range report.Failed() {
		logger.Warn("teardown step failed",
			zap.String("project", project.Name),
			zap.String("step", failed.Step),
			zap.Error(failed.Err))
	}

	// Dependency order: logs reference deployments, deployments and domains
	// reference the project.
	if err := s.logs.DeleteByProject(project.ID); err != nil {
		return report, err
	}
	if err := s.deployments.DeleteByProject(project.ID); err != nil {
		return report, err
	}
	if err := s.domains.DeleteByProject(project.ID); err != nil {
		return report, err
	}
	if err := s.projects.Delete(project.ID.String()); err != nil {
		return report, err
	}

	s.audit(project.ID, nil, entities.AuditActionProjectDeleted, user.Login)
	logger.Info("project deleted",
		zap.String("project", project.Name),
		zap.Int("cleanupStepsSucceeded", report.Succeeded()),
		zap.Int("cleanupStepsTotal", len(report.Results)))
	return report, nil
}

// recordedSnapshots merges every domain's stored record snapshot. Duplicate
// entries are fine: DeleteRecords deduplicates by name and type.
func recordedSnapshots(domains []*entities.DomainEntity) []dnscert.Record {
	var records []dnscert.Record
	for _, d := range domains {
		if len(d.RecordSnapshot) == 0 {
			continue
		}
		var snap []dnscert.Record
		if err := json.Unmarshal(d.RecordSnapshot, &snap); err != nil {
			logger.Warn("unreadable record snapshot skipped",
				zap.String("domainId", d.ID.String()),
				zap.Error(err))
			continue
		}
		records = append(records, snap...)
	}
	return records
}
