package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/internal/logger"
	"github.com/nimbus-host/nimbus-backend/internal/utils"
	"github.com/nimbus-host/nimbus-backend/pkg/builder"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

// LaunchRequest carries everything one deployment attempt needs.
type LaunchRequest struct {
	UserID         string
	ProjectName    string
	Repo           string
	Branch         string
	InstallCommand string
	BuildCommand   string
	RootDir        string
	OutputDir      string
	EnvVars        map[string]string
	Subdomains     []string
}

type LaunchResult struct {
	DeploymentID string `json:"deploymentId"`
	URL          string `json:"url"`
	LogID        string `json:"logId"`
	TaskDefARN   string `json:"taskDefArn"`
}

// Launch drives one deployment end to end: verify the source, record the
// attempt, synchronize DNS and the certificate, build the image, provision
// compute and routing, then promote the deployment to active. Build output is
// forwarded line by line to onLine.
//
// Failures after the deployment row exists mark it failed, write a
// build_failed audit entry and still capture logs before returning the error.
// Partially created cloud resources are left in place: every ensure step is
// idempotent and reuses them on the next attempt.
func (s *DeploymentService) Launch(ctx context.Context, req LaunchRequest, onLine func(string)) (*LaunchResult, error) {
	if err := validateLaunch(&req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(req.UserID)
	if err != nil {
		return nil, err
	}

	commitSHA, err := s.source.Verify(ctx, req.Repo, req.Branch, user.GithubToken)
	if err != nil {
		return nil, err
	}

	project, err := s.upsertProject(user, &req)
	if err != nil {
		return nil, err
	}
	if err := s.upsertDomains(project, req.Subdomains); err != nil {
		return nil, err
	}

	deployment := &entities.DeploymentEntity{
		ID:        uuid.New(),
		ProjectID: project.ID,
		Status:    entities.DeploymentStatusBuilding,
		CommitSHA: commitSHA,
	}
	if err := s.deployments.Create(deployment); err != nil {
		return nil, err
	}
	s.audit(project.ID, &deployment.ID, entities.AuditActionDeployStarted, user.Login)

	result, err := s.executeLaunch(ctx, user, project, deployment, commitSHA, onLine)
	if err != nil {
		s.failDeployment(project, deployment, user.Login, err)
		return nil, err
	}
	return result, nil
}

// executeLaunch is the body of the workflow after the deployment row exists.
// Any error returned here triggers the failure path in Launch.
func (s *DeploymentService) executeLaunch(
	ctx context.Context,
	user *entities.UserEntity,
	project *entities.ProjectEntity,
	deployment *entities.DeploymentEntity,
	commitSHA string,
	onLine func(string),
) (*LaunchResult, error) {
	var (
		mu            sync.Mutex
		lines         []string
		logsPersisted bool
	)
	capture := func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		if onLine != nil {
			onLine(line)
		}
	}
	// Whichever step fails, the build output captured so far is still
	// persisted. The success path persists inline instead, to keep the log id.
	defer func() {
		if logsPersisted {
			return
		}
		mu.Lock()
		captured := append([]string(nil), lines...)
		mu.Unlock()
		if _, perr := s.collector.PersistBuildLogs(ctx, deployment.ID, captured); perr != nil {
			logger.Error("build log capture failed",
				zap.String("deploymentId", deployment.ID.String()),
				zap.Error(perr))
		}
	}()

	if err := s.syncDNSAndCert(ctx, project); err != nil {
		return nil, err
	}

	buildCfg := builder.BuildConfig{
		ProjectName:    project.Name,
		Repo:           project.Repo,
		Branch:         project.Branch,
		CommitSHA:      commitSHA,
		RootDir:        project.RootDir,
		InstallCommand: project.InstallCommand,
		BuildCommand:   project.BuildCommand,
		EnvVars:        project.EnvVars,
		GithubToken:    user.GithubToken,
		ImageRepo:      utils.ImageRepoName(project.Name),
		ImageTag:       commitSHA,
	}
	if err := s.builds.EnsureImageRepository(ctx, buildCfg.ImageRepo); err != nil {
		return nil, err
	}
	if err := s.builds.EnsureProject(ctx, buildCfg); err != nil {
		return nil, err
	}
	imageRef, err := s.builds.Run(ctx, buildCfg, capture)
	if err != nil {
		return nil, err
	}

	taskDefARN, err := s.compute.RegisterTaskDefinition(ctx, project.Name, imageRef, project.EnvVars)
	if err != nil {
		return nil, err
	}
	targetGroupARN, err := s.compute.EnsureTargetGroup(ctx, project.Name)
	if err != nil {
		return nil, err
	}
	if err := s.compute.ReconcileListenerRules(ctx, project.Name, targetGroupARN); err != nil {
		return nil, err
	}
	if err := s.compute.CreateOrUpdateService(ctx, project.Name, taskDefARN, targetGroupARN); err != nil {
		return nil, err
	}

	url := "https://" + utils.ProjectHost(project.Name, s.cfg.BaseDomain)
	if err := s.promote(project, deployment, taskDefARN, url); err != nil {
		return nil, err
	}
	s.audit(project.ID, &deployment.ID, entities.AuditActionDeployed, user.Login)

	mu.Lock()
	captured := append([]string(nil), lines...)
	mu.Unlock()
	logsPersisted = true
	logID, err := s.collector.PersistBuildLogs(ctx, deployment.ID, captured)
	if err != nil {
		return nil, err
	}
	if err := s.collector.CollectRuntimeLogs(ctx, project.Name, deployment.ID); err != nil {
		logger.Warn("runtime log collection failed",
			zap.String("project", project.Name),
			zap.Error(err))
	}

	logger.Info("deployment active",
		zap.String("project", project.Name),
		zap.String("deploymentId", deployment.ID.String()),
		zap.String("url", url))
	return &LaunchResult{
		DeploymentID: deployment.ID.String(),
		URL:          url,
		LogID:        logID,
		TaskDefARN:   taskDefARN,
	}, nil
}

// promote demotes the current active deployment, finalizes the new one as
// active and rotates the project's deployment pointers. At most one
// deployment per project is active afterwards.
func (s *DeploymentService) promote(project *entities.ProjectEntity, deployment *entities.DeploymentEntity, taskDefARN, url string) error {
	previous, err := s.deployments.GetActiveByProject(project.ID)
	if err != nil {
		return err
	}
	var previousID *uuid.UUID
	if previous != nil && previous.ID != deployment.ID {
		if err := s.deployments.UpdateStatus(previous.ID.String(), entities.DeploymentStatusInactive); err != nil {
			return err
		}
		previousID = &previous.ID
	}

	if err := s.deployments.Finalize(deployment.ID.String(), entities.DeploymentStatusActive, taskDefARN, url); err != nil {
		return err
	}
	if err := s.projects.UpdateDeploymentPointers(project.ID.String(), previousID, &deployment.ID); err != nil {
		return err
	}

	domains, err := s.domains.ListByProject(project.ID)
	if err != nil {
		return err
	}
	for _, d := range domains {
		if err := s.domains.UpdateDeployment(d.ID.String(), &deployment.ID); err != nil {
			return err
		}
	}
	return nil
}

// syncDNSAndCert makes every hostname of the project resolvable and covered
// by an issued certificate before the build starts, so the service is
// reachable the moment it comes up.
func (s *DeploymentService) syncDNSAndCert(ctx context.Context, project *entities.ProjectEntity) error {
	domains, err := s.domains.ListByProject(project.ID)
	if err != nil {
		return err
	}

	var primary *entities.DomainEntity
	hostnames := make([]string, 0, len(domains))
	for _, d := range domains {
		hostnames = append(hostnames, utils.QualifyHost(d.Name, project.Name, s.cfg.BaseDomain))
		if d.IsPrimary {
			primary = d
		}
	}
	if primary == nil {
		return errs.NotFound("primary domain for project %s", project.Name)
	}

	certARN, err := s.dns.EnsureCertificate(ctx, project.Name, primary.CertificateARN)
	if err != nil {
		return err
	}
	if err := s.dns.AttachCertificate(ctx, certARN); err != nil {
		return err
	}
	if certARN != primary.CertificateARN {
		if err := s.domains.UpdateCertificate(primary.ID.String(), certARN); err != nil {
			return err
		}
	}

	records, err := s.dns.UpdateRecords(ctx, project.Name, hostnames)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(records)
	if err != nil {
		return err
	}
	if err := s.domains.UpdateSnapshot(primary.ID.String(), snapshot); err != nil {
		return err
	}

	bareHost := utils.ProjectHost(project.Name, s.cfg.BaseDomain)
	for _, rec := range records {
		if rec.Name == bareHost {
			s.dns.VerifyPropagation(ctx, rec)
			break
		}
	}
	return nil
}

// failDeployment is the failure path once a deployment row exists: mark
// failed, audit, never skip either even when the context is already gone.
func (s *DeploymentService) failDeployment(project *entities.ProjectEntity, deployment *entities.DeploymentEntity, actor string, cause error) {
	logger.Error("deployment failed",
		zap.String("project", project.Name),
		zap.String("deploymentId", deployment.ID.String()),
		zap.Error(cause))
	if err := s.deployments.UpdateStatus(deployment.ID.String(), entities.DeploymentStatusFailed); err != nil {
		logger.Error("failed to mark deployment failed",
			zap.String("deploymentId", deployment.ID.String()),
			zap.Error(err))
	}
	s.audit(project.ID, &deployment.ID, entities.AuditActionBuildFailed, actor)
}

func (s *DeploymentService) upsertProject(user *entities.UserEntity, req *LaunchRequest) (*entities.ProjectEntity, error) {
	project, err := s.projects.GetByName(user.OrgID, req.ProjectName)
	if err != nil {
		if !errs.IsNotFound(err) {
			return nil, err
		}
		project = &entities.ProjectEntity{
			ID:    uuid.New(),
			OrgID: user.OrgID,
			Name:  req.ProjectName,
		}
		applyLaunchConfig(project, req)
		if err := s.projects.Create(project); err != nil {
			return nil, err
		}
		return project, nil
	}

	applyLaunchConfig(project, req)
	if err := s.projects.Update(project); err != nil {
		return nil, err
	}
	return project, nil
}

func applyLaunchConfig(project *entities.ProjectEntity, req *LaunchRequest) {
	project.Repo = req.Repo
	project.Branch = req.Branch
	project.InstallCommand = req.InstallCommand
	project.BuildCommand = req.BuildCommand
	project.RootDir = req.RootDir
	project.OutputDir = req.OutputDir
	project.EnvVars = req.EnvVars
}

// upsertDomains ensures the bare project domain plus every requested
// subdomain exists, the bare one marked primary.
func (s *DeploymentService) upsertDomains(project *entities.ProjectEntity, subdomains []string) error {
	names := append([]string{project.Name}, subdomains...)
	for _, name := range names {
		name = strings.ToLower(name)
		_, err := s.domains.GetByProjectAndName(project.ID, name)
		if err == nil {
			continue
		}
		if !errs.IsNotFound(err) {
			return err
		}
		domain := &entities.DomainEntity{
			ID:          uuid.New(),
			ProjectID:   project.ID,
			Name:        name,
			IsPrimary:   name == strings.ToLower(project.Name),
			Environment: entities.DomainEnvironmentProduction,
		}
		if err := s.domains.Create(domain); err != nil {
			return err
		}
	}
	return nil
}

func (s *DeploymentService) audit(projectID uuid.UUID, deploymentID *uuid.UUID, action entities.AuditAction, actor string) {
	err := s.logs.AppendAudit(&entities.AuditEntry{
		ID:           uuid.New(),
		ProjectID:    projectID,
		DeploymentID: deploymentID,
		Action:       action,
		Actor:        actor,
	})
	if err != nil {
		logger.Error("audit write failed",
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func validateLaunch(req *LaunchRequest) error {
	req.ProjectName = strings.TrimSpace(strings.ToLower(req.ProjectName))
	if req.ProjectName == "" {
		return errs.Validation("project name is required")
	}
	if !utils.ValidHostLabel(req.ProjectName) {
		return errs.Validation("project name %q is not a valid hostname label", req.ProjectName)
	}
	if strings.TrimSpace(req.Repo) == "" {
		return errs.Validation("repository is required")
	}
	if req.UserID == "" {
		return errs.Validation("user id is required")
	}
	for _, sub := range req.Subdomains {
		if !utils.ValidHostLabel(sub) {
			return errs.Validation("subdomain %q is not a valid hostname label", sub)
		}
	}
	return nil
}
