// Package services holds the deployment lifecycle coordinator: the state
// machine that drives a request through source verification, build,
// provisioning and DNS synchronization, and that owns rollback and teardown.
package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/nimbus-host/nimbus-backend/pkg/builder"
	"github.com/nimbus-host/nimbus-backend/pkg/config"
	"github.com/nimbus-host/nimbus-backend/pkg/dnscert"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

// Store interfaces are declared here, on the consumer side, so the engine can
// be tested against in-memory fakes.

type ProjectStore interface {
	Create(project *entities.ProjectEntity) error
	Update(project *entities.ProjectEntity) error
	GetByID(id string) (*entities.ProjectEntity, error)
	GetByName(orgID uuid.UUID, name string) (*entities.ProjectEntity, error)
	ListByOrg(orgID uuid.UUID) ([]*entities.ProjectEntity, error)
	UpdateDeploymentPointers(id string, previous, current *uuid.UUID) error
	Delete(id string) error
}

type DomainStore interface {
	Create(domain *entities.DomainEntity) error
	GetByProjectAndName(projectID uuid.UUID, name string) (*entities.DomainEntity, error)
	ListByProject(projectID uuid.UUID) ([]*entities.DomainEntity, error)
	UpdateDeployment(id string, deploymentID *uuid.UUID) error
	UpdateCertificate(id string, certificateARN string) error
	UpdateSnapshot(id string, snapshot []byte) error
	SetPrimary(id string, primary bool) error
	DeleteByProject(projectID uuid.UUID) error
}

type DeploymentStore interface {
	Create(deployment *entities.DeploymentEntity) error
	GetByID(id string) (*entities.DeploymentEntity, error)
	UpdateStatus(id string, status entities.DeploymentStatus) error
	GetActiveByProject(projectID uuid.UUID) (*entities.DeploymentEntity, error)
	ListByProject(projectID uuid.UUID) ([]*entities.DeploymentEntity, error)
	Finalize(id string, status entities.DeploymentStatus, taskDefARN, url string) error
	DeleteByProject(projectID uuid.UUID) error
}

type LogStore interface {
	AppendAudit(entry *entities.AuditEntry) error
	ListAuditByProject(projectID uuid.UUID) ([]*entities.AuditEntry, error)
	GetBuildLogByDeployment(deploymentID uuid.UUID) (*entities.BuildLogEntity, error)
	DeleteByProject(projectID uuid.UUID) error
}

type UserStore interface {
	GetByID(id string) (*entities.UserEntity, error)
}

// Component interfaces mirror the concrete engine parts.

type SourceVerifier interface {
	Verify(ctx context.Context, repoRef, branch, token string) (string, error)
}

type BuildCoordinator interface {
	EnsureImageRepository(ctx context.Context, name string) error
	DeleteImageRepository(ctx context.Context, name string) error
	EnsureProject(ctx context.Context, cfg builder.BuildConfig) error
	DeleteBuildProject(ctx context.Context, projectName string) error
	Run(ctx context.Context, cfg builder.BuildConfig, onLine func(string)) (string, error)
}

type ComputeProvisioner interface {
	RegisterTaskDefinition(ctx context.Context, projectName, imageRef string, envVars map[string]string) (string, error)
	EnsureTargetGroup(ctx context.Context, projectName string) (string, error)
	ReconcileListenerRules(ctx context.Context, projectName, targetGroupARN string) error
	EnsureHostRules(ctx context.Context, host, targetGroupARN string) error
	DeleteRulesForHosts(ctx context.Context, hosts []string) error
	CreateOrUpdateService(ctx context.Context, projectName, taskDefARN, targetGroupARN string) error
	ForceDeployment(ctx context.Context, projectName, taskDefARN string) error
	DeleteService(ctx context.Context, projectName string) error
	DeleteTargetGroup(ctx context.Context, projectName string) error
	DeleteLogGroup(ctx context.Context, name string) error
}

type DNSCertManager interface {
	EnsureCertificate(ctx context.Context, projectName, recordedARN string) (string, error)
	AttachCertificate(ctx context.Context, certARN string) error
	DetachCertificate(ctx context.Context, certARN string) error
	DeleteCertificate(ctx context.Context, certARN string) error
	UpdateRecords(ctx context.Context, projectName string, hostnames []string) ([]dnscert.Record, error)
	DeleteRecords(ctx context.Context, records []dnscert.Record) error
	VerifyPropagation(ctx context.Context, record dnscert.Record) bool
}

type LogCollector interface {
	PersistBuildLogs(ctx context.Context, deploymentID uuid.UUID, lines []string) (string, error)
	CollectRuntimeLogs(ctx context.Context, projectName string, deploymentID uuid.UUID) error
}

type TaskQueue interface {
	AddTask(task entities.Task)
}

type DeploymentService struct {
	projects    ProjectStore
	domains     DomainStore
	deployments DeploymentStore
	logs        LogStore
	users       UserStore

	source    SourceVerifier
	builds    BuildCoordinator
	compute   ComputeProvisioner
	dns       DNSCertManager
	collector LogCollector
	tasks     TaskQueue

	cfg *config.Config
}

func NewDeploymentService(
	projects ProjectStore,
	domains DomainStore,
	deployments DeploymentStore,
	logs LogStore,
	users UserStore,
	source SourceVerifier,
	builds BuildCoordinator,
	compute ComputeProvisioner,
	dns DNSCertManager,
	collector LogCollector,
	tasks TaskQueue,
	cfg *config.Config,
) *DeploymentService {
	return &DeploymentService{
		projects:    projects,
		domains:     domains,
		deployments: deployments,
		logs:        logs,
		users:       users,
		source:      source,
		builds:      builds,
		compute:     compute,
		dns:         dns,
		collector:   collector,
		tasks:       tasks,
		cfg:         cfg,
	}
}
