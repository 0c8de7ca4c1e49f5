package entities

// Task is a unit of asynchronous work handed to the task manager.
type Task func()

// DeploymentStatus is the lifecycle state of one build+provisioning attempt.
// building is the only non-terminal state; rollback re-activates an existing
// inactive deployment rather than creating a new one.
type DeploymentStatus string

const (
	DeploymentStatusBuilding DeploymentStatus = "building"
	DeploymentStatusActive   DeploymentStatus = "active"
	DeploymentStatusInactive DeploymentStatus = "inactive"
	DeploymentStatusFailed   DeploymentStatus = "failed"
)

type DomainEnvironment string

const (
	DomainEnvironmentProduction DomainEnvironment = "production"
	DomainEnvironmentPreview    DomainEnvironment = "preview"
)

// AuditAction names the append-only deployment_logs entries.
type AuditAction string

const (
	AuditActionDeployStarted  AuditAction = "deploy_started"
	AuditActionDeployed       AuditAction = "deployed"
	AuditActionBuildFailed    AuditAction = "build_failed"
	AuditActionRollback       AuditAction = "rollback"
	AuditActionProjectDeleted AuditAction = "project_deleted"
)
