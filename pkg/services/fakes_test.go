package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/pkg/builder"
	"github.com/nimbus-host/nimbus-backend/pkg/dnscert"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

// In-memory stores and component fakes backing the engine tests.

type memStores struct {
	mu          sync.Mutex
	projects    map[uuid.UUID]*entities.ProjectEntity
	domains     map[uuid.UUID]*entities.DomainEntity
	deployments map[uuid.UUID]*entities.DeploymentEntity
	users       map[uuid.UUID]*entities.UserEntity
	audit       []*entities.AuditEntry
	buildLogs   map[uuid.UUID]*entities.BuildLogEntity
}

func newMemStores() *memStores {
	return &memStores{
		projects:    map[uuid.UUID]*entities.ProjectEntity{},
		domains:     map[uuid.UUID]*entities.DomainEntity{},
		deployments: map[uuid.UUID]*entities.DeploymentEntity{},
		users:       map[uuid.UUID]*entities.UserEntity{},
		buildLogs:   map[uuid.UUID]*entities.BuildLogEntity{},
	}
}

type memProjects struct{ s *memStores }

func (m *memProjects) Create(p *entities.ProjectEntity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *p
	m.s.projects[p.ID] = &cp
	return nil
}

func (m *memProjects) Update(p *entities.ProjectEntity) error {
	return m.Create(p)
}

func (m *memProjects) GetByID(id string) (*entities.ProjectEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errs.NotFound("project %s", id)
	}
	p, ok := m.s.projects[parsed]
	if !ok {
		return nil, errs.NotFound("project %s", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) GetByName(orgID uuid.UUID, name string) (*entities.ProjectEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.projects {
		if p.OrgID == orgID && p.Name == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errs.NotFound("project %s", name)
}

func (m *memProjects) ListByOrg(orgID uuid.UUID) ([]*entities.ProjectEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entities.ProjectEntity
	for _, p := range m.s.projects {
		if p.OrgID == orgID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProjects) UpdateDeploymentPointers(id string, previous, current *uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, _ := uuid.Parse(id)
	p, ok := m.s.projects[parsed]
	if !ok {
		return errs.NotFound("project %s", id)
	}
	p.PreviousDeploymentID = previous
	p.CurrentDeploymentID = current
	return nil
}

func (m *memProjects) Delete(id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, _ := uuid.Parse(id)
	delete(m.s.projects, parsed)
	return nil
}

type memDomains struct{ s *memStores }

func (m *memDomains) Create(d *entities.DomainEntity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *d
	m.s.domains[d.ID] = &cp
	return nil
}

func (m *memDomains) GetByProjectAndName(projectID uuid.UUID, name string) (*entities.DomainEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.domains {
		if d.ProjectID == projectID && d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, errs.NotFound("domain %s", name)
}

func (m *memDomains) ListByProject(projectID uuid.UUID) ([]*entities.DomainEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entities.DomainEntity
	for _, d := range m.s.domains {
		if d.ProjectID == projectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDomains) UpdateDeployment(id string, deploymentID *uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, _ := uuid.Parse(id)
	if d, ok := m.s.domains[parsed]; ok {
		d.DeploymentID = deploymentID
	}
	return nil
}

func (m *memDomains) UpdateCertificate(id string, certificateARN string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, _ := uuid.Parse(id)
	if d, ok := m.s.domains[parsed]; ok {
		d.CertificateARN = certificateARN
	}
	return nil
}

func (m *memDomains) UpdateSnapshot(id string, snapshot []byte) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, _ := uuid.Parse(id)
	if d, ok := m.s.domains[parsed]; ok {
		d.RecordSnapshot = snapshot
	}
	return nil
}

func (m *memDomains) SetPrimary(id string, primary bool) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, _ := uuid.Parse(id)
	if d, ok := m.s.domains[parsed]; ok {
		d.IsPrimary = primary
	}
	return nil
}

func (m *memDomains) DeleteByProject(projectID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, d := range m.s.domains {
		if d.ProjectID == projectID {
			delete(m.s.domains, id)
		}
	}
	return nil
}

type memDeployments struct{ s *memStores }

func (m *memDeployments) Create(d *entities.DeploymentEntity) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *d
	m.s.deployments[d.ID] = &cp
	return nil
}

func (m *memDeployments) GetByID(id string) (*entities.DeploymentEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errs.NotFound("deployment %s", id)
	}
	d, ok := m.s.deployments[parsed]
	if !ok {
		return nil, errs.NotFound("deployment %s", id)
	}
	cp := *d
	return &cp, nil
}

func (m *memDeployments) UpdateStatus(id string, status entities.DeploymentStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, _ := uuid.Parse(id)
	if d, ok := m.s.deployments[parsed]; ok {
		d.Status = status
	}
	return nil
}

func (m *memDeployments) GetActiveByProject(projectID uuid.UUID) (*entities.DeploymentEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, d := range m.s.deployments {
		if d.ProjectID == projectID && d.Status == entities.DeploymentStatusActive {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memDeployments) ListByProject(projectID uuid.UUID) ([]*entities.DeploymentEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entities.DeploymentEntity
	for _, d := range m.s.deployments {
		if d.ProjectID == projectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memDeployments) Finalize(id string, status entities.DeploymentStatus, taskDefARN, url string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, _ := uuid.Parse(id)
	if d, ok := m.s.deployments[parsed]; ok {
		d.Status = status
		d.TaskDefARN = taskDefARN
		d.URL = url
	}
	return nil
}

func (m *memDeployments) DeleteByProject(projectID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, d := range m.s.deployments {
		if d.ProjectID == projectID {
			delete(m.s.deployments, id)
		}
	}
	return nil
}

type memLogs struct{ s *memStores }

func (m *memLogs) AppendAudit(entry *entities.AuditEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *entry
	m.s.audit = append(m.s.audit, &cp)
	return nil
}

func (m *memLogs) ListAuditByProject(projectID uuid.UUID) ([]*entities.AuditEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entities.AuditEntry
	for _, e := range m.s.audit {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLogs) GetBuildLogByDeployment(deploymentID uuid.UUID) (*entities.BuildLogEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	log, ok := m.s.buildLogs[deploymentID]
	if !ok {
		return nil, errs.NotFound("build log for deployment %s", deploymentID)
	}
	return log, nil
}

func (m *memLogs) DeleteByProject(projectID uuid.UUID) error {
	return nil
}

type memUsers struct{ s *memStores }

func (m *memUsers) GetByID(id string) (*entities.UserEntity, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, errs.NotFound("user %s", id)
	}
	u, ok := m.s.users[parsed]
	if !ok {
		return nil, errs.NotFound("user %s", id)
	}
	return u, nil
}

// Component fakes.

type fakeSource struct {
	sha string
	err error
}

func (f *fakeSource) Verify(ctx context.Context, repoRef, branch, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.sha, nil
}

type fakeBuilds struct {
	runErr      error
	lines       []string
	ensureRepos []string
	runs        int
	deletedRepo string
	deletedProj string
	deleteErr   error
}

func (f *fakeBuilds) EnsureImageRepository(ctx context.Context, name string) error {
	f.ensureRepos = append(f.ensureRepos, name)
	return nil
}

func (f *fakeBuilds) DeleteImageRepository(ctx context.Context, name string) error {
	f.deletedRepo = name
	return nil
}

func (f *fakeBuilds) EnsureProject(ctx context.Context, cfg builder.BuildConfig) error {
	return nil
}

func (f *fakeBuilds) DeleteBuildProject(ctx context.Context, projectName string) error {
	f.deletedProj = projectName
	return f.deleteErr
}

func (f *fakeBuilds) Run(ctx context.Context, cfg builder.BuildConfig, onLine func(string)) (string, error) {
	f.runs++
	for _, line := range f.lines {
		if onLine != nil {
			onLine(line)
		}
	}
	if f.runErr != nil {
		return "", f.runErr
	}
	return fmt.Sprintf("registry.example.com/%s:%s", cfg.ImageRepo, cfg.ImageTag), nil
}

type fakeCompute struct {
	taskDefs         int
	serviceUpserts   int
	forcedTaskDef    string
	reconciled       []string
	ensuredHosts     []string
	deletedRuleHosts []string
	deletedService   string
	deletedTG        string
	deletedLogGroups []string
	upsertErr        error
	deleteServiceErr error
}

func (f *fakeCompute) RegisterTaskDefinition(ctx context.Context, projectName, imageRef string, envVars map[string]string) (string, error) {
	f.taskDefs++
	return fmt.Sprintf("arn:taskdef/%s-task:%d", projectName, f.taskDefs), nil
}

func (f *fakeCompute) EnsureTargetGroup(ctx context.Context, projectName string) (string, error) {
	return "arn:targetgroup/" + projectName + "-tg", nil
}

func (f *fakeCompute) ReconcileListenerRules(ctx context.Context, projectName, targetGroupARN string) error {
	f.reconciled = append(f.reconciled, projectName)
	return nil
}

func (f *fakeCompute) EnsureHostRules(ctx context.Context, host, targetGroupARN string) error {
	f.ensuredHosts = append(f.ensuredHosts, host)
	return nil
}

func (f *fakeCompute) DeleteRulesForHosts(ctx context.Context, hosts []string) error {
	f.deletedRuleHosts = append(f.deletedRuleHosts, hosts...)
	return nil
}

func (f *fakeCompute) CreateOrUpdateService(ctx context.Context, projectName, taskDefARN, targetGroupARN string) error {
	f.serviceUpserts++
	return f.upsertErr
}

func (f *fakeCompute) ForceDeployment(ctx context.Context, projectName, taskDefARN string) error {
	f.forcedTaskDef = taskDefARN
	return nil
}

func (f *fakeCompute) DeleteService(ctx context.Context, projectName string) error {
	f.deletedService = projectName
	return f.deleteServiceErr
}

func (f *fakeCompute) DeleteTargetGroup(ctx context.Context, projectName string) error {
	f.deletedTG = projectName
	return nil
}

func (f *fakeCompute) DeleteLogGroup(ctx context.Context, name string) error {
	f.deletedLogGroups = append(f.deletedLogGroups, name)
	return nil
}

type fakeDNS struct {
	certARN        string
	attached       []string
	updatedHosts   []string
	verified       []dnscert.Record
	deletedRecords []dnscert.Record
	detached       []string
	deletedCerts   []string
}

func (f *fakeDNS) EnsureCertificate(ctx context.Context, projectName, recordedARN string) (string, error) {
	if recordedARN != "" {
		return recordedARN, nil
	}
	return f.certARN, nil
}

func (f *fakeDNS) AttachCertificate(ctx context.Context, certARN string) error {
	f.attached = append(f.attached, certARN)
	return nil
}

func (f *fakeDNS) DetachCertificate(ctx context.Context, certARN string) error {
	f.detached = append(f.detached, certARN)
	return nil
}

func (f *fakeDNS) DeleteCertificate(ctx context.Context, certARN string) error {
	f.deletedCerts = append(f.deletedCerts, certARN)
	return nil
}

func (f *fakeDNS) UpdateRecords(ctx context.Context, projectName string, hostnames []string) ([]dnscert.Record, error) {
	f.updatedHosts = append([]string(nil), hostnames...)
	records := make([]dnscert.Record, 0, len(hostnames))
	for _, h := range hostnames {
		records = append(records, dnscert.Record{Name: h, Type: "CNAME", Value: "x"})
	}
	return records, nil
}

func (f *fakeDNS) DeleteRecords(ctx context.Context, records []dnscert.Record) error {
	f.deletedRecords = append(f.deletedRecords, records...)
	return nil
}

func (f *fakeDNS) VerifyPropagation(ctx context.Context, record dnscert.Record) bool {
	f.verified = append(f.verified, record)
	return true
}

type fakeCollector struct {
	persisted map[uuid.UUID][]string
	runtime   int
}

func (f *fakeCollector) PersistBuildLogs(ctx context.Context, deploymentID uuid.UUID, lines []string) (string, error) {
	if f.persisted == nil {
		f.persisted = map[uuid.UUID][]string{}
	}
	f.persisted[deploymentID] = append([]string(nil), lines...)
	return "log-" + deploymentID.String(), nil
}

func (f *fakeCollector) CollectRuntimeLogs(ctx context.Context, projectName string, deploymentID uuid.UUID) error {
	f.runtime++
	return nil
}

// syncTasks runs queued work inline so tests stay deterministic.
type syncTasks struct{}

func (syncTasks) AddTask(task entities.Task) { task() }
