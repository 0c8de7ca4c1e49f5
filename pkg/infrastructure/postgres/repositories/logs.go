package repositories

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/postgres/schemas"
)

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// AppendAudit writes one append-only deployment_logs row.
func (r *LogRepository) AppendAudit(entry *entities.AuditEntry) error {
	return r.db.Create(&schemas.DeploymentLog{
		ID:           entry.ID,
		ProjectID:    entry.ProjectID,
		DeploymentID: entry.DeploymentID,
		Action:       entry.Action,
		Actor:        entry.Actor,
	}).Error
}

func (r *LogRepository) ListAuditByProject(projectID uuid.UUID) ([]*entities.AuditEntry, error) {
	var rows []schemas.DeploymentLog
	err := r.db.Where("project_id = ?", projectID).Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*entities.AuditEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, &entities.AuditEntry{
			ID:           rows[i].ID,
			ProjectID:    rows[i].ProjectID,
			DeploymentID: rows[i].DeploymentID,
			Action:       rows[i].Action,
			Actor:        rows[i].Actor,
			CreatedAt:    rows[i].CreatedAt,
		})
	}
	return entries, nil
}

func (r *LogRepository) InsertBuildLog(log *entities.BuildLogEntity) error {
	return r.db.Create(&schemas.BuildLog{
		LogID:        log.LogID,
		DeploymentID: log.DeploymentID,
		Content:      log.Content,
	}).Error
}

func (r *LogRepository) GetBuildLogByDeployment(deploymentID uuid.UUID) (*entities.BuildLogEntity, error) {
	var row schemas.BuildLog
	err := r.db.Where("deployment_id = ?", deploymentID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("build log for deployment %s", deploymentID)
		}
		return nil, err
	}
	return &entities.BuildLogEntity{
		LogID:        row.LogID,
		DeploymentID: row.DeploymentID,
		Content:      row.Content,
		CreatedAt:    row.CreatedAt,
	}, nil
}

func (r *LogRepository) InsertRuntimeLog(log *entities.RuntimeLogEntity) error {
	return r.db.Create(&schemas.RuntimeLog{
		LogID:        log.LogID,
		DeploymentID: log.DeploymentID,
		Stream:       log.Stream,
		Content:      log.Content,
		ProbeStatus:  log.ProbeStatus,
		Hostname:     log.Hostname,
	}).Error
}

// DeleteByProject removes every log row tied to the project's deployments.
// Runs first in teardown's database phase so foreign keys never block.
func (r *LogRepository) DeleteByProject(projectID uuid.UUID) error {
	deploymentIDs := r.db.Model(&schemas.Deployment{}).
		Select("id").Where("project_id = ?", projectID)

	if err := r.db.Where("deployment_id IN (?)", deploymentIDs).
		Delete(&schemas.BuildLog{}).Error; err != nil {
		return err
	}
	if err := r.db.Where("deployment_id IN (?)", deploymentIDs).
		Delete(&schemas.RuntimeLog{}).Error; err != nil {
		return err
	}
	return r.db.Where("project_id = ?", projectID).
		Delete(&schemas.DeploymentLog{}).Error
}
