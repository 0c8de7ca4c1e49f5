package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/postgres/schemas"
)

type DeploymentRepository struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

func (r *DeploymentRepository) Create(deployment *entities.DeploymentEntity) error {
	return r.db.Create(deploymentToSchema(deployment)).Error
}

func (r *DeploymentRepository) GetByID(id string) (*entities.DeploymentEntity, error) {
	var row schemas.Deployment
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("deployment %s", id)
		}
		return nil, err
	}
	return deploymentToEntity(&row), nil
}

func (r *DeploymentRepository) UpdateStatus(id string, status entities.DeploymentStatus) error {
	return r.db.Model(&schemas.Deployment{}).Where("id = ?", id).
		Update("status", status).Error
}

// GetActiveByProject returns the single active deployment, or nil if the
// project has none.
func (r *DeploymentRepository) GetActiveByProject(projectID uuid.UUID) (*entities.DeploymentEntity, error) {
	var row schemas.Deployment
	err := r.db.Where("project_id = ? AND status = ?", projectID, entities.DeploymentStatusActive).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return deploymentToEntity(&row), nil
}

func (r *DeploymentRepository) ListByProject(projectID uuid.UUID) ([]*entities.DeploymentEntity, error) {
	var rows []schemas.Deployment
	err := r.db.Where("project_id = ?", projectID).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	deployments := make([]*entities.DeploymentEntity, 0, len(rows))
	for i := range rows {
		deployments = append(deployments, deploymentToEntity(&rows[i]))
	}
	return deployments, nil
}

// Finalize records the outcome of a deployment attempt in one update.
func (r *DeploymentRepository) Finalize(id string, status entities.DeploymentStatus, taskDefARN, url string) error {
	now := time.Now().UTC()
	return r.db.Model(&schemas.Deployment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":           status,
		"task_def_arn":     taskDefARN,
		"url":              url,
		"last_deployed_at": &now,
	}).Error
}

func (r *DeploymentRepository) DeleteByProject(projectID uuid.UUID) error {
	return r.db.Where("project_id = ?", projectID).Delete(&schemas.Deployment{}).Error
}

func deploymentToSchema(d *entities.DeploymentEntity) *schemas.Deployment {
	return &schemas.Deployment{
		ID:             d.ID,
		ProjectID:      d.ProjectID,
		DomainID:       d.DomainID,
		Status:         d.Status,
		CommitSHA:      d.CommitSHA,
		TaskDefARN:     d.TaskDefARN,
		URL:            d.URL,
		LastDeployedAt: d.LastDeployedAt,
	}
}

func deploymentToEntity(row *schemas.Deployment) *entities.DeploymentEntity {
	return &entities.DeploymentEntity{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		DomainID:       row.DomainID,
		Status:         row.Status,
		CommitSHA:      row.CommitSHA,
		TaskDefARN:     row.TaskDefARN,
		URL:            row.URL,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
		LastDeployedAt: row.LastDeployedAt,
	}
}
