package repositories

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/postgres/schemas"
)

type DomainRepository struct {
	db *gorm.DB
}

func NewDomainRepository(db *gorm.DB) *DomainRepository {
	return &DomainRepository{db: db}
}

func (r *DomainRepository) Create(domain *entities.DomainEntity) error {
	return r.db.Create(domainToSchema(domain)).Error
}

func (r *DomainRepository) GetByID(id string) (*entities.DomainEntity, error) {
	var row schemas.Domain
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("domain %s", id)
		}
		return nil, err
	}
	return domainToEntity(&row), nil
}

func (r *DomainRepository) GetByProjectAndName(projectID uuid.UUID, name string) (*entities.DomainEntity, error) {
	var row schemas.Domain
	err := r.db.Where("project_id = ? AND name = ?", projectID, name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("domain %s", name)
		}
		return nil, err
	}
	return domainToEntity(&row), nil
}

func (r *DomainRepository) ListByProject(projectID uuid.UUID) ([]*entities.DomainEntity, error) {
	var rows []schemas.Domain
	if err := r.db.Where("project_id = ?", projectID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	domains := make([]*entities.DomainEntity, 0, len(rows))
	for i := range rows {
		domains = append(domains, domainToEntity(&rows[i]))
	}
	return domains, nil
}

func (r *DomainRepository) UpdateDeployment(id string, deploymentID *uuid.UUID) error {
	return r.db.Model(&schemas.Domain{}).Where("id = ?", id).
		Update("deployment_id", deploymentID).Error
}

func (r *DomainRepository) UpdateCertificate(id string, certificateARN string) error {
	return r.db.Model(&schemas.Domain{}).Where("id = ?", id).
		Update("certificate_arn", certificateARN).Error
}

func (r *DomainRepository) UpdateSnapshot(id string, snapshot []byte) error {
	return r.db.Model(&schemas.Domain{}).Where("id = ?", id).
		Update("record_snapshot", datatypes.JSON(snapshot)).Error
}

func (r *DomainRepository) SetPrimary(id string, primary bool) error {
	return r.db.Model(&schemas.Domain{}).Where("id = ?", id).
		Update("is_primary", primary).Error
}

func (r *DomainRepository) DeleteByProject(projectID uuid.UUID) error {
	return r.db.Where("project_id = ?", projectID).Delete(&schemas.Domain{}).Error
}

func domainToSchema(d *entities.DomainEntity) *schemas.Domain {
	return &schemas.Domain{
		ID:             d.ID,
		ProjectID:      d.ProjectID,
		Name:           d.Name,
		IsPrimary:      d.IsPrimary,
		Environment:    d.Environment,
		CertificateARN: d.CertificateARN,
		RecordSnapshot: datatypes.JSON(d.RecordSnapshot),
		RedirectTarget: d.RedirectTarget,
		DeploymentID:   d.DeploymentID,
	}
}

func domainToEntity(row *schemas.Domain) *entities.DomainEntity {
	return &entities.DomainEntity{
		ID:             row.ID,
		ProjectID:      row.ProjectID,
		Name:           row.Name,
		IsPrimary:      row.IsPrimary,
		Environment:    row.Environment,
		CertificateARN: row.CertificateARN,
		RecordSnapshot: []byte(row.RecordSnapshot),
		RedirectTarget: row.RedirectTarget,
		DeploymentID:   row.DeploymentID,
	}
}
