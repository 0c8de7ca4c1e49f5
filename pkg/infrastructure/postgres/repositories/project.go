package repositories

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/postgres/schemas"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(project *entities.ProjectEntity) error {
	row, err := projectToSchema(project)
	if err != nil {
		return err
	}
	return r.db.Create(row).Error
}

func (r *ProjectRepository) Update(project *entities.ProjectEntity) error {
	row, err := projectToSchema(project)
	if err != nil {
		return err
	}
	return r.db.Model(&schemas.Project{}).Where("id = ?", project.ID).Updates(row).Error
}

func (r *ProjectRepository) GetByID(id string) (*entities.ProjectEntity, error) {
	var row schemas.Project
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("project %s", id)
		}
		return nil, err
	}
	return projectToEntity(&row)
}

func (r *ProjectRepository) GetByName(orgID uuid.UUID, name string) (*entities.ProjectEntity, error) {
	var row schemas.Project
	err := r.db.Where("org_id = ? AND name = ?", orgID, name).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("project %s", name)
		}
		return nil, err
	}
	return projectToEntity(&row)
}

func (r *ProjectRepository) ListByOrg(orgID uuid.UUID) ([]*entities.ProjectEntity, error) {
	var rows []schemas.Project
	if err := r.db.Where("org_id = ?", orgID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	projects := make([]*entities.ProjectEntity, 0, len(rows))
	for i := range rows {
		p, err := projectToEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// UpdateDeploymentPointers rotates previous/current on redeploy and rollback.
func (r *ProjectRepository) UpdateDeploymentPointers(id string, previous, current *uuid.UUID) error {
	return r.db.Model(&schemas.Project{}).Where("id = ?", id).Updates(map[string]interface{}{
		"previous_deployment_id": previous,
		"current_deployment_id":  current,
	}).Error
}

func (r *ProjectRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&schemas.Project{}).Error
}

func projectToSchema(p *entities.ProjectEntity) (*schemas.Project, error) {
	envVars, err := json.Marshal(p.EnvVars)
	if err != nil {
		return nil, err
	}
	return &schemas.Project{
		ID:                   p.ID,
		OrgID:                p.OrgID,
		Name:                 p.Name,
		Repo:                 p.Repo,
		Branch:               p.Branch,
		InstallCommand:       p.InstallCommand,
		BuildCommand:         p.BuildCommand,
		RootDir:              p.RootDir,
		OutputDir:            p.OutputDir,
		EnvVars:              datatypes.JSON(envVars),
		PreviousDeploymentID: p.PreviousDeploymentID,
		CurrentDeploymentID:  p.CurrentDeploymentID,
	}, nil
}

func projectToEntity(row *schemas.Project) (*entities.ProjectEntity, error) {
	var envVars map[string]string
	if len(row.EnvVars) > 0 {
		if err := json.Unmarshal(row.EnvVars, &envVars); err != nil {
			return nil, err
		}
	}
	return &entities.ProjectEntity{
		ID:                   row.ID,
		OrgID:                row.OrgID,
		Name:                 row.Name,
		Repo:                 row.Repo,
		Branch:               row.Branch,
		InstallCommand:       row.InstallCommand,
		BuildCommand:         row.BuildCommand,
		RootDir:              row.RootDir,
		OutputDir:            row.OutputDir,
		EnvVars:              envVars,
		PreviousDeploymentID: row.PreviousDeploymentID,
		CurrentDeploymentID:  row.CurrentDeploymentID,
	}, nil
}
