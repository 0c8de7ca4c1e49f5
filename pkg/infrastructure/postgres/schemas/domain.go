package schemas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
)

type Domain struct {
	ID             uuid.UUID                  `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	ProjectID      uuid.UUID                  `gorm:"type:uuid;not null;column:project_id;uniqueIndex:idx_domains_project_name"`
	Project        Project                    `gorm:"foreignKey:ProjectID"`
	Name           string                     `gorm:"not null;column:name;uniqueIndex:idx_domains_project_name"`
	IsPrimary      bool                       `gorm:"not null;default:false;column:is_primary"`
	Environment    entities.DomainEnvironment `gorm:"not null;default:production;column:environment"`
	CertificateARN string                     `gorm:"column:certificate_arn"`
	RecordSnapshot datatypes.JSON             `gorm:"type:jsonb;column:record_snapshot"`
	RedirectTarget string                     `gorm:"column:redirect_target"`
	DeploymentID   *uuid.UUID                 `gorm:"type:uuid;column:deployment_id"`
	CreatedAt      time.Time                  `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt      time.Time                  `gorm:"autoUpdateTime;column:updated_at"`
}

func (Domain) TableName() string {
	return "domains"
}
