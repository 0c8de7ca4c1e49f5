package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/nimbus-host/nimbus-backend/internal/errs"
	"github.com/nimbus-host/nimbus-backend/pkg/domain/entities"
	"github.com/nimbus-host/nimbus-backend/pkg/infrastructure/postgres/schemas"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(id string) (*entities.UserEntity, error) {
	var row schemas.User
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("user %s", id)
		}
		return nil, err
	}
	return &entities.UserEntity{
		ID:          row.ID,
		OrgID:       row.OrgID,
		Login:       row.Login,
		GithubToken: row.GithubToken,
	}, nil
}
