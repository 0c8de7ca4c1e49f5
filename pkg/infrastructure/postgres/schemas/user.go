package schemas

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid();column:id"`
	OrgID       uuid.UUID `gorm:"type:uuid;not null;column:org_id;index"`
	Login       string    `gorm:"unique;not null;column:login"`
	GithubToken string    `gorm:"column:github_token"`
	CreatedAt   time.Time `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
