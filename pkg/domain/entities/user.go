package entities

import (
	"github.com/google/uuid"
)

type UserEntity struct {
	ID          uuid.UUID `json:"id"`
	OrgID       uuid.UUID `json:"orgId"`
	Login       string    `json:"login"`
	GithubToken string    `json:"-"`
}
