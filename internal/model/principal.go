package model

import "github.com/google/uuid"

type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Principal is the authenticated dashboard operator.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
