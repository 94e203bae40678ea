package service

import "github.com/google/uuid"

// Roles injected by the upstream auth gateway.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Identity is the request-scoped authenticated principal. It is injected
// into every core operation explicitly; nothing reads it from ambient
// state.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
