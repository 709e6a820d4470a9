package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/supplyhub-backend/internal/users"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
)

// RegisterRequest is the sign-up payload. Role defaults to customer.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,max=32"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Address  string `json:"address" validate:"max=500"`
	Role     string `json:"role" validate:"omitempty"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SessionUser is the identity summary returned with a token.
type SessionUser struct {
	ID    uuid.UUID  `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  enums.Role `json:"role"`
}

// SessionResponse is produced by register and login. The controller moves
// Token into the auth cookie and also echoes it in the body.
type SessionResponse struct {
	User  SessionUser `json:"user"`
	Token string      `json:"token"`
}

func sessionUser(u *users.UserDTO) SessionUser {
	return SessionUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
