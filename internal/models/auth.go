package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IP       string `json:"-"`
}

// LoginResponse returns the issued access token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// CreateUserRequest is used by the admin CLI to provision accounts.
type CreateUserRequest struct {
	Email    string   `validate:"required,email"`
	Password string   `validate:"required,min=8"`
	FullName string   `validate:"required,max=120"`
	Role     UserRole `validate:"required,oneof=ADMIN ANALYST OPERATOR VIEWER"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Editor returns the identity stamped on edits and runs.
func (c *JWTClaims) Editor() Editor {
	return Editor{Name: c.FullName, Email: c.Email}
}
