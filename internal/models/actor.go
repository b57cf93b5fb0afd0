package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ActorRole distinguishes the two sides of the request workflow.
type ActorRole string

const (
	RoleRequester ActorRole = "requester"
	RoleFulfiller ActorRole = "fulfiller"
)

// Valid reports whether the role is one of the known values.
func (r ActorRole) Valid() bool {
	return r == RoleRequester || r == RoleFulfiller
}

// Actor is the authenticated identity for the current session. It is
// created at sign-in, immutable afterwards, and destroyed at sign-out.
type Actor struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        ActorRole `json:"role"`
}

// LoginRequest holds credentials for authenticating an actor.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and actor info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	Actor       Actor     `json:"actor"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	ActorID     string    `json:"actor_id"`
	Role        ActorRole `json:"role"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	jwt.RegisteredClaims
}

// Actor rebuilds the actor snapshot carried by the claims.
func (c *JWTClaims) Actor() Actor {
	return Actor{
		ID:          c.ActorID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Role:        c.Role,
	}
}
