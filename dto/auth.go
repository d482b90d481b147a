package dto

import "time"

// ==================== AUTHENTICATION REQUEST DTOs ====================

type AuthenticateRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64" example:"ece30861defaultadminuser"`
	Password string "json:\"password\" validate:\"required\" example:\"correcthorsebatterystaple123(!__+@**(A'\\\"`;DROP TABLE packages;\""
}

func (r AuthenticateRequest) Validate() error {
	return GetValidator().Struct(r)
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum" example:"johndoe"`
	Password string `json:"password" validate:"required,strong_password" example:"SecurePass123!"`
	Groups   string `json:"groups,omitempty" example:"uploader,reader"`
}

func (r RegisterRequest) Validate() error {
	return GetValidator().Struct(r)
}

type RevokeTokenRequest struct {
	TokenID string `json:"token_id" validate:"required" example:"0198c5a2-7b14-7c1e-9e20-3f5a1b2c3d4e"`
}

func (r RevokeTokenRequest) Validate() error {
	return GetValidator().Struct(r)
}

// ==================== AUTHENTICATION RESPONSE DTOs ====================

type AuthenticateResponse struct {
	Token         string    `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenID       string    `json:"token_id" example:"0198c5a2-7b14-7c1e-9e20-3f5a1b2c3d4e"`
	ExpiresAt     time.Time `json:"expires_at" example:"2023-01-15T11:30:00Z"`
	RemainingUses int       `json:"remaining_uses" example:"1000"`
}

type RegisterResponse struct {
	UserID   string `json:"user_id" example:"0198c5a2-7b14-7c1e-9e20-3f5a1b2c3d4e"`
	Username string `json:"username" example:"johndoe"`
}

type ProfileResponse struct {
	UserID        string   `json:"user_id" example:"0198c5a2-7b14-7c1e-9e20-3f5a1b2c3d4e"`
	Username      string   `json:"username" example:"johndoe"`
	Role          string   `json:"role" example:"user"`
	Groups        []string `json:"groups,omitempty" example:"uploader,reader"`
	TokenID       string   `json:"token_id" example:"0198c5a2-7b14-7c1e-9e20-3f5a1b2c3d4e"`
	RemainingUses int      `json:"remaining_uses" example:"999"`
}
