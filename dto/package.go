package dto

import "time"

// ==================== PACKAGE REQUEST DTOs ====================

type CreatePackageRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=214" example:"underscore"`
	Version     string `json:"version" validate:"required,min=1,max=64" example:"1.2.3"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2048" example:"Functional helpers"`
}

func (r CreatePackageRequest) Validate() error {
	return GetValidator().Struct(r)
}

type ListPackagesRequest struct {
	Query string `json:"query" form:"query" validate:"omitempty,max=214" example:"under"`
	Page  int    `json:"page" form:"page" validate:"omitempty,min=1" example:"1"`
	Limit int    `json:"limit" form:"limit" validate:"omitempty,min=1,max=100" example:"20"`
}

func (r ListPackagesRequest) Validate() error {
	return GetValidator().Struct(r)
}

// ==================== PACKAGE RESPONSE DTOs ====================

type PackageResponse struct {
	ID          string    `json:"id" example:"0198c5a2-7b14-7c1e-9e20-3f5a1b2c3d4e"`
	Name        string    `json:"name" example:"underscore"`
	Version     string    `json:"version" example:"1.2.3"`
	Description string    `json:"description,omitempty" example:"Functional helpers"`
	Size        int64     `json:"size" example:"34567"`
	SHA256      string    `json:"sha256" example:"9b71d224bd62f3785d96d46ad3ea3d73319bfbc2"`
	UploadedBy  string    `json:"uploaded_by" example:"johndoe"`
	CreatedAt   time.Time `json:"created_at" example:"2023-01-01T00:00:00Z"`
}

type PackageListResponse struct {
	Packages []PackageResponse `json:"packages"`
	Total    int64             `json:"total" example:"42"`
	Page     int               `json:"page" example:"1"`
	Limit    int               `json:"limit" example:"20"`
}
