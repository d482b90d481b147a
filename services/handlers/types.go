package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/forgeyard/forge_api/dto"
	"github.com/forgeyard/forge_api/model"
)

type AuthServiceInterface interface {
	Authenticate(req dto.AuthenticateRequest) (*dto.AuthenticateResponse, error)
	Register(req dto.RegisterRequest) (*dto.RegisterResponse, error)
	RevokeToken(c *fiber.Ctx, req dto.RevokeTokenRequest) error
	RequiredAuth() fiber.Handler
	RequireRole(role string) fiber.Handler
}

type RegistryServiceInterface interface {
	ListPackages(req dto.ListPackagesRequest) (*dto.PackageListResponse, error)
	GetPackage(id string) (*dto.PackageResponse, error)
	UploadPackage(ctx context.Context, req dto.CreatePackageRequest, content []byte, uploadedBy string) (*dto.PackageResponse, error)
	DownloadPackage(ctx context.Context, id string) (*model.Package, []byte, error)
	DeletePackage(ctx context.Context, id string) error
	ResetRegistry() error
}
