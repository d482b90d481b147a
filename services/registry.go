package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/forgeyard/forge_api/dto"
	"github.com/forgeyard/forge_api/model"
	"github.com/forgeyard/forge_api/shared"
)

// RegistryService is the business layer behind the protected endpoints:
// conventional CRUD over package rows plus their blobs in object storage.
type RegistryService struct {
	appContext.DefaultService

	sqlSvc      *PostgresService
	artifactSvc *ArtifactService
}

const REGISTRY_SVC = "registry_svc"

func (svc RegistryService) Id() string {
	return REGISTRY_SVC
}

func (svc *RegistryService) Configure(ctx *appContext.Context) error {
	svc.sqlSvc = ctx.Service(POSTGRES_SVC).(*PostgresService)
	svc.artifactSvc = ctx.Service(ARTIFACT_SVC).(*ArtifactService)
	return svc.DefaultService.Configure(ctx)
}

func (svc *RegistryService) Start() error {
	return nil
}

func (svc *RegistryService) ListPackages(req dto.ListPackagesRequest) (*dto.PackageListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = 20
	}

	packages, total, err := svc.sqlSvc.ListPackages(req.Query, page, limit)
	if err != nil {
		return nil, shared.NewInternalError(err)
	}

	out := make([]dto.PackageResponse, 0, len(packages))
	for i := range packages {
		out = append(out, mapPackageToResponse(&packages[i]))
	}

	return &dto.PackageListResponse{
		Packages: out,
		Total:    total,
		Page:     page,
		Limit:    limit,
	}, nil
}

func (svc *RegistryService) GetPackage(id string) (*dto.PackageResponse, error) {
	pkg, err := svc.sqlSvc.GetPackage(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "Package not found")
		}
		return nil, shared.NewInternalError(err)
	}

	resp := mapPackageToResponse(pkg)
	return &resp, nil
}

func (svc *RegistryService) UploadPackage(ctx context.Context, req dto.CreatePackageRequest, content []byte, uploadedBy string) (*dto.PackageResponse, error) {
	if existing, err := svc.sqlSvc.GetPackageByNameVersion(req.Name, req.Version); err == nil && existing != nil {
		return nil, shared.NewConflictError(nil, "Package version already exists")
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewInternalError(err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, shared.NewInternalError(err)
	}

	sum := sha256.Sum256(content)
	contentKey := fmt.Sprintf("packages/%s/%s/%s.zip", req.Name, req.Version, id.String())

	if err := svc.artifactSvc.Put(ctx, contentKey, content, "application/zip"); err != nil {
		return nil, shared.NewInternalError(err)
	}

	now := time.Now()
	pkg := &model.Package{
		ID:          id.String(),
		Name:        req.Name,
		Version:     req.Version,
		Description: req.Description,
		ContentKey:  contentKey,
		Size:        int64(len(content)),
		SHA256:      hex.EncodeToString(sum[:]),
		UploadedBy:  uploadedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := svc.sqlSvc.CreatePackage(pkg); err != nil {
		// Roll the blob back so storage does not accumulate orphans.
		if delErr := svc.artifactSvc.Delete(ctx, contentKey); delErr != nil {
			log.WithError(delErr).WithField("key", contentKey).Warn("Failed to clean up orphaned blob")
		}
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, shared.NewConflictError(err, "Package version already exists")
		}
		return nil, shared.NewInternalError(err)
	}

	resp := mapPackageToResponse(pkg)
	return &resp, nil
}

func (svc *RegistryService) DownloadPackage(ctx context.Context, id string) (*model.Package, []byte, error) {
	pkg, err := svc.sqlSvc.GetPackage(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, shared.NewNotFoundError(err, "Package not found")
		}
		return nil, nil, shared.NewInternalError(err)
	}

	content, err := svc.artifactSvc.Get(ctx, pkg.ContentKey)
	if err != nil {
		return nil, nil, shared.NewInternalError(err)
	}

	return pkg, content, nil
}

func (svc *RegistryService) DeletePackage(ctx context.Context, id string) error {
	pkg, err := svc.sqlSvc.GetPackage(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError(err, "Package not found")
		}
		return shared.NewInternalError(err)
	}

	if err := svc.sqlSvc.DeletePackage(id); err != nil {
		return shared.NewInternalError(err)
	}

	if err := svc.artifactSvc.Delete(ctx, pkg.ContentKey); err != nil {
		log.WithError(err).WithField("key", pkg.ContentKey).Warn("Failed to delete package blob")
	}

	return nil
}

// ResetRegistry wipes all package rows. Blobs are left for the bucket
// lifecycle policy; only the metadata reset must be immediate.
func (svc *RegistryService) ResetRegistry() error {
	if err := svc.sqlSvc.ResetRegistry(); err != nil {
		return shared.NewInternalError(err)
	}
	return nil
}

func mapPackageToResponse(pkg *model.Package) dto.PackageResponse {
	return dto.PackageResponse{
		ID:          pkg.ID,
		Name:        pkg.Name,
		Version:     pkg.Version,
		Description: pkg.Description,
		Size:        pkg.Size,
		SHA256:      pkg.SHA256,
		UploadedBy:  pkg.UploadedBy,
		CreatedAt:   pkg.CreatedAt,
	}
}
