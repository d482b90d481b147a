package handlers

import (
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/forgeyard/forge_api/dto"
	"github.com/forgeyard/forge_api/shared"
)

type RegistryHandler struct {
	registrySvc RegistryServiceInterface
}

func NewRegistryHandler(registrySvc RegistryServiceInterface) *RegistryHandler {
	return &RegistryHandler{registrySvc: registrySvc}
}

// @Summary List packages
// @Description Paginated package directory, optionally filtered by name
// @Tags packages
// @Produce json
// @Security Bearer
// @Param query query string false "Name filter"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} shared.Response{data=dto.PackageListResponse}
// @Router /api/v1/packages [get]
func (h *RegistryHandler) ListPackages(c *fiber.Ctx) error {
	req := dto.ListPackagesRequest{
		Query: c.Query("query"),
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 20),
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.registrySvc.ListPackages(req)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Get package metadata
// @Tags packages
// @Produce json
// @Security Bearer
// @Param id path string true "Package id"
// @Success 200 {object} shared.Response{data=dto.PackageResponse}
// @Router /api/v1/packages/{id} [get]
func (h *RegistryHandler) GetPackage(c *fiber.Ctx) error {
	resp, err := h.registrySvc.GetPackage(c.Params("id"))
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Upload a package
// @Description Multipart upload: metadata fields plus the package archive
// @Tags packages
// @Accept mpfd
// @Produce json
// @Security Bearer
// @Param name formData string true "Package name"
// @Param version formData string true "Package version"
// @Param description formData string false "Description"
// @Param content formData file true "Package archive"
// @Success 201 {object} shared.Response{data=dto.PackageResponse}
// @Router /api/v1/packages [post]
func (h *RegistryHandler) UploadPackage(c *fiber.Ctx) error {
	req := dto.CreatePackageRequest{
		Name:        c.FormValue("name"),
		Version:     c.FormValue("version"),
		Description: c.FormValue("description"),
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	fileHeader, err := c.FormFile("content")
	if err != nil {
		return shared.NewBadRequestError(err, "Missing package content")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return shared.NewBadRequestError(err, "Unreadable package content")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return shared.NewBadRequestError(err, "Unreadable package content")
	}

	uploadedBy, _ := c.Locals(shared.Username).(string)

	resp, err := h.registrySvc.UploadPackage(c.Context(), req, content, uploadedBy)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusCreated, "Package uploaded", resp)
}

// @Summary Download package content
// @Tags packages
// @Produce octet-stream
// @Security Bearer
// @Param id path string true "Package id"
// @Success 200 {file} binary
// @Router /api/v1/packages/{id}/download [get]
func (h *RegistryHandler) DownloadPackage(c *fiber.Ctx) error {
	pkg, content, err := h.registrySvc.DownloadPackage(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+pkg.Name+"-"+pkg.Version+`.zip"`)
	return c.Send(content)
}

// @Summary Delete a package
// @Tags packages
// @Produce json
// @Security Bearer
// @Param id path string true "Package id"
// @Success 200 {object} shared.Response{data=nil}
// @Router /api/v1/packages/{id} [delete]
func (h *RegistryHandler) DeletePackage(c *fiber.Ctx) error {
	if err := h.registrySvc.DeletePackage(c.Context(), c.Params("id")); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Package deleted", nil)
}

// @Summary Reset the registry
// @Description Admin-only: remove every package record
// @Tags admin
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=nil}
// @Router /api/v1/reset [delete]
func (h *RegistryHandler) ResetRegistry(c *fiber.Ctx) error {
	if err := h.registrySvc.ResetRegistry(); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Registry reset", nil)
}
