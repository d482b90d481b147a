package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/forgeyard/forge_api/dto"
	"github.com/forgeyard/forge_api/shared"
)

type AuthHandler struct {
	authSvc AuthServiceInterface
}

func NewAuthHandler(authSvc AuthServiceInterface) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// @Summary Authenticate
// @Description Exchange username/password for a signed bounded-use token
// @Tags auth
// @Accept json
// @Produce json
// @Param authenticateRequest body dto.AuthenticateRequest true "Login credentials"
// @Success 200 {object} shared.Response{data=dto.AuthenticateResponse}
// @Router /api/v1/authenticate [put]
func (h *AuthHandler) Authenticate(c *fiber.Ctx) error {
	var req dto.AuthenticateRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.authSvc.Authenticate(req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Authentication successful", resp)
}

// @Summary Register a new user
// @Description Create a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param registerRequest body dto.RegisterRequest true "Registration details"
// @Success 201 {object} shared.Response{data=dto.RegisterResponse}
// @Router /api/v1/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.authSvc.Register(req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusCreated, "User registered successfully", resp)
}

// @Summary Revoke a token
// @Description Delete a token record so it can never authenticate again
// @Tags auth
// @Accept json
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Param revokeRequest body dto.RevokeTokenRequest true "Token id to revoke"
// @Success 200 {object} shared.Response{data=nil}
// @Router /api/v1/token/revoke [post]
func (h *AuthHandler) RevokeToken(c *fiber.Ctx) error {
	var req dto.RevokeTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	if err := h.authSvc.RevokeToken(c, req); err != nil {
		return err
	}

	return shared.ResponseJSON(c, http.StatusOK, "Token revoked", nil)
}

// @Summary Current identity
// @Description Identity attached by the auth middleware, including the remaining use budget
// @Tags auth
// @Produce json
// @Security Bearer
// @Param Authorization header string true "User Bearer Token" default(Bearer <user_token>)
// @Success 200 {object} shared.Response{data=dto.ProfileResponse}
// @Router /api/v1/profile [get]
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	groups, _ := c.Locals(shared.UserGroups).([]string)
	remaining, _ := c.Locals(shared.RemainingUses).(int)

	resp := dto.ProfileResponse{
		UserID:        localString(c, shared.UserID),
		Username:      localString(c, shared.Username),
		Role:          localString(c, shared.UserRole),
		Groups:        groups,
		TokenID:       localString(c, shared.TokenID),
		RemainingUses: remaining,
	}

	return shared.ResponseOK(c, resp)
}

func localString(c *fiber.Ctx, key string) string {
	v, _ := c.Locals(key).(string)
	return v
}
