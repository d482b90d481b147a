package services

import (
	"errors"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/forgeyard/forge_api/dto"
	"github.com/forgeyard/forge_api/model"
	"github.com/forgeyard/forge_api/shared"
)

// AuthService owns the login/issuance path and the authentication middleware
// that fronts every protected route.
// userStore is the slice of the database layer the auth flow needs.
type userStore interface {
	GetUserByUsername(username string) (*model.User, error)
	CreateUser(user *model.User) error
	UpdateUser(user *model.User) error
}

type AuthService struct {
	appContext.DefaultService

	users    userStore
	jwtSvc   *JWTService
	tokenSvc *TokenService
	credSvc  *CredentialService
}

const AUTH_SVC = "auth_svc"

// exemptPaths bypass authentication entirely: health probes, docs, metrics
// and the issuance endpoints themselves (no token exists yet there).
var exemptPaths = map[string]bool{
	"/health":              true,
	"/ping":                true,
	"/api/v1/ping":         true,
	"/api/v1/authenticate": true,
	"/api/v1/register":     true,
}

var exemptPrefixes = []string{"/swagger"}

func (svc AuthService) Id() string {
	return AUTH_SVC
}

func (svc *AuthService) Configure(ctx *appContext.Context) error {
	svc.users = ctx.Service(POSTGRES_SVC).(*PostgresService)
	svc.jwtSvc = ctx.Service(JWT_SVC).(*JWTService)
	svc.tokenSvc = ctx.Service(TOKEN_SVC).(*TokenService)
	svc.credSvc = ctx.Service(CREDENTIALS_SVC).(*CredentialService)
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuthService) Start() error {
	return nil
}

func isExemptPath(path string) bool {
	if exemptPaths[path] {
		return true
	}
	for _, prefix := range exemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RequiredAuth is the gate in front of every protected request. Order is
// fixed: extract, verify signature and expiry, then consume one use. A token
// that fails verification never reaches the store and never burns a use.
func (svc *AuthService) RequiredAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isExemptPath(c.Path()) {
			return c.Next()
		}

		token, err := svc.jwtSvc.ExtractToken(
			c.Get(shared.HeaderAuthPrimary),
			c.Get(shared.HeaderAuthAlternate),
		)
		if err != nil {
			authRejectionsTotal.WithLabelValues("missing").Inc()
			return shared.ResponseUnauthorized(c)
		}

		claims, err := svc.jwtSvc.Verify(token)
		if err != nil {
			authRejectionsTotal.WithLabelValues("unverifiable").Inc()
			return shared.ResponseUnauthorized(c)
		}

		record, err := svc.tokenSvc.Consume(c.Context(), claims.ID)
		if err != nil {
			if !errors.Is(err, ErrTokenNotFound) {
				// Store unreachable is an internal fault, but the gate still
				// fails closed rather than letting the request through.
				log.WithError(err).Error("Token store error during consumption")
				return shared.NewInternalError(err)
			}
			authRejectionsTotal.WithLabelValues("consumed").Inc()
			return shared.ResponseUnauthorized(c)
		}

		authAllowedTotal.Inc()

		c.Locals(shared.UserID, record.UserID)
		c.Locals(shared.Username, record.Username)
		c.Locals(shared.UserRole, record.Role)
		c.Locals(shared.UserGroups, record.Groups)
		c.Locals(shared.TokenID, record.ID)
		c.Locals(shared.RemainingUses, record.RemainingUses)

		return c.Next()
	}
}

// RequireRole must run after RequiredAuth.
func (svc *AuthService) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		current, _ := c.Locals(shared.UserRole).(string)
		if current != role {
			return shared.ResponseForbidden(c)
		}
		return c.Next()
	}
}

// Authenticate validates the username/password payload and issues a fresh
// bounded-use token. Rejections are uniform: the caller cannot tell an
// unknown user from a wrong password.
func (svc *AuthService) Authenticate(req dto.AuthenticateRequest) (*dto.AuthenticateResponse, error) {
	user, err := svc.resolveUser(req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	record, signed, err := svc.tokenSvc.Issue(user)
	if err != nil {
		log.WithError(err).WithField("username", user.Username).Error("Token issuance failed")
		return nil, shared.NewInternalError(err)
	}

	return &dto.AuthenticateResponse{
		Token:         signed,
		TokenID:       record.ID,
		ExpiresAt:     record.ExpiresAt,
		RemainingUses: record.RemainingUses,
	}, nil
}

func (svc *AuthService) resolveUser(username, password string) (*model.User, error) {
	user, err := svc.users.GetUserByUsername(username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewInternalError(err)
	}

	if user != nil && user.IsActive {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil {
			now := time.Now()
			user.LastLoginAt = &now
			if err := svc.users.UpdateUser(user); err != nil {
				log.WithError(err).Warn("Failed to record last login time")
			}
			return user, nil
		}
		return nil, shared.NewUnauthorizedError(errors.New("invalid credentials"))
	}

	// Bootstrap admin from the credential source.
	if username == svc.credSvc.AdminUsername() {
		ok, err := svc.credSvc.VerifyAdminPassword(password)
		if err != nil {
			log.WithError(err).Error("Credential source unavailable during login")
			return nil, shared.NewInternalError(err)
		}
		if ok {
			return &model.User{
				ID:       "admin",
				Username: username,
				Role:     shared.RoleAdmin,
			}, nil
		}
	}

	return nil, shared.NewUnauthorizedError(errors.New("invalid credentials"))
}

func (svc *AuthService) Register(req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, shared.NewInternalError(err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, shared.NewInternalError(err)
	}

	now := time.Now()
	user := &model.User{
		ID:           id.String(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         shared.RoleUser,
		Groups:       req.Groups,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := svc.users.CreateUser(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return nil, shared.NewConflictError(err, "Username already taken")
		}
		return nil, shared.NewInternalError(err)
	}

	return &dto.RegisterResponse{UserID: user.ID, Username: user.Username}, nil
}

func (svc *AuthService) RevokeToken(c *fiber.Ctx, req dto.RevokeTokenRequest) error {
	// Users may revoke their own tokens; admins may revoke any.
	role, _ := c.Locals(shared.UserRole).(string)
	ownTokenID, _ := c.Locals(shared.TokenID).(string)
	if role != shared.RoleAdmin && req.TokenID != ownTokenID {
		return shared.NewForbiddenError(errors.New("cannot revoke another user's token"))
	}

	return svc.tokenSvc.Revoke(c.Context(), req.TokenID)
}
