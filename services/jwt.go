package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/forgeyard/forge_api/model"
	"github.com/forgeyard/forge_api/shared"
)

type JWTService struct {
	context.DefaultService

	TokenDuration time.Duration

	credSvc *CredentialService
}

type CustomClaims struct {
	Username string   `json:"username"`
	Role     string   `json:"role"`
	Groups   []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

const JWT_SVC = "jwt_svc"

var (
	ErrMissingToken   = errors.New("authorization header is missing")
	ErrMalformedToken = errors.New("invalid authorization header format")
)

func (svc JWTService) Id() string {
	return JWT_SVC
}

func (svc *JWTService) Configure(ctx *context.Context) error {
	svc.credSvc = ctx.Service(CREDENTIALS_SVC).(*CredentialService)
	svc.TokenDuration = shared.GetEnvSeconds("TOKEN_TTL_SECONDS", 10*time.Hour, time.Minute, 7*24*time.Hour)
	return svc.DefaultService.Configure(ctx)
}

func (svc *JWTService) Start() error {
	return nil
}

// Mint signs a JWT for the given record. The signature carries identity and
// expiry; the token store stays authoritative for remaining uses.
func (svc *JWTService) Mint(record *model.TokenRecord) (string, error) {
	secret, err := svc.credSvc.SigningSecret()
	if err != nil {
		return "", err
	}

	claims := &CustomClaims{
		Username: record.Username,
		Role:     record.Role,
		Groups:   record.Groups,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.ID,
			Subject:   record.UserID,
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(record.IssuedAt),
			Issuer:    "forge_api",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return signed, nil
}

// Verify checks signature and expiry and returns the claims. It never touches
// the token store; consumption is a separate step that only runs on
// structurally valid tokens.
func (svc *JWTService) Verify(jwtToken string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(jwtToken, &CustomClaims{}, svc.getJWTKey)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("unsupported JWT format")
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || claims == nil {
		return nil, errors.New("unsupported JWT format")
	}

	expTime, err := claims.GetExpirationTime()
	if err != nil || expTime == nil {
		return nil, errors.New("token has no expiration")
	}
	if expTime.Unix() < time.Now().Unix() {
		return nil, errors.New("token has expired")
	}

	if claims.ID == "" {
		return nil, errors.New("token has no id")
	}

	return claims, nil
}

func (svc *JWTService) getJWTKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	return svc.credSvc.SigningSecret()
}

// ExtractToken pulls a bearer token from the request headers, preferring the
// primary header and falling back to the legacy one.
func (svc *JWTService) ExtractToken(primary, alternate string) (string, error) {
	header := primary
	if header == "" {
		header = alternate
	}
	return svc.ExtractTokenFromHeader(header)
}

func (svc *JWTService) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingToken
	}

	if len(authHeader) < len(shared.BearerPrefix) || !strings.EqualFold(authHeader[:len(shared.BearerPrefix)], shared.BearerPrefix) {
		return "", ErrMalformedToken
	}

	token := strings.TrimSpace(authHeader[len(shared.BearerPrefix):])
	if token == "" {
		return "", ErrMalformedToken
	}

	return token, nil
}

func NewTokenID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
