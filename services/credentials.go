package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgeyard/forge_api/shared"
)

// CredentialService is the single place the signing secret and the bootstrap
// admin credentials come from. In production a missing credential is a hard
// failure; outside production the service degrades to generated values so
// local development works without a secrets mount.
type CredentialService struct {
	context.DefaultService

	production  bool
	secretsFile string

	signingSecret []byte
	secretErr     error

	adminUsername  string
	adminPassHash  []byte
	adminCredsErr  error
	generatedAdmin string
}

const CREDENTIALS_SVC = "credentials_svc"

var ErrCredentialSourceUnavailable = errors.New("credential source unavailable")

type secretsFilePayload struct {
	JWTSecret     string `json:"jwt_secret"`
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
}

func (svc CredentialService) Id() string {
	return CREDENTIALS_SVC
}

func (svc *CredentialService) Configure(ctx *context.Context) error {
	svc.production = shared.GetEnvString("APP_ENV", "development") == "production"
	svc.secretsFile = os.Getenv("SECRETS_FILE")
	return svc.DefaultService.Configure(ctx)
}

func (svc *CredentialService) Start() error {
	secret := os.Getenv("JWT_SECRET")
	adminUser := os.Getenv("ADMIN_USERNAME")
	adminPass := os.Getenv("ADMIN_PASSWORD")

	if svc.secretsFile != "" {
		payload, err := svc.loadSecretsFile()
		if err != nil {
			if svc.production {
				return fmt.Errorf("failed to read secrets file: %w", err)
			}
			log.WithError(err).WithField("path", svc.secretsFile).
				Warn("Secrets file unreadable, falling back to environment")
		} else {
			if payload.JWTSecret != "" {
				secret = payload.JWTSecret
			}
			if payload.AdminUsername != "" {
				adminUser = payload.AdminUsername
			}
			if payload.AdminPassword != "" {
				adminPass = payload.AdminPassword
			}
		}
	}

	if err := svc.resolveSigningSecret(secret); err != nil {
		return err
	}

	return svc.resolveAdminCredentials(adminUser, adminPass)
}

func (svc *CredentialService) loadSecretsFile() (*secretsFilePayload, error) {
	raw, err := os.ReadFile(svc.secretsFile)
	if err != nil {
		return nil, err
	}

	var payload secretsFilePayload
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (svc *CredentialService) resolveSigningSecret(secret string) error {
	if secret != "" {
		svc.signingSecret = []byte(secret)
		return nil
	}

	if svc.production {
		svc.secretErr = fmt.Errorf("%w: JWT signing secret not configured", ErrCredentialSourceUnavailable)
		return svc.secretErr
	}

	generated, err := randomHex(32)
	if err != nil {
		return err
	}

	svc.signingSecret = []byte(generated)
	log.Warn("JWT_SECRET not set, generated ephemeral signing secret (tokens will not survive restart)")
	return nil
}

func (svc *CredentialService) resolveAdminCredentials(username, password string) error {
	if username == "" {
		username = "admin"
	}
	svc.adminUsername = username

	if password == "" {
		if svc.production {
			// Login against the bootstrap admin must fail loudly rather than
			// accept a well-known default.
			svc.adminCredsErr = fmt.Errorf("%w: admin password not configured", ErrCredentialSourceUnavailable)
			log.Error("ADMIN_PASSWORD not configured in production, admin login disabled")
			return nil
		}

		generated, err := randomHex(16)
		if err != nil {
			return err
		}
		password = generated
		svc.generatedAdmin = generated
		log.WithField("username", username).
			Warn("ADMIN_PASSWORD not set, generated one-off admin password for this run")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	svc.adminPassHash = hash
	return nil
}

func (svc *CredentialService) IsProduction() bool {
	return svc.production
}

func (svc *CredentialService) SigningSecret() ([]byte, error) {
	if svc.secretErr != nil {
		return nil, svc.secretErr
	}
	return svc.signingSecret, nil
}

func (svc *CredentialService) AdminUsername() string {
	return svc.adminUsername
}

// VerifyAdminPassword reports whether password matches the bootstrap admin
// credential. The error is non-nil only when the credential source itself is
// unavailable; a plain mismatch is (false, nil).
func (svc *CredentialService) VerifyAdminPassword(password string) (bool, error) {
	if svc.adminCredsErr != nil {
		return false, svc.adminCredsErr
	}
	err := bcrypt.CompareHashAndPassword(svc.adminPassHash, []byte(password))
	return err == nil, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
