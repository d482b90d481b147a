package services

import (
	"context"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/forgeyard/forge_api/model"
	"github.com/forgeyard/forge_api/shared"
)

// TokenService mints bounded-use credentials and owns the store they live in.
// Every protected request goes through Consume, which is how the use budget
// is enforced globally rather than per endpoint.
type TokenService struct {
	appContext.DefaultService

	MaxUses int

	backend string
	store   TokenStore

	jwtSvc   *JWTService
	redisSvc *RedisService

	closed chan struct{}
}

const TOKEN_SVC = "token_svc"

func (svc TokenService) Id() string {
	return TOKEN_SVC
}

func (svc *TokenService) Configure(ctx *appContext.Context) error {
	svc.jwtSvc = ctx.Service(JWT_SVC).(*JWTService)
	svc.redisSvc = ctx.Service(REDIS_SVC).(*RedisService)

	svc.MaxUses = shared.GetEnvInt("TOKEN_MAX_USES", 1000, 1, 1000000)
	svc.backend = strings.ToLower(shared.GetEnvString("TOKEN_STORE", "memory"))

	return svc.DefaultService.Configure(ctx)
}

func (svc *TokenService) Start() error {
	svc.closed = make(chan struct{})

	switch svc.backend {
	case "redis":
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svc.redisSvc.Ping(pingCtx); err != nil {
			return err
		}
		svc.store = NewRedisTokenStore(svc.redisSvc.GetClient())
		log.Info("Token store backend: redis")
	default:
		if svc.backend != "memory" {
			log.WithField("backend", svc.backend).Warn("Unknown token store backend, using memory")
		}
		memStore := NewMemoryTokenStore()
		svc.store = memStore
		go svc.startSweepJob(memStore)
		log.Info("Token store backend: memory")
	}

	return nil
}

func (svc *TokenService) Shutdown() {
	close(svc.closed)
}

// Issue mints a signed token for the user with the configured TTL and use
// budget and persists its record. The record is written before the token is
// handed out so a caller can never hold a token the store does not know.
func (svc *TokenService) Issue(user *model.User) (*model.TokenRecord, string, error) {
	now := time.Now()

	record := &model.TokenRecord{
		ID:            NewTokenID(),
		UserID:        user.ID,
		Username:      user.Username,
		Role:          user.Role,
		Groups:        splitGroups(user.Groups),
		IssuedAt:      now,
		ExpiresAt:     now.Add(svc.jwtSvc.TokenDuration),
		RemainingUses: svc.MaxUses,
	}

	signed, err := svc.jwtSvc.Mint(record)
	if err != nil {
		return nil, "", err
	}

	if err := svc.store.Put(context.Background(), record); err != nil {
		return nil, "", err
	}

	tokensIssuedTotal.Inc()
	return record, signed, nil
}

func (svc *TokenService) Consume(ctx context.Context, tokenID string) (*model.TokenRecord, error) {
	record, err := svc.store.Consume(ctx, tokenID)
	if err == nil {
		tokensConsumedTotal.Inc()
	}
	return record, err
}

func (svc *TokenService) Revoke(ctx context.Context, tokenID string) error {
	if err := svc.store.Revoke(ctx, tokenID); err != nil {
		return err
	}
	tokensRevokedTotal.Inc()
	return nil
}

func (svc *TokenService) ActiveTokens(ctx context.Context) (int64, error) {
	return svc.store.Count(ctx)
}

func (svc *TokenService) startSweepJob(store *MemoryTokenStore) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-svc.closed:
			return
		case <-ticker.C:
			if n := store.SweepExpired(); n > 0 {
				log.WithField("count", n).Info("Swept expired tokens")
			}
		}
	}
}

func splitGroups(groups string) []string {
	if groups == "" {
		return nil
	}

	parts := strings.Split(groups, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
