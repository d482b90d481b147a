package services

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/forgeyard/forge_api/model"
)

const tokenKeyPrefix = "token:"

// consumeScript performs check → decrement → delete-if-exhausted as one
// server-side step, which is what makes Consume race-free across service
// restarts and across concurrent callers. KEEPTTL preserves the expiry set
// at issuance.
var consumeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return false
end
local rec = cjson.decode(raw)
if rec.remaining_uses <= 0 then
  redis.call('DEL', KEYS[1])
  return false
end
rec.remaining_uses = rec.remaining_uses - 1
if rec.remaining_uses == 0 then
  redis.call('DEL', KEYS[1])
else
  redis.call('SET', KEYS[1], cjson.encode(rec), 'KEEPTTL')
end
return cjson.encode(rec)
`)

// RedisTokenStore is the durable backend. Records expire out of redis on
// their own via key TTL, so the expiry invariant holds even if the service
// never touches a token again.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Put(ctx context.Context, record *model.TokenRecord) error {
	data, err := sonic.Marshal(record)
	if err != nil {
		return err
	}

	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return errors.New("refusing to store already-expired token")
	}

	return s.client.Set(ctx, tokenKeyPrefix+record.ID, data, ttl).Err()
}

func (s *RedisTokenStore) Consume(ctx context.Context, tokenID string) (*model.TokenRecord, error) {
	raw, err := consumeScript.Run(ctx, s.client, []string{tokenKeyPrefix + tokenID}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	var record model.TokenRecord
	if err := sonic.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}

	return &record, nil
}

func (s *RedisTokenStore) Revoke(ctx context.Context, tokenID string) error {
	return s.client.Del(ctx, tokenKeyPrefix+tokenID).Err()
}

func (s *RedisTokenStore) Count(ctx context.Context) (int64, error) {
	keys, err := s.client.Keys(ctx, tokenKeyPrefix+"*").Result()
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}
