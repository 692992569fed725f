package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/microshop/identity-service/internal/core/domain"
	"github.com/microshop/identity-service/internal/core/ports"
)

// CodeStore holds pending authorization codes in Redis.
// Key format: authcode:<code>
type CodeStore struct {
	client *redis.Client
}

func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{client: client}
}

func (s *CodeStore) Put(ctx context.Context, code string, ac ports.AuthorizationCode, ttl time.Duration) error {
	payload, err := json.Marshal(ac)
	if err != nil {
		return fmt.Errorf("marshal authorization code: %w", err)
	}
	if err := s.client.Set(ctx, codeKey(code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store authorization code: %w", err)
	}
	return nil
}

// Take fetches and deletes the code in one round trip (GETDEL) so each code
// redeems at most once even under concurrent token requests.
func (s *CodeStore) Take(ctx context.Context, code string) (*ports.AuthorizationCode, error) {
	payload, err := s.client.GetDel(ctx, codeKey(code)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrInvalidAuthorization
	}
	if err != nil {
		return nil, fmt.Errorf("take authorization code: %w", err)
	}

	var ac ports.AuthorizationCode
	if err := json.Unmarshal(payload, &ac); err != nil {
		return nil, fmt.Errorf("decode authorization code: %w", err)
	}
	return &ac, nil
}

func codeKey(code string) string {
	return "authcode:" + code
}

// RevocationList records revoked token ids until their natural expiry.
// Key format: revoked:<jti>
type RevocationList struct {
	client *redis.Client
}

func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client}
}

func (l *RevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired; nothing to record.
		return nil
	}
	if err := l.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (l *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("revocation check: %w", err)
	}
	return n > 0, nil
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}
