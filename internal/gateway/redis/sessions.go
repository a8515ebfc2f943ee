package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-booking/internal/gateway"
	"ms-booking/internal/models"

	"github.com/go-redis/redis/v8"
)

// Sessions stores checkout sessions in Redis. The key TTL is the single
// authority on session lifetime: once it elapses the redirect-back leg gets
// gateway.ErrSessionExpired and the attempt is terminal.
type Sessions struct {
	Client *redis.Client
}

func NewSessions(client *redis.Client) *Sessions {
	return &Sessions{Client: client}
}

func sessionKey(checkoutID string) string {
	return "checkout_session:" + checkoutID
}

func (s *Sessions) SaveSession(ctx context.Context, session models.CheckoutSession, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode checkout session: %w", err)
	}
	return s.Client.Set(ctx, sessionKey(session.CheckoutID), payload, ttl).Err()
}

// GetSession loads a session. The session is deliberately not deleted on
// read: duplicate redirect deliveries within the TTL fall through to the
// ledger's idempotency check instead of failing here.
func (s *Sessions) GetSession(ctx context.Context, checkoutID string) (*models.CheckoutSession, error) {
	payload, err := s.Client.Get(ctx, sessionKey(checkoutID)).Result()
	if err == redis.Nil {
		return nil, gateway.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkout session: %w", err)
	}

	var session models.CheckoutSession
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &session, nil
}
