package redis

import (
	"context"
	"time"

	"ms-booking/internal/logger"

	"github.com/go-redis/redis/v8"
)

const defaultLockTTL = 10 * time.Second

// Redis serializes writers per booking with a SetNX lock. The TTL keeps a
// crashed holder from wedging the booking forever.
type Redis struct {
	Client  *redis.Client
	LockTTL time.Duration
	Logger  *logger.Logger
}

func NewRedis(client *redis.Client, lockTTL time.Duration, log *logger.Logger) *Redis {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Redis{Client: client, LockTTL: lockTTL, Logger: log}
}

// LockBooking takes the per-booking lock for holderID. Returns false when
// another writer holds it.
func (r *Redis) LockBooking(bookingID, holderID string) (bool, error) {
	key := "booking_lock:" + bookingID
	return r.Client.SetNX(context.Background(), key, holderID, r.LockTTL).Result()
}

// UnlockBooking releases the lock only if holderID still owns it.
func (r *Redis) UnlockBooking(bookingID, holderID string) error {
	ctx := context.Background()
	key := "booking_lock:" + bookingID

	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // lock already expired
	}
	if err != nil {
		return err
	}
	if val == holderID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
