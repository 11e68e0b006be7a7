package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/shivam1002modi/language-agnostic-chatbot/internal/app"
)

const releaseTimeout = 3 * time.Second

// Deletes the key only while it still holds our run ID, so an expired lock
// that another gateway has since taken is left alone.
var releaseScript = redisv9.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RetrainLock is a single-flight guard shared by every gateway instance
// pointing at the same Redis.
type RetrainLock struct {
	client *redisv9.Client
	key    string
	ttl    time.Duration
}

func NewRetrainLock(client *redisv9.Client, key string, ttl time.Duration) *RetrainLock {
	if key == "" {
		key = "gateway:retrain:lock"
	}
	if ttl <= 0 {
		ttl = 31 * time.Minute
	}
	return &RetrainLock{client: client, key: key, ttl: ttl}
}

func (l *RetrainLock) TryAcquire(ctx context.Context, runID string) (func(), error) {
	ok, err := l.client.SetNX(ctx, l.key, runID, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis acquire retrain lock failed: %w", err)
	}
	if !ok {
		return nil, app.ErrRetrainInProgress
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{l.key}, runID).Err()
	}, nil
}
