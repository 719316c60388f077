package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// PairLocker 同一 (商户, 平台) 同时只允许一个同步在途
// ok=false 表示已被占用，调用方应返回 already_in_progress 而不是等待
type PairLocker interface {
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// PairKey 锁的键
func PairKey(businessID, platform string) string {
	return businessID + "/" + platform
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker 进程内锁，单实例部署使用
func NewMemoryLocker() PairLocker {
	return &memoryLocker{held: make(map[string]struct{})}
}

func (l *memoryLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

// 只释放自己持有的锁
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const redisLockPrefix = "listing-sync:lock:"

type redisLocker struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisLocker 多实例部署时使用 Redis SetNX 锁；ttl 需大于单个批次的超时
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *logrus.Logger) PairLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		ttl:    ttl,
		logger: logger,
	}
}

func (l *redisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if key == "" {
		return nil, false, errors.New("lock key is empty")
	}
	redisKey := redisLockPrefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// 批次被取消时 ctx 已失效，释放锁不能跟着失败
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			defer cancel()
			if err := l.script.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.WithError(err).WithField("key", key).Warn("释放分布式锁失败，等待过期")
			}
		})
	}, true, nil
}
