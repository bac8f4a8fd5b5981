package store

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lazysoft/consultant/pkg/component/redis"
	"github.com/lazysoft/consultant/pkg/utils/errors"
	"github.com/lazysoft/consultant/pkg/utils/id"
)

// SessionLocker 串行化同一会话的对话轮次。
type SessionLocker interface {
	// TryLock 尝试获取会话锁，锁已被持有时 ok 为 false。
	// ttl 为锁的最长持有时间，防止进程崩溃后锁无法释放。
	TryLock(ctx context.Context, sessionID string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// NewSessionLocker returns a redis backed locker when a client is given, and
// an in-process locker otherwise.
func NewSessionLocker(client *redis.Client) SessionLocker {
	if client == nil {
		return NewMemoryLocker()
	}
	return &RedisLocker{client: client}
}

// releaseScript 仅当锁仍归当前持有者时删除。
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 使用 SET NX PX 实现的分布式会话锁。
type RedisLocker struct {
	client *redis.Client
}

// TryLock acquires the lock with a random token.
func (l *RedisLocker) TryLock(ctx context.Context, sessionID string, ttl time.Duration) (func(), bool, error) {
	key := l.client.Key("lock", "session", sessionID)
	token := id.New()
	ok, err := l.client.Client().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, errors.ErrCache.WithCause(err)
	}
	if !ok {
		return nil, false, nil
	}
	unlock := func() {
		// 使用独立的 context，请求取消后仍需释放锁。
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client.Client(), []string{key}, token).Err()
	}
	return unlock, true, nil
}

// MemoryLocker 进程内会话锁，仅适用于单实例部署。
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryLease
	seq   uint64
	clock func() time.Time
}

type memoryLease struct {
	token   uint64
	expires time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryLease), clock: time.Now}
}

// TryLock acquires the lock unless a live lease exists.
func (l *MemoryLocker) TryLock(_ context.Context, sessionID string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if lease, ok := l.held[sessionID]; ok && now.Before(lease.expires) {
		return nil, false, nil
	}
	l.seq++
	token := l.seq
	l.held[sessionID] = memoryLease{token: token, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if lease, ok := l.held[sessionID]; ok && lease.token == token {
			delete(l.held, sessionID)
		}
	}, true, nil
}
