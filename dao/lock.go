package dao

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/xerrors"
	"gorm.io/gorm"

	"github.com/rqzrqh/multisig_coordinator/model"
)

// GetDatabaseLock fails if another serve process already holds the database.
// Only taken when keyed locks are process local.
func GetDatabaseLock(db *gorm.DB) error {
	if err := db.Migrator().CreateTable(&model.PidFile{}); err != nil {
		log.Errorf("GetDatabaseLock failed:%v", err)
		return err
	}

	host, _ := os.Hostname()
	pid := model.PidFile{
		Info:      fmt.Sprintf("%s:%d", host, os.Getpid()),
		StartedAt: time.Now().UTC(),
	}
	if err := db.Create(&pid).Error; err != nil {
		log.Errorf("GetDatabaseLock write pid failed:%v", err)
		return err
	}
	return nil
}

func ReleaseDatabaseLock(db *gorm.DB) error {
	err := db.Migrator().DropTable(&model.PidFile{})
	log.Infof("delete pid_file result:%v", err)
	return err
}

// Locker hands out exclusive sections keyed by string. The returned function
// releases the section and is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func AccountLockKey(account string) string {
	return "account:" + account
}

func OwnerLockKey(owner string) string {
	return "owner:" + owner
}

// MemoryLocker is a Locker for a single process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	token chan struct{}
	refs  int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]*keyLock),
	}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{token: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.token <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, xerrors.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.token
			l.release(key, kl)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (l *MemoryLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same redis. A
// lock expires after ttl if its holder dies.
type RedisLocker struct {
	rds   *redis.Client
	ttl   time.Duration
	retry time.Duration
}

func NewRedisLocker(rds *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		rds:   rds,
		ttl:   ttl,
		retry: 50 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := BuildLockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.rds.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, xerrors.Errorf("lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, xerrors.Errorf("lock %s: %w", key, ctx.Err())
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlockScript.Run(ctx, l.rds, []string{redisKey}, token).Err(); err != nil {
				log.Warnw("redis unlock failed", "key", key, "err", err)
			}
		})
	}, nil
}
