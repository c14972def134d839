package dao

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rqzrqh/multisig_coordinator/common"
)

const (
	CacheTimeout time.Duration = 3600 * time.Second
)

var requestStatusKey = "request_status"
var lockKey = "msig_lock"
var notifyKey = "msig_notify"

func BuildRequestStatusKey(account string) string {
	return requestStatusKey + "_" + account
}

func BuildLockKey(key string) string {
	return lockKey + "_" + key
}

func BuildNotifyKey() string {
	return notifyKey
}

// RedisNotifier publishes state changes on the notify channel and keeps the
// latest status of each account under its status key.
type RedisNotifier struct {
	rds *redis.Client
}

func NewRedisNotifier(rds *redis.Client) *RedisNotifier {
	return &RedisNotifier{
		rds: rds,
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, ev common.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := n.rds.TxPipeline()
	defer pipe.Close()

	if ev.Status != "" {
		pipe.Set(ctx, BuildRequestStatusKey(ev.Account), string(ev.Status), CacheTimeout)
	}
	pipe.Publish(ctx, BuildNotifyKey(), string(raw))

	if _, err := pipe.Exec(ctx); err != nil {
		pipe.Discard()
		return err
	}
	return nil
}
