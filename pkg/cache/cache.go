package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Record cache over Redis, keyed "task:<id>" / "user:<id>". All operations are
// no-ops on a nil client so the service and its tests run without Redis.

const ttl = time.Hour

func TaskKey(id int) string { return fmt.Sprintf("task:%d", id) }
func UserKey(id int) string { return fmt.Sprintf("user:%d", id) }

// Get unmarshals a cached record into dest and reports whether it was found.
func Get(ctx context.Context, client *redis.Client, key string, dest interface{}) bool {
	if client == nil {
		return false
	}
	cached, err := client.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(cached), dest) == nil
}

// Set stores a record for an hour. Marshal or Redis errors are swallowed;
// the cache is best-effort.
func Set(ctx context.Context, client *redis.Client, key string, value interface{}) {
	if client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	client.SetEX(ctx, key, data, ttl)
}

// Invalidate drops keys after a write.
func Invalidate(ctx context.Context, client *redis.Client, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}
