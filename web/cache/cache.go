// Package cache provides a small get-or-set cache for assembled subscriptions.
// It runs against Redis when an address is configured and reachable, and
// falls back to an in-process map otherwise.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	"github.com/akellavk/V2RaySub/logger"
)

// KeySubPrefix namespaces cached subscription bodies, one key per
// subscription id.
const KeySubPrefix = "sub:"

var (
	rdb *redis.Client

	memMu  sync.RWMutex
	memory = map[string]memEntry{}

	hits   atomic.Int64
	misses atomic.Int64
)

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

// Init connects to Redis. When addr is empty or the server cannot be
// reached, the cache keeps working from process memory.
func Init(addr, password string, db int) {
	if addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warningf("redis at %s not reachable, falling back to in-memory cache: %v", addr, err)
		client.Close()
		return
	}
	rdb = client
	logger.Infof("cache backed by redis at %s", addr)
}

// Close releases the Redis connection if one was established.
func Close() {
	if rdb != nil {
		rdb.Close()
		rdb = nil
	}
}

// GetOrSet reads key into dest, calling fetch and storing its result for ttl
// on a miss. A zero ttl disables storing, so fetch runs every time.
func GetOrSet(key string, dest any, ttl time.Duration, fetch func() (any, error)) error {
	if ttl > 0 {
		if data, ok := get(key); ok {
			hits.Inc()
			return json.Unmarshal(data, dest)
		}
		misses.Inc()
	}

	value, err := fetch()
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl > 0 {
		set(key, data, ttl)
	}
	return json.Unmarshal(data, dest)
}

// Delete removes a single key.
func Delete(key string) {
	if rdb != nil {
		if err := rdb.Del(context.Background(), key).Err(); err != nil {
			logger.Debugf("redis del %s failed: %v", key, err)
		}
		return
	}
	memMu.Lock()
	delete(memory, key)
	memMu.Unlock()
}

// DeletePattern removes every key matching pattern. Only the trailing-star
// form "prefix*" is supported, which is all the server uses.
func DeletePattern(pattern string) {
	if rdb != nil {
		ctx := context.Background()
		iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
		keys := make([]string, 0)
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			logger.Debugf("redis scan %s failed: %v", pattern, err)
		}
		if len(keys) > 0 {
			if err := rdb.Del(ctx, keys...).Err(); err != nil {
				logger.Debugf("redis del %s failed: %v", pattern, err)
			}
		}
		return
	}

	prefix := strings.TrimSuffix(pattern, "*")
	memMu.Lock()
	for key := range memory {
		if strings.HasPrefix(key, prefix) {
			delete(memory, key)
		}
	}
	memMu.Unlock()
}

// InvalidateSubs drops every cached subscription body. Called whenever the
// SNI pool changes, since every cached body embeds pool entries.
func InvalidateSubs() {
	DeletePattern(KeySubPrefix + "*")
}

// Stats reports hit and miss counts since process start.
func Stats() (int64, int64) {
	return hits.Load(), misses.Load()
}

func get(key string) ([]byte, bool) {
	if rdb != nil {
		data, err := rdb.Get(context.Background(), key).Bytes()
		if err == nil {
			return data, true
		}
		if err != redis.Nil {
			logger.Debugf("redis get %s failed: %v", key, err)
		}
		return nil, false
	}

	memMu.RLock()
	entry, ok := memory[key]
	memMu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func set(key string, data []byte, ttl time.Duration) {
	if rdb != nil {
		if err := rdb.Set(context.Background(), key, data, ttl).Err(); err != nil {
			logger.Debugf("redis set %s failed: %v", key, err)
		}
		return
	}

	memMu.Lock()
	memory[key] = memEntry{data: data, expiresAt: time.Now().Add(ttl)}
	memMu.Unlock()
}
