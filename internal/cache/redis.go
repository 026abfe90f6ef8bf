package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"equipment-monitor/internal/metrics"
	"equipment-monitor/internal/models"
)

// RedisCache keeps the latest reading per metric type of every device in a hash. A hash
// only serves reads once a full snapshot from the reading log has been stored in it.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// completeField marks a hash that holds every metric type of its device.
const completeField = "#complete"

func latestKey(deviceID string) string {
	return "latest:" + deviceID
}

// encodeReading packs value and timestamp into one hash field value.
func encodeReading(r models.Reading) string {
	return strconv.FormatFloat(r.Value, 'g', -1, 64) + "|" + strconv.FormatInt(r.Timestamp.UnixNano(), 10)
}

func decodeReading(deviceID, metric, raw string) (models.Reading, error) {
	value, ts, ok := strings.Cut(raw, "|")
	if !ok {
		return models.Reading{}, fmt.Errorf("malformed cached reading %q", raw)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return models.Reading{}, fmt.Errorf("malformed cached value %q: %w", raw, err)
	}
	ns, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return models.Reading{}, fmt.Errorf("malformed cached timestamp %q: %w", raw, err)
	}
	return models.Reading{
		DeviceID:   deviceID,
		MetricType: metric,
		Value:      v,
		Timestamp:  time.Unix(0, ns).UTC(),
	}, nil
}

// StoreLatest records readings as the latest of their metric types, unless the cache
// already holds a newer one. It does not make a hash readable on its own.
func (r *RedisCache) StoreLatest(ctx context.Context, readings ...models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	r.queueReadings(ctx, pipe, readings)
	_, err := pipe.Exec(ctx)
	metrics.CacheOperations.WithLabelValues("store", status(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to store latest readings: %w", err)
	}
	return nil
}

// StoreSnapshot merges the full set of latest readings of a device, as read from the
// reading log, and marks its hash complete.
func (r *RedisCache) StoreSnapshot(ctx context.Context, deviceID string, readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	key := latestKey(deviceID)
	pipe := r.client.Pipeline()
	r.queueReadings(ctx, pipe, readings)
	pipe.HSet(ctx, key, completeField, "1")
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	metrics.CacheOperations.WithLabelValues("snapshot", status(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to store latest readings of %s: %w", deviceID, err)
	}
	return nil
}

func (r *RedisCache) queueReadings(ctx context.Context, pipe redis.Pipeliner, readings []models.Reading) {
	for _, rd := range readings {
		key := latestKey(rd.DeviceID)
		pipe.Eval(ctx, storeIfNewer, []string{key}, rd.MetricType, encodeReading(rd), rd.Timestamp.UnixNano())
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
}

// storeIfNewer compares the timestamp part of the current field before replacing it.
const storeIfNewer = `
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur then
  local sep = string.find(cur, '|', 1, true)
  if sep and tonumber(string.sub(cur, sep + 1)) > tonumber(ARGV[3]) then
    return 0
  end
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`

// Latest returns the cached readings of a device. An empty slice means a cache miss,
// which includes a hash that was never completed by a snapshot.
func (r *RedisCache) Latest(ctx context.Context, deviceID string) ([]models.Reading, error) {
	fields, err := r.client.HGetAll(ctx, latestKey(deviceID)).Result()
	if err != nil {
		metrics.CacheOperations.WithLabelValues("latest", "error").Inc()
		return nil, fmt.Errorf("failed to read latest readings: %w", err)
	}

	out, err := decodeHash(deviceID, fields)
	if err != nil {
		metrics.CacheOperations.WithLabelValues("latest", "error").Inc()
		return nil, err
	}
	if len(out) == 0 {
		metrics.CacheOperations.WithLabelValues("latest", "miss").Inc()
		return nil, nil
	}
	metrics.CacheOperations.WithLabelValues("latest", "hit").Inc()
	return out, nil
}

// decodeHash returns nothing for a hash without the completion marker.
func decodeHash(deviceID string, fields map[string]string) ([]models.Reading, error) {
	if _, ok := fields[completeField]; !ok {
		return nil, nil
	}
	out := make([]models.Reading, 0, len(fields)-1)
	for metric, raw := range fields {
		if metric == completeField {
			continue
		}
		rd, err := decodeReading(deviceID, metric, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rd)
	}
	return out, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
