package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const quotaWindow = 24 * time.Hour

// ReportQuota counts incident filings per user.
type ReportQuota interface {
	// Take consumes one filing for uid. When the quota is spent it returns
	// false and how long until it resets.
	Take(ctx context.Context, uid string) (bool, time.Duration, error)
}

// RedisReportQuota keeps a daily counter per user in redis. The key expires a
// day after the first filing in the window.
type RedisReportQuota struct {
	client *redis.Client
	prefix string
	limit  int
}

// ConnectRedis opens a client and checks the server is reachable.
func ConnectRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisReportQuota allows limit filings per user per day.
func NewRedisReportQuota(client *redis.Client, limit int) *RedisReportQuota {
	return &RedisReportQuota{client: client, prefix: "responseready:reports", limit: limit}
}

func (q *RedisReportQuota) Take(ctx context.Context, uid string) (bool, time.Duration, error) {
	key := q.prefix + ":" + uid

	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis error incrementing count: %w", err)
	}
	if count == 1 {
		if err := q.client.Expire(ctx, key, quotaWindow).Err(); err != nil {
			return false, 0, fmt.Errorf("redis error setting TTL: %w", err)
		}
	}

	if count > int64(q.limit) {
		retryAfter, err := q.client.TTL(ctx, key).Result()
		if err != nil || retryAfter < 0 {
			retryAfter = quotaWindow
		}
		return false, retryAfter, nil
	}
	return true, 0, nil
}

// ReportLimit enforces quota on the wrapped route. It must run after
// AuthMiddleware. If the quota store is down, filing is allowed and the
// failure is logged.
func ReportLimit(quota ReportQuota, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, "User not found in context", http.StatusUnauthorized)
				return
			}

			allowed, retryAfter, err := quota.Take(r.Context(), user.UID)
			if err != nil {
				logger.Warn().Err(err).Str("user_id", user.UID).Msg("⚠️ Report quota unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error":       "Daily report limit reached",
					"retry_after": seconds,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
