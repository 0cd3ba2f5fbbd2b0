package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicboard/clinicboard/internal/availability"
)

// Redis is the shared availability cache for multi-instance deployments.
// Alongside each value it maintains a per-date index set so a coarse
// Invalidate(date) can clear every service's entry without a SCAN. Values
// carry a TTL backstop; explicit invalidation remains the primary mechanism.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedis(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{rdb: rdb, ttl: ttl, logger: logger}
}

func (r *Redis) Get(ctx context.Context, serviceCode, date string) (*availability.Result, bool) {
	raw, err := r.rdb.Get(ctx, slotKey(serviceCode, date)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("availability cache read failed", "err", err)
		}
		return nil, false
	}
	var res availability.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		r.logger.Warn("availability cache entry corrupt; dropping", "err", err)
		r.rdb.Del(ctx, slotKey(serviceCode, date))
		return nil, false
	}
	return &res, true
}

func (r *Redis) Set(ctx context.Context, serviceCode, date string, res *availability.Result) {
	raw, err := json.Marshal(res)
	if err != nil {
		r.logger.Warn("availability cache encode failed", "err", err)
		return
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, slotKey(serviceCode, date), raw, r.ttl)
	pipe.SAdd(ctx, indexKey(date), serviceCode)
	pipe.Expire(ctx, indexKey(date), r.ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("availability cache write failed", "err", err)
	}
}

func (r *Redis) Invalidate(ctx context.Context, date, serviceCode string) {
	if serviceCode != "" {
		if err := r.rdb.Del(ctx, slotKey(serviceCode, date)).Err(); err != nil {
			r.logger.Warn("availability cache invalidate failed", "err", err)
		}
		r.rdb.SRem(ctx, indexKey(date), serviceCode)
		return
	}

	codes, err := r.rdb.SMembers(ctx, indexKey(date)).Result()
	if err != nil {
		r.logger.Warn("availability cache index read failed", "err", err)
		return
	}
	keys := make([]string, 0, len(codes)+1)
	for _, code := range codes {
		keys = append(keys, slotKey(code, date))
	}
	keys = append(keys, indexKey(date))
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		r.logger.Warn("availability cache invalidate failed", "err", err)
	}
}

func slotKey(serviceCode, date string) string {
	return "avail:" + date + ":" + serviceCode
}

func indexKey(date string) string {
	return "avail-idx:" + date
}
