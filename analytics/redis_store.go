// Package analytics: Redis Store for persistent run history.
package analytics

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "distill:analytics:runs"

// RedisStore implements Store using Redis (sorted set by timestamp, value = JSON RunRecord).
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a store that uses the given Redis client.
func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

type redisRecord struct {
	Evaluator  string  `json:"evaluator"`
	Model      string  `json:"model"`
	Epoch      int     `json:"epoch"`
	Steps      int     `json:"steps"`
	MSE        float64 `json:"mse"`
	DurationMs int64   `json:"duration_ms"`
	Success    bool    `json:"success"`
	At         string  `json:"at"` // RFC3339
}

// Record implements Store.
func (r *RedisStore) Record(ctx context.Context, rec RunRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	score := float64(rec.At.UnixNano()) / 1e9
	payload := redisRecord{
		Evaluator:  rec.Evaluator,
		Model:      rec.Model,
		Epoch:      rec.Epoch,
		Steps:      rec.Steps,
		MSE:        rec.MSE,
		DurationMs: rec.DurationMs,
		Success:    rec.Success,
		At:         rec.At.Format(time.RFC3339),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.client.ZAdd(ctx, r.key, redis.Z{Score: score, Member: string(raw)}).Err()
}

// Query implements Store by reading from the sorted set and aggregating in memory.
func (r *RedisStore) Query(ctx context.Context, q Query) ([]Aggregate, error) {
	min, max := "-inf", "+inf"
	if !q.From.IsZero() {
		min = strconv.FormatFloat(float64(q.From.UnixNano())/1e9, 'f', -1, 64)
	}
	if !q.To.IsZero() {
		max = strconv.FormatFloat(float64(q.To.UnixNano())/1e9, 'f', -1, 64)
	}
	const batch = 10000
	var records []RunRecord
	for offset := int64(0); ; offset += batch {
		vals, err := r.client.ZRangeByScoreWithScores(ctx, r.key, &redis.ZRangeBy{
			Min: min, Max: max, Offset: offset, Count: batch,
		}).Result()
		if err != nil {
			return nil, err
		}
		for _, z := range vals {
			mem, ok := z.Member.(string)
			if !ok {
				continue
			}
			var rr redisRecord
			if err := json.Unmarshal([]byte(mem), &rr); err != nil {
				continue
			}
			at, _ := time.Parse(time.RFC3339, rr.At)
			records = append(records, RunRecord{
				Evaluator:  rr.Evaluator,
				Model:      rr.Model,
				Epoch:      rr.Epoch,
				Steps:      rr.Steps,
				MSE:        rr.MSE,
				DurationMs: rr.DurationMs,
				Success:    rr.Success,
				At:         at,
			})
		}
		if len(vals) < batch {
			break
		}
	}
	return aggregate(records, q), nil
}
