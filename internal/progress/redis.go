package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps job status in a Redis hash per job, expired after ttl.
type RedisStore struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: c, keyNS: "pdfdocx:job", ttl: ttl}, nil
}

// Ping lets the status checker probe the connection.
func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

func (s *RedisStore) Set(ctx context.Context, jobID string, st Status) error {
	m := map[string]interface{}{
		"status":   st.State,
		"progress": st.Progress,
		"step":     st.Step,
		"message":  st.Message,
		"code":     st.Code,
	}
	if st.Start != nil {
		m["start"] = st.Start.Format(time.RFC3339Nano)
	}
	if st.End != nil {
		m["end"] = st.End.Format(time.RFC3339Nano)
	}
	if st.Metadata != nil {
		b, err := json.Marshal(st.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		m["metadata"] = string(b)
	}
	key := s.key(jobID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, m)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (Status, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		return Status{}, false, err
	}
	if len(res) == 0 {
		return Status{}, false, nil
	}
	return decodeHash(res), true, nil
}

func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	return s.client.Del(ctx, s.key(jobID)).Err()
}

func decodeHash(res map[string]string) Status {
	st := Status{
		State:   res["status"],
		Step:    res["step"],
		Message: res["message"],
		Code:    res["code"],
	}
	st.Progress, _ = strconv.Atoi(res["progress"])
	if v := res["start"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.Start = &t
		}
	}
	if v := res["end"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.End = &t
		}
	}
	if v := res["metadata"]; v != "" {
		var md map[string]any
		if json.Unmarshal([]byte(v), &md) == nil {
			st.Metadata = md
		}
	}
	return st
}
