package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores call records as JSON strings and transcripts as
// lists, both expiring after the retention window.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse cache url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	return &RedisCache{client: client, ttl: DefaultTTL}, nil
}

func callKey(callSID string) string       { return "frontdesk:call:" + callSID }
func transcriptKey(callSID string) string { return "frontdesk:transcript:" + callSID }

func (c *RedisCache) PutCall(ctx context.Context, rec CallRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal call record: %w", err)
	}
	if err := c.client.Set(ctx, callKey(rec.CallSID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("put call record: %w", err)
	}
	return nil
}

func (c *RedisCache) GetCall(ctx context.Context, callSID string) (CallRecord, error) {
	raw, err := c.client.Get(ctx, callKey(callSID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, fmt.Errorf("get call record: %w", err)
	}
	var rec CallRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CallRecord{}, fmt.Errorf("unmarshal call record: %w", err)
	}
	return rec, nil
}

func (c *RedisCache) AppendTranscript(ctx context.Context, callSID string, entry TranscriptEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal transcript entry: %w", err)
	}
	key := transcriptKey(callSID)
	pipe := c.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (c *RedisCache) Transcript(ctx context.Context, callSID string) ([]TranscriptEntry, error) {
	items, err := c.client.LRange(ctx, transcriptKey(callSID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	out := make([]TranscriptEntry, 0, len(items))
	for _, item := range items {
		var entry TranscriptEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal transcript entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
