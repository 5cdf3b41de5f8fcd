package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is one user's presence in a team, optionally narrowed to a prompt
// (PromptID 0 means team-level presence only).
type Record struct {
	UserID   uint64 `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	TeamID   uint64 `json:"team_id"`
	PromptID uint64 `json:"prompt_id,omitempty"`
	Cursor   *int   `json:"cursor,omitempty"`
	LastSeen int64  `json:"last_seen"` // unix milliseconds
}

// Store persists presence records so REST polling sees the same state the
// socket layer writes.
type Store interface {
	Touch(ctx context.Context, rec Record) error
	ListActiveByTeam(ctx context.Context, teamID uint64, maxAge time.Duration) ([]Record, error)
	ListActiveByPrompt(ctx context.Context, promptID uint64, maxAge time.Duration) ([]Record, error)
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// RedisStore keeps one JSON value per (team, prompt, user) key. A record past
// the staleness threshold is treated as absent on read even before the sweep
// removes it. Keys also carry a generous TTL as a safety net.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(teamID, promptID, userID uint64) string {
	return fmt.Sprintf("presence:t:%d:p:%d:u:%d", teamID, promptID, userID)
}

func (s *RedisStore) Touch(ctx context.Context, rec Record) error {
	if s.client == nil {
		return nil
	}
	if rec.LastSeen == 0 {
		rec.LastSeen = time.Now().UnixMilli()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key(rec.TeamID, rec.PromptID, rec.UserID), b, time.Hour).Err()
}

func (s *RedisStore) ListActiveByTeam(ctx context.Context, teamID uint64, maxAge time.Duration) ([]Record, error) {
	return s.scan(ctx, fmt.Sprintf("presence:t:%d:p:*:u:*", teamID), maxAge)
}

func (s *RedisStore) ListActiveByPrompt(ctx context.Context, promptID uint64, maxAge time.Duration) ([]Record, error) {
	return s.scan(ctx, fmt.Sprintf("presence:t:*:p:%d:u:*", promptID), maxAge)
}

func (s *RedisStore) scan(ctx context.Context, pattern string, maxAge time.Duration) ([]Record, error) {
	records := []Record{}
	if s.client == nil {
		return records, nil
	}
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		b, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue // expired between scan and get
			}
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			log.Printf("dropping unreadable presence record %s: %v", iter.Val(), err)
			continue
		}
		// stale records are logically absent even before the sweep runs
		if rec.LastSeen < cutoff {
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Sweep deletes records older than maxAge and reports how many were removed.
func (s *RedisStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	if s.client == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	removed := 0

	iter := s.client.Scan(ctx, 0, "presence:t:*", 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		b, err := s.client.Get(ctx, k).Bytes()
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil || rec.LastSeen < cutoff {
			if err := s.client.Del(ctx, k).Err(); err == nil {
				removed++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}
