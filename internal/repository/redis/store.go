package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/insider-one/local-notifications/internal/domain"
)

const (
	scheduleKey = "notifications:schedule"
	payloadKey  = "notifications:payload"
)

// advanceScript rewrites or drops a stored entry only if its revision is
// still the one the caller read.
//
// KEYS[1] schedule zset, KEYS[2] payload hash
// ARGV[1] id, ARGV[2] expected revision, ARGV[3] next score or "", ARGV[4] next payload
var advanceScript = redis.NewScript(`
local raw = redis.call('HGET', KEYS[2], ARGV[1])
if not raw then
	return 0
end
local stored = cjson.decode(raw)
if stored['revision'] ~= ARGV[2] then
	return 0
end
if ARGV[3] == '' then
	redis.call('ZREM', KEYS[1], ARGV[1])
	redis.call('HDEL', KEYS[2], ARGV[1])
else
	redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
	redis.call('HSET', KEYS[2], ARGV[1], ARGV[4])
end
return 1
`)

type storedNotification struct {
	Request  domain.NotificationRequest `json:"request"`
	Handle   domain.EngineHandle        `json:"handle"`
	FireAt   time.Time                  `json:"fire_at"`
	Attempts int                        `json:"attempts"`
	Revision string                     `json:"revision"`
}

// newStored builds a fresh revision of an entry. handle is kept from the
// Schedule call that created it.
func newStored(req domain.NotificationRequest, handle domain.EngineHandle, fireAt time.Time, attempts int) storedNotification {
	return storedNotification{
		Request:  req,
		Handle:   handle,
		FireAt:   fireAt.UTC(),
		Attempts: attempts,
		Revision: uuid.New().String(),
	}
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// Store is a notification engine backed by a Redis sorted set ordered by fire
// time, plus a hash holding the request payloads. It is drained by the
// dispatcher.
type Store struct {
	client *Client
}

// NewStore creates a new Store
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// Schedule stores req, replacing any entry with the same identifier.
func (s *Store) Schedule(ctx context.Context, req domain.NotificationRequest) (domain.EngineHandle, error) {
	stored := newStored(req, "", req.Fire.Resolve(time.Now()), 0)
	stored.Handle = domain.EngineHandle("redis:" + req.ID + ":" + stored.Revision)

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = s.client.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, payloadKey, req.ID, data)
		pipe.ZAdd(ctx, scheduleKey, redis.Z{Score: score(stored.FireAt), Member: req.ID})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to schedule notification: %w", err)
	}

	return stored.Handle, nil
}

// Cancel removes the entry for id, if any.
func (s *Store) Cancel(ctx context.Context, id string) error {
	_, err := s.client.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, scheduleKey, id)
		pipe.HDel(ctx, payloadKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel notification: %w", err)
	}
	return nil
}

// CancelAll removes every stored entry.
func (s *Store) CancelAll(ctx context.Context) error {
	if err := s.client.client.Del(ctx, scheduleKey, payloadKey).Err(); err != nil {
		return fmt.Errorf("failed to cancel notifications: %w", err)
	}
	return nil
}

// ListPending returns every stored request.
func (s *Store) ListPending(ctx context.Context) ([]domain.NotificationRequest, error) {
	entries, err := s.client.client.HGetAll(ctx, payloadKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}

	requests := make([]domain.NotificationRequest, 0, len(entries))
	for id, raw := range entries {
		var stored storedNotification
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification %s: %w", id, err)
		}
		requests = append(requests, stored.Request)
	}
	return requests, nil
}

// Due returns up to limit entries whose score is not after now.
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]domain.DueNotification, error) {
	ids, err := s.client.client.ZRangeByScore(ctx, scheduleKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due notifications: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	values, err := s.client.client.HMGet(ctx, payloadKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notification payloads: %w", err)
	}

	due := make([]domain.DueNotification, 0, len(ids))
	var orphans []any
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			orphans = append(orphans, ids[i])
			continue
		}

		var stored storedNotification
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification %s: %w", ids[i], err)
		}
		due = append(due, domain.DueNotification{
			Request:  stored.Request,
			Handle:   stored.Handle,
			FireAt:   stored.FireAt,
			Attempts: stored.Attempts,
			Revision: stored.Revision,
		})
	}

	// schedule entries without a payload can never fire
	if len(orphans) > 0 {
		if err := s.client.client.ZRem(ctx, scheduleKey, orphans...).Err(); err != nil {
			return nil, fmt.Errorf("failed to drop orphaned schedule entries: %w", err)
		}
	}

	return due, nil
}

// Acknowledge drops a fired one-shot entry or moves a repeating one to its
// next occurrence.
func (s *Store) Acknowledge(ctx context.Context, due domain.DueNotification, firedAt time.Time) error {
	next, repeats := due.Request.NextFire(due.FireAt, firedAt)
	if !repeats {
		return s.advance(ctx, due, nil)
	}

	stored := newStored(due.Request, due.Handle, next, 0)
	return s.advance(ctx, due, &stored)
}

// Defer reschedules a failed delivery for until, keeping the occurrence it
// belongs to.
func (s *Store) Defer(ctx context.Context, due domain.DueNotification, until time.Time) error {
	stored := newStored(due.Request, due.Handle, due.FireAt, due.Attempts+1)
	return s.advanceTo(ctx, due, &stored, until)
}

func (s *Store) advance(ctx context.Context, due domain.DueNotification, next *storedNotification) error {
	if next == nil {
		return s.advanceTo(ctx, due, nil, time.Time{})
	}
	return s.advanceTo(ctx, due, next, next.FireAt)
}

func (s *Store) advanceTo(ctx context.Context, due domain.DueNotification, next *storedNotification, at time.Time) error {
	nextScore := ""
	var payload []byte
	if next != nil {
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}
		payload = data
		nextScore = strconv.FormatInt(at.UnixMilli(), 10)
	}

	err := advanceScript.Run(ctx, s.client.client,
		[]string{scheduleKey, payloadKey},
		due.Request.ID, due.Revision, nextScore, string(payload),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to update notification %s: %w", due.Request.ID, err)
	}
	return nil
}

// Depth returns the number of stored entries
func (s *Store) Depth(ctx context.Context) (int64, error) {
	count, err := s.client.client.ZCard(ctx, scheduleKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get schedule depth: %w", err)
	}
	return count, nil
}
