package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/insider-one/local-notifications/internal/domain"
)

const tableName = "scheduled_notifications"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var columns = []string{
	"id",
	"title",
	"body",
	"sound",
	"badge",
	"data",
	"fire_at",
	"next_attempt_at",
	"repeat_interval_ms",
	"attempts",
	"revision",
	"handle",
	"created_at",
}

// Store is a notification engine that persists requests in PostgreSQL. It is
// drained by the dispatcher and survives restarts.
type Store struct {
	db *DB
}

// NewStore creates a new Store
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Schedule upserts req, replacing any row with the same identifier.
func (s *Store) Schedule(ctx context.Context, req domain.NotificationRequest) (domain.EngineHandle, error) {
	revision := uuid.New().String()
	handle := domain.EngineHandle("postgres:" + req.ID + ":" + revision)

	query, args, err := upsertQuery(req, req.Fire.Resolve(time.Now()), revision, handle)
	if err != nil {
		return "", fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := s.db.Pool.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to schedule notification: %w", err)
	}

	return handle, nil
}

// Cancel deletes the row for id, if any.
func (s *Store) Cancel(ctx context.Context, id string) error {
	query, args, err := psql.Delete(tableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := s.db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to cancel notification: %w", err)
	}
	return nil
}

// CancelAll deletes every row.
func (s *Store) CancelAll(ctx context.Context) error {
	query, args, err := psql.Delete(tableName).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := s.db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to cancel notifications: %w", err)
	}
	return nil
}

// ListPending returns every stored request ordered by fire time.
func (s *Store) ListPending(ctx context.Context) ([]domain.NotificationRequest, error) {
	query, args, err := psql.Select(columns...).From(tableName).OrderBy("fire_at ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	due, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}

	requests := make([]domain.NotificationRequest, 0, len(due))
	for _, d := range due {
		requests = append(requests, d.Request)
	}
	return requests, nil
}

// Due returns up to limit rows whose next attempt is not after now.
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]domain.DueNotification, error) {
	query, args, err := dueQuery(now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build due query: %w", err)
	}

	due, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get due notifications: %w", err)
	}
	return due, nil
}

// Acknowledge deletes a fired one-shot row or moves a repeating one to its
// next occurrence. Rows rewritten since due was read are left alone.
func (s *Store) Acknowledge(ctx context.Context, due domain.DueNotification, firedAt time.Time) error {
	query, args, err := acknowledgeQuery(due, firedAt, uuid.New().String())
	if err != nil {
		return fmt.Errorf("failed to build acknowledge query: %w", err)
	}

	if _, err := s.db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to acknowledge notification %s: %w", due.Request.ID, err)
	}
	return nil
}

// Defer moves the next attempt of due to until and counts the failure.
func (s *Store) Defer(ctx context.Context, due domain.DueNotification, until time.Time) error {
	query, args, err := deferQuery(due, until, uuid.New().String())
	if err != nil {
		return fmt.Errorf("failed to build defer query: %w", err)
	}

	if _, err := s.db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to defer notification %s: %w", due.Request.ID, err)
	}
	return nil
}

// Depth returns the number of stored rows
func (s *Store) Depth(ctx context.Context) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(tableName).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}

	var count int64
	if err := s.db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]domain.DueNotification, error) {
	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DueNotification
	for rows.Next() {
		due, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, due)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

func scanNotification(row pgx.Row) (domain.DueNotification, error) {
	var (
		id, title, body, sound string
		badge                  *int
		data                   []byte
		fireAt, nextAttemptAt  time.Time
		repeatMillis           int64
		attempts               int
		revision, handle       string
		createdAt              time.Time
	)

	err := row.Scan(
		&id, &title, &body, &sound, &badge, &data,
		&fireAt, &nextAttemptAt, &repeatMillis, &attempts, &revision, &handle, &createdAt,
	)
	if err != nil {
		return domain.DueNotification{}, fmt.Errorf("failed to scan notification: %w", err)
	}

	payload := domain.Payload{Title: title, Body: body, Sound: sound, Badge: badge}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload.Data); err != nil {
			return domain.DueNotification{}, fmt.Errorf("failed to unmarshal data of notification %s: %w", id, err)
		}
		if len(payload.Data) == 0 {
			payload.Data = nil
		}
	}

	req := domain.NewNotificationRequest(id, domain.FireAt(fireAt), payload)
	req.RepeatInterval = time.Duration(repeatMillis) * time.Millisecond
	req.CreatedAt = createdAt.UTC()

	return domain.DueNotification{
		Request:  req,
		Handle:   domain.EngineHandle(handle),
		FireAt:   fireAt.UTC(),
		Attempts: attempts,
		Revision: revision,
	}, nil
}

func upsertQuery(req domain.NotificationRequest, fireAt time.Time, revision string, handle domain.EngineHandle) (string, []any, error) {
	data := req.Payload.Data
	if data == nil {
		data = map[string]string{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal data: %w", err)
	}

	fireAt = fireAt.UTC()
	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return psql.Insert(tableName).
		Columns(columns...).
		Values(
			req.ID,
			req.Payload.Title,
			req.Payload.Body,
			req.Payload.Sound,
			req.Payload.Badge,
			encoded,
			fireAt,
			fireAt,
			req.RepeatInterval.Milliseconds(),
			0,
			revision,
			string(handle),
			createdAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			sound = EXCLUDED.sound,
			badge = EXCLUDED.badge,
			data = EXCLUDED.data,
			fire_at = EXCLUDED.fire_at,
			next_attempt_at = EXCLUDED.next_attempt_at,
			repeat_interval_ms = EXCLUDED.repeat_interval_ms,
			attempts = 0,
			revision = EXCLUDED.revision,
			handle = EXCLUDED.handle,
			created_at = EXCLUDED.created_at,
			updated_at = NOW()`).
		ToSql()
}

func dueQuery(now time.Time, limit int) (string, []any, error) {
	return psql.Select(columns...).
		From(tableName).
		Where(sq.LtOrEq{"next_attempt_at": now.UTC()}).
		OrderBy("next_attempt_at ASC").
		Limit(uint64(limit)).
		ToSql()
}

func acknowledgeQuery(due domain.DueNotification, firedAt time.Time, revision string) (string, []any, error) {
	where := sq.Eq{"id": due.Request.ID, "revision": due.Revision}

	next, repeats := due.Request.NextFire(due.FireAt, firedAt)
	if !repeats {
		return psql.Delete(tableName).Where(where).ToSql()
	}

	return psql.Update(tableName).
		Set("fire_at", next).
		Set("next_attempt_at", next).
		Set("attempts", 0).
		Set("revision", revision).
		Set("updated_at", sq.Expr("NOW()")).
		Where(where).
		ToSql()
}

func deferQuery(due domain.DueNotification, until time.Time, revision string) (string, []any, error) {
	return psql.Update(tableName).
		Set("next_attempt_at", until.UTC()).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("revision", revision).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": due.Request.ID, "revision": due.Revision}).
		ToSql()
}
