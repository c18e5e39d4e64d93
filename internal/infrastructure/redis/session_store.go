package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/auditsuite/tasktimer/internal/core/ports"
	"github.com/auditsuite/tasktimer/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 24 * time.Hour

func sessionKey(userID string) string { return "tasktimer:session:" + userID }

// sessionRecord is the stored form. The embedded task snapshot is dropped to
// keep the value small; it is re-read from the backend on refresh.
type sessionRecord struct {
	UserID          string                  `json:"user_id"`
	TaskID          string                  `json:"task_id"`
	AccumulatedMS   int64                   `json:"accumulated_ms"`
	LastFetchedAt   time.Time               `json:"last_fetched_at"`
	RunStatus       domain.CompletionStatus `json:"run_status"`
	TaskTitle       string                  `json:"task_title,omitempty"`
	TaskTracking    bool                    `json:"task_tracking,omitempty"`
	TaskEstimateSec int64                   `json:"task_estimate_sec,omitempty"`
}

type sessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore creates a Redis-backed SessionStore. A zero ttl uses a day.
func NewSessionStore(client *redis.Client, ttl time.Duration) ports.SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionStore{client: client, ttl: ttl}
}

// NewClient creates and returns a new Redis client.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

func (s *sessionStore) Get(ctx context.Context, userID string) (*domain.ActiveSession, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get session for %s: %w", userID, err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	sess := &domain.ActiveSession{
		UserID:        rec.UserID,
		TaskID:        rec.TaskID,
		Accumulated:   time.Duration(rec.AccumulatedMS) * time.Millisecond,
		LastFetchedAt: rec.LastFetchedAt,
		RunStatus:     rec.RunStatus,
	}
	if rec.TaskTitle != "" {
		sess.Task = &domain.Task{
			ID:                       rec.TaskID,
			Title:                    rec.TaskTitle,
			AssigneeID:               rec.UserID,
			CompletionStatus:         rec.RunStatus,
			TimeTrackingRequired:     rec.TaskTracking,
			EstimatedDurationSeconds: rec.TaskEstimateSec,
		}
	}
	return sess, nil
}

func (s *sessionStore) Put(ctx context.Context, sess *domain.ActiveSession) error {
	rec := sessionRecord{
		UserID:        sess.UserID,
		TaskID:        sess.TaskID,
		AccumulatedMS: sess.Accumulated.Milliseconds(),
		LastFetchedAt: sess.LastFetchedAt,
		RunStatus:     sess.RunStatus,
	}
	if sess.Task != nil {
		rec.TaskTitle = sess.Task.Title
		rec.TaskTracking = sess.Task.TimeTrackingRequired
		rec.TaskEstimateSec = sess.Task.EstimatedDurationSeconds
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(sess.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session for %s: %w", sess.UserID, err)
	}
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete session for %s: %w", userID, err)
	}
	return nil
}
