package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"assistant-workers/internal/common/database"
	"assistant-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	sessionTTL = 7 * 24 * time.Hour

	fieldTotal           = "total"
	fieldAnswered        = "answered"
	fieldUnanswered      = "unanswered"
	fieldRejected        = "rejected"
	fieldRateLimited     = "rate_limited"
	fieldConfidenceTotal = "confidence_total"
	fieldLastMethod      = "last_method"
	fieldLastActivity    = "last_activity"
)

// RedisSessionStore keeps session counters in a hash per session so every instance sees the same stats.
type RedisSessionStore struct {
	rdb *database.RedisClient
}

func NewRedisSessionStore(rdb *database.RedisClient) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) Record(ctx context.Context, sessionID string, o models.MessageOutcome) error {
	key := s.rdb.Key("session", sessionID)

	_, err := s.rdb.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, fieldTotal, 1)
		switch {
		case o.Rejected:
			pipe.HIncrBy(ctx, key, fieldRejected, 1)
		case o.RateLimited:
			pipe.HIncrBy(ctx, key, fieldRateLimited, 1)
		case o.Answered:
			pipe.HIncrBy(ctx, key, fieldAnswered, 1)
			pipe.HIncrByFloat(ctx, key, fieldConfidenceTotal, o.ConfidenceScore)
		default:
			pipe.HIncrBy(ctx, key, fieldUnanswered, 1)
			pipe.HIncrByFloat(ctx, key, fieldConfidenceTotal, o.ConfidenceScore)
		}
		pipe.HSet(ctx, key,
			fieldLastMethod, o.Method,
			fieldLastActivity, o.At.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, sessionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*models.SessionStats, error) {
	fields, err := s.rdb.Client.HGetAll(ctx, s.rdb.Key("session", sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	st := &models.SessionStats{
		SessionID:           sessionID,
		TotalMessages:       atoi(fields[fieldTotal]),
		AnsweredMessages:    atoi(fields[fieldAnswered]),
		UnansweredMessages:  atoi(fields[fieldUnanswered]),
		RejectedMessages:    atoi(fields[fieldRejected]),
		RateLimitedMessages: atoi(fields[fieldRateLimited]),
		LastMethod:          fields[fieldLastMethod],
	}
	st.ConfidenceTotal, _ = strconv.ParseFloat(fields[fieldConfidenceTotal], 64)
	if scored := st.AnsweredMessages + st.UnansweredMessages; scored > 0 {
		st.AverageConfidence = st.ConfidenceTotal / float64(scored)
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldLastActivity]); err == nil {
		st.LastActivityAt = ts
	}
	return st, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
