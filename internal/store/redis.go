package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"bridgeai/internal/session"
)

const (
	sessionKeyPrefix   = "session:"
	candidateKeyPrefix = "candidate:"
)

// RedisStore keeps sessions and candidates as JSON values that expire after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings the server. A zero ttl keeps keys forever.
func NewRedis(addr, password string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) CreateSession(ctx context.Context, s session.Session) error {
	ok, err := r.setJSON(ctx, sessionKey(s.ID), s, true)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *RedisStore) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	var s session.Session
	if err := r.getJSON(ctx, sessionKey(id), &s); err != nil {
		if errors.Is(err, redis.Nil) {
			return session.Session{}, ErrSessionNotFound
		}
		return session.Session{}, err
	}
	return s, nil
}

func (r *RedisStore) UpdateSession(ctx context.Context, s session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, sessionKey(s.ID), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisStore) SaveCandidate(ctx context.Context, c Candidate) error {
	_, err := r.setJSON(ctx, candidateKey(c.ID), c, false)
	return err
}

func (r *RedisStore) GetCandidate(ctx context.Context, id uuid.UUID) (Candidate, error) {
	var c Candidate
	if err := r.getJSON(ctx, candidateKey(id), &c); err != nil {
		if errors.Is(err, redis.Nil) {
			return Candidate{}, ErrCandidateNotFound
		}
		return Candidate{}, err
	}
	return c, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) setJSON(ctx context.Context, key string, v any, onlyNew bool) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	if onlyNew {
		return r.client.SetNX(ctx, key, data, r.ttl).Result()
	}
	return true, r.client.Set(ctx, key, data, r.ttl).Err()
}

func (r *RedisStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func sessionKey(id uuid.UUID) string   { return sessionKeyPrefix + id.String() }
func candidateKey(id uuid.UUID) string { return candidateKeyPrefix + id.String() }
