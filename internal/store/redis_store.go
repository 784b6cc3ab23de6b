package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/model"
)

// RedisStore implements SessionStore, CodeStore and IdempotencyStore on a
// single Redis client. Everything in here is TTL-bound ephemeral state.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(host string, port int, password string, db int, logger *zap.Logger) (*RedisStore, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

func sessionKey(token string) string   { return "session:" + token }
func codeKey(email string) string      { return "authcode:" + email }
func attemptsKey(email string) string  { return "authcode:attempts:" + email }
func resendKey(email string) string    { return "authcode:resend:" + email }
func idempotencyKey(key string) string { return "idempotency:" + key }

// CreateSession stores a session under its opaque token.
func (s *RedisStore) CreateSession(ctx context.Context, token string, session *model.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return s.client.Set(ctx, sessionKey(token), data, ttl).Err()
}

// GetSession retrieves a session by token.
func (s *RedisStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// RenewSession rewrites the session with a fresh expiry and TTL.
func (s *RedisStore) RenewSession(ctx context.Context, token string, session *model.Session, ttl time.Duration) error {
	return s.CreateSession(ctx, token, session, ttl)
}

// DeleteSession removes a session.
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

// SaveCode stores the bcrypt hash of a sign-in code and resets the attempt
// counter.
func (s *RedisStore) SaveCode(ctx context.Context, email, codeHash string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, codeKey(email), codeHash, ttl)
	pipe.Set(ctx, attemptsKey(email), 0, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// GetCode retrieves the stored code hash for an email.
func (s *RedisStore) GetCode(ctx context.Context, email string) (string, error) {
	hash, err := s.client.Get(ctx, codeKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return hash, err
}

// IncrementCodeAttempts bumps and returns the verification attempt counter.
func (s *RedisStore) IncrementCodeAttempts(ctx context.Context, email string) (int, error) {
	n, err := s.client.Incr(ctx, attemptsKey(email)).Result()
	return int(n), err
}

// DeleteCode removes a code and its attempt counter.
func (s *RedisStore) DeleteCode(ctx context.Context, email string) error {
	return s.client.Del(ctx, codeKey(email), attemptsKey(email)).Err()
}

// AllowCodeRequest reports whether a new code may be requested for the email.
// SET NX with the window TTL makes the first caller in a window win.
func (s *RedisStore) AllowCodeRequest(ctx context.Context, email string, window time.Duration) (bool, error) {
	return s.client.SetNX(ctx, resendKey(email), 1, window).Result()
}

// Get retrieves a cached idempotent response.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, idempotencyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

// Set stores an idempotent response with TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

// Delete removes an idempotency key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKey(key)).Err()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
