package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/careline/backend/internal/model/chat"
)

const defaultKeyPrefix = "careline:"

// RedisStore keeps sessions in redis so several API replicas share conversations.
// Each session is a JSON string plus a capped list of JSON turns, both expiring after TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// OpenRedis connects to the redis instance at rawURL and pings it.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// NewRedisStore wraps client. A zero ttl keeps sessions until they are reset.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + "session:" + id }
func (s *RedisStore) turnsKey(id string) string   { return s.prefix + "turns:" + id }

func (s *RedisStore) CreateSession(ctx context.Context, session chat.Session) error {
	if session.ID == "" {
		return ErrSessionRequired
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.ID), payload, s.ttl)
		pipe.Del(ctx, s.turnsKey(session.ID))
		return nil
	})
	return errors.Wrap(err, "store session")
}

func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return chat.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, errors.Wrap(err, "load session")
	}

	var session chat.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return chat.Session{}, errors.Wrap(err, "decode session")
	}
	return session, nil
}

func (s *RedisStore) AppendTurns(ctx context.Context, sessionID string, limit int, turns ...chat.Turn) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		payload, err := json.Marshal(turn)
		if err != nil {
			return errors.Wrap(err, "encode turn")
		}
		values = append(values, payload)
	}

	key := s.turnsKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if limit > 0 {
			pipe.LTrim(ctx, key, int64(-limit), -1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
			pipe.Expire(ctx, s.sessionKey(sessionID), s.ttl)
		}
		return nil
	})
	return errors.Wrap(err, "append turns")
}

func (s *RedisStore) LoadTurns(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}

	raw, err := s.client.LRange(ctx, s.turnsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "load turns")
	}

	turns := make([]chat.Turn, 0, len(raw))
	for _, item := range raw {
		var turn chat.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, errors.Wrap(err, "decode turn")
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	n, err := s.client.Del(ctx, s.sessionKey(sessionID), s.turnsKey(sessionID)).Result()
	if err != nil {
		return errors.Wrap(err, "delete session")
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) ensureSession(ctx context.Context, sessionID string) error {
	n, err := s.client.Exists(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return errors.Wrap(err, "check session")
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
