package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/deepresearch/internal/research/core"
	"github.com/mohammad-safakhou/deepresearch/internal/session"
)

type Store struct {
	client *redis.Client
}

func NewRedisSessionStore(addr, password string, db int) session.Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: rdb}
}

func turnsKey(id string) string { return fmt.Sprintf("session:%s:turns", id) }

func (store *Store) EnsureSession(id string, ttl time.Duration) (session.Session, error) {
	ctx := context.Background()
	if id != "" {
		key := turnsKey(id)
		exists, err := store.client.Exists(ctx, key).Result()
		if err == nil && exists == 1 {
			sess := &Session{client: store.client, id: id, ttl: ttl}
			_ = store.client.Expire(ctx, key, ttl).Err()
			return sess, nil
		}
	}
	newID := uuid.NewString()
	sess := &Session{client: store.client, id: newID, ttl: ttl}
	if err := store.client.Set(ctx, turnsKey(newID), "[]", ttl).Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (store *Store) GetSession(id string) (session.Session, error) {
	ctx := context.Background()
	exists, err := store.client.Exists(ctx, turnsKey(id)).Result()
	if err != nil || exists == 0 {
		return nil, err
	}
	return &Session{client: store.client, id: id}, nil
}

type Session struct {
	client *redis.Client
	id     string
	ttl    time.Duration
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Expire(ttl time.Duration) { s.ttl = ttl }

func (s *Session) AppendTurn(turn core.Turn) error {
	ctx := context.Background()
	turns, err := s.Turns()
	if err != nil {
		return err
	}
	turns = append(turns, turn)
	data, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if ttl <= 0 {
		ttl = redis.KeepTTL
	}
	return s.client.Set(ctx, turnsKey(s.id), data, ttl).Err()
}

func (s *Session) Turns() ([]core.Turn, error) {
	ctx := context.Background()
	val, err := s.client.Get(ctx, turnsKey(s.id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var turns []core.Turn
	if err := json.Unmarshal([]byte(val), &turns); err != nil {
		return nil, err
	}
	return turns, nil
}
