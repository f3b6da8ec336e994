package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// connectionTimeout bounds the startup ping.
	connectionTimeout = 5 * time.Second
	// updateRetries bounds optimistic-lock retries in Update.
	updateRetries = 5

	defaultKeyPrefix = "intent-crawler:task:"
	logsSuffix       = ":logs"
)

// ErrEmptyAddress is returned when the redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisStore keeps each task as a JSON value plus a capped log list.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	logTail int
}

// NewRedisStore creates a store. A zero ttl keeps keys forever.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration, logTail int) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if logTail <= 0 {
		logTail = DefaultLogTail
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, logTail: logTail}
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) logsKey(id string) string { return s.prefix + id + logsSuffix }

func (s *RedisStore) Create(ctx context.Context, t Task) error {
	logs := t.Logs
	t.Logs = nil
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.key(t.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create task %s: %w", t.ID, err)
	}
	if !created {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	for _, line := range logs {
		if err := s.AppendLog(ctx, t.ID, line); err != nil {
			return err
		}
	}
	return nil
}

// Update reads, mutates and writes the task under WATCH, retrying on contention.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Task)) error {
	key := s.key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("update %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		var t Task
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("decode task %s: %w", id, err)
		}
		fn(&t)
		t.Logs = nil
		t.UpdatedAt = time.Now().UTC()
		out, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal task: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			return nil
		})
		return err
	}

	for range updateRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", id, redis.TxFailedErr)
}

func (s *RedisStore) Get(ctx context.Context, id string) (Task, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Task{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Task{}, fmt.Errorf("get %s: %w", id, err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}

	logs, err := s.client.LRange(ctx, s.logsKey(id), 0, -1).Result()
	if err != nil {
		return Task{}, fmt.Errorf("read logs %s: %w", id, err)
	}
	t.Logs = logs
	return t, nil
}

// AppendLog pushes a line and trims the list to the configured tail.
func (s *RedisStore) AppendLog(ctx context.Context, id, line string) error {
	key := s.logsKey(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, line)
		pipe.LTrim(ctx, key, int64(-s.logTail), -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append log %s: %w", id, err)
	}
	return nil
}
