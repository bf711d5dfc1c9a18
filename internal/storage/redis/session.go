// Package redis stores checkout sessions in Redis so several API
// instances can share them.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/storefront/internal/domain/checkout"
)

const (
	keyPrefix  = "checkout:session:"
	lockPrefix = "checkout:lock:"

	// lockTTL bounds how long a crashed holder blocks the session.
	lockTTL = time.Minute
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ checkout.SessionStore = (*SessionStore)(nil)

// SessionStore is a checkout.SessionStore backed by Redis. Every save
// refreshes the session TTL.
type SessionStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewSessionStore creates a SessionStore on an existing client.
func NewSessionStore(rdb redis.UniversalClient, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// Connect parses url, creates a client and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*checkout.Session, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, checkout.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %q: %w", id, err)
	}

	var sess checkout.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session %q: %w", id, err)
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *checkout.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session %q: %w", sess.ID, err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sess.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving session %q: %w", sess.ID, err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting session %q: %w", id, err)
	}
	return nil
}

// Lock claims the session with SET NX. The claim expires after lockTTL if
// it is never released.
func (s *SessionStore) Lock(ctx context.Context, id string) (func(), error) {
	key := lockPrefix + id
	token := uuid.NewString()

	ok, err := s.rdb.SetNX(ctx, key, token, lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("locking session %q: %w", id, err)
	}
	if !ok {
		return nil, checkout.ErrSessionBusy
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		// An unreleased lock expires on its own.
		_ = releaseScript.Run(releaseCtx, s.rdb, []string{key}, token).Err()
	}, nil
}

// Ping reports whether Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
