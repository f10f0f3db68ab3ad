// Package redisstore caches stored matches in Redis so resume checks do not
// hit Nakama storage on every client start.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ludo/internal/domain"
	"ludo/internal/ports"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// kv is the subset of *redis.Client the cache uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store is a read-through cache in front of another match store. Only
// in-progress matches are cached, for as long as they can be resumed.
type Store struct {
	rdb     kv
	backing ports.MatchStore
	prefix  string
	ttl     time.Duration
}

// Open connects to redisURL and wraps backing.
func Open(redisURL, prefix string, ttl time.Duration, backing ports.MatchStore) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("redis url required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, prefix, ttl, backing), nil
}

// New wraps backing with an existing client.
func New(rdb kv, prefix string, ttl time.Duration, backing ports.MatchStore) *Store {
	return &Store{rdb: rdb, backing: backing, prefix: prefix, ttl: ttl}
}

func (s *Store) key(userID string) string {
	return s.prefix + userID
}

// SaveMatch writes through to the backing store, then refreshes the cache.
// Cache failures never fail the save. A row the backing store rejected as
// stale drops the cached copy so the next load reads the newer one.
func (s *Store) SaveMatch(ctx context.Context, row ports.MatchRow) error {
	if err := s.backing.SaveMatch(ctx, row); err != nil {
		if errors.Is(err, ports.ErrStaleMatch) {
			_ = s.rdb.Del(ctx, s.key(row.OwnerID)).Err()
		}
		return err
	}
	s.cache(ctx, row)
	return nil
}

// LoadActiveMatch serves from the cache and falls back to the backing store.
func (s *Store) LoadActiveMatch(ctx context.Context, userID string) (ports.MatchRow, error) {
	raw, err := s.rdb.Get(ctx, s.key(userID)).Bytes()
	if err == nil {
		var row ports.MatchRow
		if jerr := json.Unmarshal(raw, &row); jerr == nil {
			return row, nil
		}
	}

	row, err := s.backing.LoadActiveMatch(ctx, userID)
	if err != nil {
		return ports.MatchRow{}, err
	}
	s.cache(ctx, row)
	return row, nil
}

// ClearActiveMatch clears the backing row and drops the cached copy.
func (s *Store) ClearActiveMatch(ctx context.Context, userID, matchID string) error {
	if err := s.backing.ClearActiveMatch(ctx, userID, matchID); err != nil {
		return err
	}
	_ = s.rdb.Del(ctx, s.key(userID)).Err()
	return nil
}

func (s *Store) cache(ctx context.Context, row ports.MatchRow) {
	key := s.key(row.OwnerID)
	if row.Status != string(domain.StatusInProgress) {
		_ = s.rdb.Del(ctx, key).Err()
		return
	}
	data, err := json.Marshal(row)
	if err != nil {
		return
	}
	_ = s.rdb.Set(ctx, key, data, s.ttl).Err()
}

var _ ports.MatchStore = (*Store)(nil)
