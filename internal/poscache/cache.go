// Package poscache caches reconstructed board positions in redis so
// reads of a game's current position skip the full history replay. The
// cache is strictly an accelerator: every entry can be recomputed from
// the persisted move history, so failures degrade to a replay, never
// to an error.
package poscache

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-duel/internal/obslog"
)

// Entries are keyed by game and ply count, so a stale entry is never
// returned for a game that has since advanced; old plies just expire.
const defaultTTL = 24 * time.Hour

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redis at the given URL and verifies the connection.
func New(redisURL string) (*Cache, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("redis URL required for position cache")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{rdb: rdb, ttl: defaultTTL}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, ttl: defaultTTL}
}

// Get returns the cached FEN for the game at the given ply count. A nil
// receiver, a miss and a transport error all report !ok.
func (c *Cache) Get(ctx context.Context, gameID string, plies int) (string, bool) {
	if c == nil {
		return "", false
	}
	fen, err := c.rdb.Get(ctx, fenKey(gameID, plies)).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		obslog.L().Warn("poscache_get_failed", zap.String("game_id", gameID), zap.Error(err))
		return "", false
	}
	return fen, true
}

// Put stores the FEN for the game at the given ply count. Best effort;
// errors are logged and swallowed. Safe on a nil receiver.
func (c *Cache) Put(ctx context.Context, gameID string, plies int, fen string) {
	if c == nil || fen == "" {
		return
	}
	if err := c.rdb.Set(ctx, fenKey(gameID, plies), fen, c.ttl).Err(); err != nil {
		obslog.L().Warn("poscache_put_failed", zap.String("game_id", gameID), zap.Error(err))
	}
}

// Close releases the underlying client. Safe on a nil receiver.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func fenKey(gameID string, plies int) string {
	return "duel:fen:" + strings.TrimSpace(gameID) + ":" + strconv.Itoa(plies)
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}
