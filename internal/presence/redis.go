package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Hash keys for the registry mappings. Kept per-field (HSET/HDEL) so
// independent connections write distinct fields without contention.
const (
	keyOnline = "online" // userID -> username
	keyConns  = "conns"  // connID -> userID
	keyNames  = "names"  // username -> userID (reverse index)
	keyByUser = "byuser" // userID -> connID (last connection wins)
)

// RedisRegistry is a Registry backed by Redis hashes. It is shared
// across coordinator instances, so the roster survives restarts and
// horizontal scale-out keeps a single source of truth.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisRegistry creates a registry on an existing Redis client.
// prefix namespaces the hashes, e.g. "presence:".
func NewRedisRegistry(client *redis.Client, prefix string) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) key(name string) string {
	return r.prefix + name
}

// Ping checks the Redis connection.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SetOnline adds the user to the online roster.
func (r *RedisRegistry) SetOnline(ctx context.Context, userID int64, username string) error {
	field := strconv.FormatInt(userID, 10)
	if err := r.client.HSet(ctx, r.key(keyOnline), field, username).Err(); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	if err := r.client.HSet(ctx, r.key(keyNames), username, field).Err(); err != nil {
		return fmt.Errorf("set name index: %w", err)
	}
	return nil
}

// RemoveOnline removes the user from the online roster.
func (r *RedisRegistry) RemoveOnline(ctx context.Context, userID int64) error {
	field := strconv.FormatInt(userID, 10)

	username, err := r.client.HGet(ctx, r.key(keyOnline), field).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get online entry: %w", err)
	}
	if err == nil {
		if err := r.client.HDel(ctx, r.key(keyNames), username).Err(); err != nil {
			return fmt.Errorf("remove name index: %w", err)
		}
	}

	if err := r.client.HDel(ctx, r.key(keyOnline), field).Err(); err != nil {
		return fmt.Errorf("remove online: %w", err)
	}
	if err := r.client.HDel(ctx, r.key(keyByUser), field).Err(); err != nil {
		return fmt.Errorf("remove user binding: %w", err)
	}
	return nil
}

// BindConnection records which user owns a connection.
func (r *RedisRegistry) BindConnection(ctx context.Context, connID string, userID int64) error {
	field := strconv.FormatInt(userID, 10)
	if err := r.client.HSet(ctx, r.key(keyConns), connID, field).Err(); err != nil {
		return fmt.Errorf("bind connection: %w", err)
	}
	if err := r.client.HSet(ctx, r.key(keyByUser), field, connID).Err(); err != nil {
		return fmt.Errorf("bind user index: %w", err)
	}
	return nil
}

// UnbindConnection removes a connection ownership record.
func (r *RedisRegistry) UnbindConnection(ctx context.Context, connID string) error {
	userField, err := r.client.HGet(ctx, r.key(keyConns), connID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get connection binding: %w", err)
	}
	if err == nil {
		// Only drop the user binding if it still points at this
		// connection; a newer connection may have taken over.
		current, err := r.client.HGet(ctx, r.key(keyByUser), userField).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("get user binding: %w", err)
		}
		if err == nil && current == connID {
			if err := r.client.HDel(ctx, r.key(keyByUser), userField).Err(); err != nil {
				return fmt.Errorf("remove user binding: %w", err)
			}
		}
	}

	if err := r.client.HDel(ctx, r.key(keyConns), connID).Err(); err != nil {
		return fmt.Errorf("unbind connection: %w", err)
	}
	return nil
}

// UserForConnection resolves the owning user of a connection.
func (r *RedisRegistry) UserForConnection(ctx context.Context, connID string) (int64, bool, error) {
	val, err := r.client.HGet(ctx, r.key(keyConns), connID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get connection binding: %w", err)
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse user id %q: %w", val, err)
	}
	return userID, true, nil
}

// ListOnline returns the roster ordered by username.
func (r *RedisRegistry) ListOnline(ctx context.Context) ([]Entry, error) {
	all, err := r.client.HGetAll(ctx, r.key(keyOnline)).Result()
	if err != nil {
		return nil, fmt.Errorf("list online: %w", err)
	}

	entries := make([]Entry, 0, len(all))
	for field, username := range all {
		userID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			// Skip malformed entries instead of failing the roster.
			continue
		}
		entries = append(entries, Entry{UserID: userID, Username: username})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Username < entries[j].Username
	})
	return entries, nil
}

// ConnectionForUsername resolves the live connection of an online user
// through the username and user-id indexes, avoiding a roster scan.
func (r *RedisRegistry) ConnectionForUsername(ctx context.Context, username string) (string, bool, error) {
	userField, err := r.client.HGet(ctx, r.key(keyNames), username).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get name index: %w", err)
	}

	connID, err := r.client.HGet(ctx, r.key(keyByUser), userField).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get user binding: %w", err)
	}
	return connID, true, nil
}

// Close closes the underlying Redis client.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
