// Package cache provides the key/value TTL store that fronts CAPI reads.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pokedi/edfc/internal/models"
)

// DefaultAccountSegment is used in keys when no explicit account was requested.
const DefaultAccountSegment = "default"

// Cache is a best-effort key/value store with per-entry TTL.
// Get reports a miss with ok=false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// Key builds "{resource}:{userId}:{accountId|default}:{env}". An accountID of
// zero means the caller did not pick an account.
func Key(resource models.Resource, userID string, accountID int64, env models.Environment) string {
	return fmt.Sprintf("%s:%s:%s:%s", resource, userID, accountSegment(accountID), env)
}

func accountSegment(accountID int64) string {
	if accountID == 0 {
		return DefaultAccountSegment
	}
	return strconv.FormatInt(accountID, 10)
}

// AccountKeys lists every key that may hold data for the account: each cached
// resource in each environment, under both the explicit id and "default".
func AccountKeys(userID string, accountID int64) []string {
	keys := make([]string, 0, len(models.CachedResources)*len(models.Environments)*2)
	for _, resource := range models.CachedResources {
		for _, env := range models.Environments {
			keys = append(keys, Key(resource, userID, 0, env))
			if accountID != 0 {
				keys = append(keys, Key(resource, userID, accountID, env))
			}
		}
	}
	return keys
}
