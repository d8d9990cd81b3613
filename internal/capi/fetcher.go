package capi

import (
	"context"
	"fmt"
	"time"

	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/metrics"
	"github.com/pokedi/edfc/internal/models"
)

// DefaultCacheTTL is how long fetched resources are cached.
const DefaultCacheTTL = 15 * time.Minute

// TokenSource supplies valid access tokens. "" means not logged in.
type TokenSource interface {
	GetValidAccessToken(ctx context.Context, userID string, accountID int64) (string, error)
}

// CarrierUpdater stores denormalized carrier fields on an account.
type CarrierUpdater interface {
	UpdateCarrier(ctx context.Context, userID string, accountID int64, carrierName, carrierID string) error
}

// Fetcher is the cache-fronted resource reader.
type Fetcher struct {
	client   *Client
	tokens   TokenSource
	cache    cache.Cache
	accounts CarrierUpdater
	ttl      time.Duration
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewFetcher creates a Fetcher. c, accounts and m may be nil.
func NewFetcher(client *Client, tokens TokenSource, c cache.Cache, accounts CarrierUpdater, ttl time.Duration, logger *logging.Logger, m *metrics.Metrics) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &Fetcher{
		client:   client,
		tokens:   tokens,
		cache:    c,
		accounts: accounts,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
	}
}

// FetchResource returns the payload for a cached resource, or nil when the
// user has no valid token. accountID 0 means the default account. Cache
// failures only ever turn into misses.
func (f *Fetcher) FetchResource(ctx context.Context, resource models.Resource, userID string, accountID int64, env models.Environment) ([]byte, error) {
	if !resource.Cacheable() {
		return nil, fmt.Errorf("resource %s is not served through the cache", resource)
	}

	key := cache.Key(resource, userID, accountID, env)
	if payload, ok := f.cacheGet(ctx, key); ok {
		return payload, nil
	}

	token, err := f.tokens.GetValidAccessToken(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	payload, err := f.client.Fetch(ctx, resource, env, token)
	if err != nil {
		f.logger.WarnWithContext(ctx, "CAPI fetch failed",
			"resource", resource,
			"user_id", userID,
			"account_id", accountID,
			"error", err,
		)
		return nil, err
	}

	if resource == models.ResourceProfile && accountID != 0 {
		f.refreshCarrier(ctx, userID, accountID, env, token)
	}

	f.cacheSet(ctx, key, payload)
	return payload, nil
}

// FetchJournal reads the journal, bypassing the cache. date nil means today.
func (f *Fetcher) FetchJournal(ctx context.Context, userID string, accountID int64, env models.Environment, date *JournalDate) ([]byte, error) {
	token, err := f.tokens.GetValidAccessToken(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	payload, err := f.client.Journal(ctx, env, token, date)
	if err != nil {
		f.logger.WarnWithContext(ctx, "CAPI journal fetch failed", "user_id", userID, "error", err)
		return nil, err
	}
	if payload == nil {
		payload = []byte{}
	}
	return payload, nil
}

// FetchProfile is FetchResource for profile, decoded.
func (f *Fetcher) FetchProfile(ctx context.Context, userID string, accountID int64, env models.Environment) (*Profile, error) {
	payload, err := f.FetchResource(ctx, models.ResourceProfile, userID, accountID, env)
	if err != nil || payload == nil {
		return nil, err
	}
	return ParseProfile(payload)
}

// refreshCarrier updates the account's carrier name and callsign. Failures
// are logged and ignored.
func (f *Fetcher) refreshCarrier(ctx context.Context, userID string, accountID int64, env models.Environment, token string) {
	if f.accounts == nil {
		return
	}
	payload, err := f.client.Fetch(ctx, models.ResourceFleetCarrier, env, token)
	if err != nil {
		f.logger.DebugWithContext(ctx, "could not refresh carrier info", "account_id", accountID, "error", err)
		return
	}
	carrier, err := ParseCarrier(payload)
	if err != nil {
		f.logger.DebugWithContext(ctx, "could not parse carrier info", "account_id", accountID, "error", err)
		return
	}
	if err := f.accounts.UpdateCarrier(ctx, userID, accountID, carrier.DisplayName(), carrier.Name.Callsign); err != nil {
		f.logger.WarnWithContext(ctx, "could not store carrier info", "account_id", accountID, "error", err)
	}
}

func (f *Fetcher) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if f.cache == nil {
		return nil, false
	}
	payload, ok, err := f.cache.Get(ctx, key)
	switch {
	case err != nil:
		f.metrics.RecordCacheOperation("get", "error")
		f.logger.WarnWithContext(ctx, "cache get failed", "key", key, "error", err)
		return nil, false
	case !ok:
		f.metrics.RecordCacheOperation("get", "miss")
		return nil, false
	default:
		f.metrics.RecordCacheOperation("get", "hit")
		return payload, true
	}
}

func (f *Fetcher) cacheSet(ctx context.Context, key string, payload []byte) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Set(ctx, key, payload, f.ttl); err != nil {
		f.metrics.RecordCacheOperation("set", "error")
		f.logger.WarnWithContext(ctx, "cache set failed", "key", key, "error", err)
		return
	}
	f.metrics.RecordCacheOperation("set", "ok")
}
