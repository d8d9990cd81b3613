package cli

import (
	"fmt"
	"io"

	"github.com/pokedi/edfc/internal/accounts"
	"github.com/pokedi/edfc/internal/cache"
	"github.com/pokedi/edfc/internal/capi"
	"github.com/pokedi/edfc/internal/cleanup"
	"github.com/pokedi/edfc/internal/commands"
	"github.com/pokedi/edfc/internal/config"
	"github.com/pokedi/edfc/internal/discord"
	"github.com/pokedi/edfc/internal/logging"
	"github.com/pokedi/edfc/internal/metrics"
	"github.com/pokedi/edfc/internal/oauth"
	"github.com/pokedi/edfc/internal/session"
	"github.com/pokedi/edfc/internal/store"
	"github.com/pokedi/edfc/internal/tokens"
)

// memoryDatabaseURL selects the in-memory store, for local trials only.
const memoryDatabaseURL = "memory"

// app holds every long-lived component built from the configuration.
type app struct {
	cfg          *config.Config
	logger       *logging.Logger
	metrics      *metrics.Metrics
	store        store.Store
	cache        cache.Cache
	accounts     *accounts.Registry
	tokens       *tokens.Manager
	sessions     *session.Manager
	fetcher      *capi.Fetcher
	commands     *commands.Registry
	interactions *discord.Handler // nil without a Discord public key
	cleanup      *cleanup.Manager
}

func newLogger(cfg config.LogConfig, out io.Writer) *logging.Logger {
	return logging.NewLogger(
		logging.WithOutput(out),
		logging.WithLevel(logging.ParseLevel(cfg.Level)),
		logging.WithFormat(cfg.Format),
	)
}

func openStore(cfg config.DatabaseConfig) (store.Store, error) {
	if cfg.URL == memoryDatabaseURL {
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStoreWithPool(store.PathFromURL(cfg.URL), store.PoolOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
}

func openCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Driver {
	case "memory":
		return cache.NewMemoryCache(), nil
	case "redis", "":
		return cache.NewRedisCache(cfg.URL, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Driver)
	}
}

// buildApp wires the components. On error everything opened so far is closed.
func buildApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	s, err := openStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	c, err := openCache(cfg.Cache)
	if err != nil {
		s.Close()
		return nil, err
	}

	m := metrics.NewMetrics("edfc")
	registry := accounts.NewRegistry(s, c, logger)

	authClient := oauth.NewClient(oauth.Config{
		ClientID: cfg.Frontier.ClientID,
		AuthURL:  cfg.Frontier.AuthURL,
		Audience: cfg.Frontier.Audience,
		Scope:    cfg.Frontier.Scope,
		Timeout:  cfg.Frontier.RequestTimeout,
	})
	capiClient := capi.NewClient(capi.Config{
		LiveURL:   cfg.CAPI.LiveURL,
		BetaURL:   cfg.CAPI.BetaURL,
		Timeout:   cfg.CAPI.Timeout,
		UserAgent: cfg.CAPI.UserAgent,

		BreakerThreshold: cfg.CAPI.BreakerThreshold,
		BreakerCooldown:  cfg.CAPI.BreakerCooldown,
	}, m)

	tokenManager := tokens.NewManager(s, registry, authClient, logger,
		tokens.WithMargin(cfg.Frontier.RefreshMargin),
		tokens.WithMetrics(m),
	)
	sessions := session.NewManager(session.Config{
		CallbackBaseURL: cfg.Frontier.CallbackBaseURL,
		TTL:             cfg.Frontier.SessionTTL,
		CacheTTL:        cfg.CAPI.CacheTTL,
	}, s, registry, authClient, capiClient, c, logger)
	fetcher := capi.NewFetcher(capiClient, tokenManager, c, s, cfg.CAPI.CacheTTL, logger, m)

	cmds := commands.NewRegistry(registry, logger)
	commands.RegisterAll(cmds, commands.Services{
		Sessions: sessions,
		Accounts: registry,
		Tokens:   tokenManager,
		Fetcher:  fetcher,
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		store:    s,
		cache:    c,
		accounts: registry,
		tokens:   tokenManager,
		sessions: sessions,
		fetcher:  fetcher,
		commands: cmds,
		cleanup:  cleanup.NewManager(cleanup.Config{Interval: cfg.Cleanup.Interval}, s, logger, m),
	}
	if mc, ok := c.(*cache.MemoryCache); ok {
		a.cleanup.SetCacheSweeper(mc)
	}

	if cfg.Discord.PublicKey != "" {
		responder, err := discord.NewSessionResponder(cfg.Discord.FollowupTimeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.interactions, err = discord.NewHandler(discord.Config{
			PublicKey:       cfg.Discord.PublicKey,
			FollowupTimeout: cfg.Discord.FollowupTimeout,
		}, cmds, responder, logger, m)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Warn("discord public key not configured, interactions endpoint disabled")
	}

	return a, nil
}

// Close releases the cache and store.
func (a *app) Close() error {
	cacheErr := a.cache.Close()
	if err := a.store.Close(); err != nil {
		return err
	}
	return cacheErr
}
