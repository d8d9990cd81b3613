package oauth

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/pokedi/edfc/internal/errors"
	"github.com/pokedi/edfc/internal/models"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds exchange and refresh calls.
const DefaultTimeout = 15 * time.Second

// Config describes the Frontier authorization server.
type Config struct {
	ClientID   string
	AuthURL    string // e.g. https://auth.frontierstore.net
	Audience   string
	Scope      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the Frontier authorization server.
type Client struct {
	base       oauth2.Config
	audience   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient builds a client for a public (secret-less) PKCE application.
func NewClient(cfg Config) *Client {
	authURL := strings.TrimSuffix(cfg.AuthURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		base: oauth2.Config{
			ClientID: cfg.ClientID,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL + "/auth",
				TokenURL:  authURL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: strings.Fields(cfg.Scope),
		},
		audience:   cfg.Audience,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

func (c *Client) configFor(redirectURI string) *oauth2.Config {
	cfg := c.base
	cfg.RedirectURL = redirectURI
	return &cfg
}

func (c *Client) context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return context.WithTimeout(ctx, c.timeout)
}

// AuthorizationURL builds the URL the user opens to log in.
func (c *Client) AuthorizationURL(state, challenge, redirectURI string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", ChallengeMethod),
	}
	if c.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.audience))
	}
	return c.configFor(redirectURI).AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for tokens.
func (c *Client) Exchange(ctx context.Context, code, verifier, redirectURI string) (*models.TokenSet, error) {
	ctx, cancel := c.context(ctx)
	defer cancel()

	tok, err := c.configFor(redirectURI).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		status, body := retrieveDetails(err)
		return nil, &errors.ErrTokenExchange{Status: status, Body: body, Err: err}
	}
	return tokenSet(tok), nil
}

// Refresh rotates a refresh token. A 4xx answer marks the error as Rejected.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.TokenSet, error) {
	ctx, cancel := c.context(ctx)
	defer cancel()

	src := c.base.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		status, body := retrieveDetails(err)
		return nil, &errors.ErrTokenRefresh{
			Status:   status,
			Body:     body,
			Rejected: status >= 400 && status < 500,
			Err:      err,
		}
	}
	return tokenSet(tok), nil
}

func retrieveDetails(err error) (int, string) {
	var re *oauth2.RetrieveError
	if stderrors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode, string(re.Body)
	}
	return 0, ""
}

func tokenSet(tok *oauth2.Token) *models.TokenSet {
	set := &models.TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if set.TokenType == "" {
		set.TokenType = "Bearer"
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		set.Scope = scope
	}
	return set
}
