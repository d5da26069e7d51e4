package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	// DefaultRootURI is the public signature repository endpoint.
	// Lookups append the hex digest directly to it.
	DefaultRootURI = "https://validate.whitescope.io/api/v1/json/"

	// DefaultMaxConcurrency bounds in-flight repository requests when
	// the caller does not size the pool.
	DefaultMaxConcurrency = 4

	requestTimeout = 10 * time.Second
)

// RateLimiter throttles outbound repository requests.
type RateLimiter struct {
	Limiter *rate.Limiter
	Burst   int
	Rate    rate.Limit // Requests per second
}

// Fetcher retrieves the raw repository matches for one digest.
type Fetcher interface {
	FetchMatches(ctx context.Context, digest string) ([]map[string]any, error)
}

// Client queries a signature repository over HTTP. One GET per digest
// against RootURI + digest, expecting a JSON array of flat attribute
// objects.
type Client struct {
	RootURI     string
	Client      *http.Client
	RateLimiter *RateLimiter
	Logger      *logrus.Logger
}

// NewClient initializes a repository client against the given root
// URI, falling back to the public repository when it is empty.
func NewClient(rootURI string, logger *logrus.Logger) *Client {
	if rootURI == "" {
		rootURI = DefaultRootURI
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		RootURI: rootURI,
		Client:  &http.Client{Timeout: requestTimeout},
		Logger:  logger,
	}
}

// NewClientFromConfig builds a client with the config's rate limiter
// and, when a token URL is present, an OAuth2 client-credentials
// transport for private repositories.
func NewClientFromConfig(ctx context.Context, cfg *Config, logger *logrus.Logger) *Client {
	client := NewClient(cfg.RootURI, logger)
	if cfg.Rate > 0 {
		client.SetRateLimiter(&RateLimiter{
			Limiter: rate.NewLimiter(cfg.Rate, cfg.Burst),
			Rate:    cfg.Rate,
			Burst:   cfg.Burst,
		})
	}
	if cfg.TokenURL != "" {
		credentials := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client.Client = credentials.Client(ctx)
		client.Client.Timeout = requestTimeout
	}
	return client
}

// SetRateLimiter sets the rate limiter for the client.
func (c *Client) SetRateLimiter(limiter *RateLimiter) {
	c.RateLimiter = limiter
}

// FetchMatches looks one digest up in the repository. A 200 with a
// decodable array yields the match objects, which may be empty; any
// other status or a transport/decode failure is an error for the
// caller to downgrade.
func (c *Client) FetchMatches(ctx context.Context, digest string) ([]map[string]any, error) {
	if c.RateLimiter != nil {
		// Wait for permission to proceed based on rate limiter
		if err := c.RateLimiter.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
	}

	url := c.RootURI + digest
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.Logger.WithFields(logrus.Fields{
		"digest": digest,
		"status": resp.StatusCode,
	}).Debug("Signature repository response")

	switch resp.StatusCode {
	case 200:
		var matches []map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
			return nil, fmt.Errorf("failed to decode repository response: %w", err)
		}
		return matches, nil
	case 429:
		return nil, fmt.Errorf("signature repository rate limit exceeded")
	default:
		return nil, fmt.Errorf("signature repository returned status: %d", resp.StatusCode)
	}
}
