package repository

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/y0ug/hashscan/internal/models"
)

// Config holds the signature-repository client configuration.
type Config struct {
	RootURI        string
	Algorithms     []models.Algorithm
	MaxConcurrency int64
	Rate           rate.Limit // Requests per second, 0 disables limiting
	Burst          int

	// OAuth2 client-credentials settings for private repositories.
	// TokenURL empty means the repository is queried anonymously.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// ValidateRootURI checks that a repository root URI is an absolute URL
// a digest can be appended to.
func ValidateRootURI(rootURI string) error {
	parsed, err := url.Parse(rootURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid repository root URI %q", rootURI)
	}
	return nil
}

// LoadConfig loads repository configuration from environment variables.
func LoadConfig() (*Config, error) {
	rootURI := os.Getenv("REPOSITORY_ROOT_URI")
	if rootURI == "" {
		rootURI = DefaultRootURI
	}
	if err := ValidateRootURI(rootURI); err != nil {
		return nil, fmt.Errorf("REPOSITORY_ROOT_URI: %w", err)
	}

	algorithms := DefaultAlgorithms()
	if algosStr := os.Getenv("REPOSITORY_ALGORITHMS"); algosStr != "" {
		parsed, err := models.ParseAlgorithms(algosStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REPOSITORY_ALGORITHMS: %w", err)
		}
		algorithms = parsed
	}

	maxConcurrencyStr := os.Getenv("REPOSITORY_MAX_CONCURRENCY")
	maxConcurrency, err := strconv.ParseInt(maxConcurrencyStr, 10, 64)
	if err != nil || maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
		if maxConcurrencyStr != "" {
			logrus.Infof("Invalid REPOSITORY_MAX_CONCURRENCY. Defaulting to %d.", maxConcurrency)
		}
	}

	var requestRate float64
	if rateStr := os.Getenv("REPOSITORY_RATE_LIMIT"); rateStr != "" {
		requestRate, err = strconv.ParseFloat(rateStr, 64)
		if err != nil || requestRate < 0 {
			return nil, fmt.Errorf("invalid REPOSITORY_RATE_LIMIT %q", rateStr)
		}
	}
	burst := 1
	if burstStr := os.Getenv("REPOSITORY_RATE_BURST"); burstStr != "" {
		burst, err = strconv.Atoi(burstStr)
		if err != nil || burst <= 0 {
			return nil, fmt.Errorf("invalid REPOSITORY_RATE_BURST %q", burstStr)
		}
	}

	var scopes []string
	if scopesStr := os.Getenv("REPOSITORY_SCOPES"); scopesStr != "" {
		for _, scope := range strings.Split(scopesStr, ",") {
			scopes = append(scopes, strings.TrimSpace(scope))
		}
	}

	return &Config{
		RootURI:        rootURI,
		Algorithms:     algorithms,
		MaxConcurrency: maxConcurrency,
		Rate:           rate.Limit(requestRate),
		Burst:          burst,
		TokenURL:       os.Getenv("REPOSITORY_TOKEN_URL"),
		ClientID:       os.Getenv("REPOSITORY_CLIENT_ID"),
		ClientSecret:   os.Getenv("REPOSITORY_CLIENT_SECRET"),
		Scopes:         scopes,
	}, nil
}

// DefaultAlgorithms returns the algorithm set queried when none is
// configured.
func DefaultAlgorithms() []models.Algorithm {
	return []models.Algorithm{models.MD5}
}
