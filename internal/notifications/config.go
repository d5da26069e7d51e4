package notifications

import (
	"os"
	"strings"
)

// NotificationConfig holds the notification-related configuration.
type NotificationConfig struct {
	ShoutrrrURLs []string
}

// LoadNotificationConfig loads notification configuration from
// environment variables. An unset SHOUTRRR_URLS returns a nil config:
// notifications are opt-in.
func LoadNotificationConfig() (*NotificationConfig, error) {
	shoutrrrURLsStr := os.Getenv("SHOUTRRR_URLS")
	if shoutrrrURLsStr == "" {
		return nil, nil
	}

	return &NotificationConfig{
		ShoutrrrURLs: parseShoutrrrURLs(shoutrrrURLsStr),
	}, nil
}

// parseShoutrrrURLs parses a comma-separated list of Shoutrrr URLs.
func parseShoutrrrURLs(urls string) []string {
	var result []string
	for _, url := range strings.Split(urls, ",") {
		trimmed := strings.TrimSpace(url)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
