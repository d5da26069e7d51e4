package history

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the run-history storage configuration.
type Config struct {
	Type      string
	Path      string
	RedisAddr string
	RedisPass string
	RedisDB   int
}

// LoadConfig loads history configuration from environment variables.
// An unset HISTORY_TYPE returns a nil config: history is optional and
// stays disabled unless asked for.
func LoadConfig() (*Config, error) {
	storeType := os.Getenv("HISTORY_TYPE")
	if storeType == "" {
		return nil, nil
	}

	config := &Config{
		Type: storeType,
	}

	switch storeType {
	case "bolt":
		config.Path = os.Getenv("HISTORY_PATH")
		if config.Path == "" {
			return nil, fmt.Errorf("HISTORY_PATH is required for BoltDB history")
		}
	case "redis":
		config.RedisAddr = os.Getenv("REDIS_ADDR")
		if config.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required for Redis history")
		}
		config.RedisPass = os.Getenv("REDIS_PASSWORD")
		dbStr := os.Getenv("REDIS_DB")
		if dbStr == "" {
			config.RedisDB = 0 // default DB
		} else {
			db, err := strconv.Atoi(dbStr)
			if err != nil {
				return nil, fmt.Errorf("invalid REDIS_DB value: %v", err)
			}
			config.RedisDB = db
		}
	default:
		return nil, fmt.Errorf("unsupported HISTORY_TYPE: %s", storeType)
	}

	return config, nil
}
