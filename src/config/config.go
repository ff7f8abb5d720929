package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ZelmaCorp/VotingTool-sub000/src/data"
	"gorm.io/gorm"
)

// Config carries service configuration. Values come from the settings
// table with environment fallback.
type Config struct {
	RedisURL          string
	SubscanAPIKey     string
	IndexerRows       int
	TxRetention       time.Duration
	ReconcileInterval time.Duration
	SweepInterval     time.Duration
	Port              string
}

// Load reads configuration from the database settings with env fallback.
func Load(db *gorm.DB) Config {
	if err := data.LoadSettings(db); err != nil {
		log.Printf("config: load settings: %v", err)
	}

	return Config{
		RedisURL:          GetSetting("redis_url", "REDIS_URL", ""),
		SubscanAPIKey:     GetSetting("subscan_api_key", "SUBSCAN_API_KEY", ""),
		IndexerRows:       getIntSetting("indexer_rows", "INDEXER_ROWS", 50),
		TxRetention:       time.Duration(getIntSetting("tx_retention_days", "TX_RETENTION_DAYS", 7)) * 24 * time.Hour,
		ReconcileInterval: time.Duration(getIntSetting("reconcile_interval_min", "RECONCILE_INTERVAL_MIN", 15)) * time.Minute,
		SweepInterval:     time.Duration(getIntSetting("sweep_interval_min", "SWEEP_INTERVAL_MIN", 60)) * time.Minute,
		Port:              GetSetting("port", "PORT", "8080"),
	}
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func getIntSetting(name, envKey string, defaultValue int) int {
	if v := GetSetting(name, envKey, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: invalid %s value %q, using %d", name, v, defaultValue)
	}
	return defaultValue
}
