package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port             int               `json:"port"`
	PublicBaseURL    string            `json:"public_base_url"`
	CORSAllowOrigins []string          `json:"cors_allow_origins"`
	LogConfig        logger.LogConfig  `json:"log_config"`
	Database         DatabaseConfig    `json:"database"`
	ObjectStore      ObjectStoreConfig `json:"object_store"`
	Mail             MailConfig        `json:"mail"`
	Share            ShareConfig       `json:"share"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type ObjectStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type ShareConfig struct {
	URLTTLSeconds       int    `json:"url_ttl_seconds"`
	CleanupDelaySeconds int    `json:"cleanup_delay_seconds"`
	Exclusive           bool   `json:"exclusive"`
	ReclaimSpec         string `json:"reclaim_spec"`
	ReclaimKeepDays     int    `json:"reclaim_keep_days"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database.DSN == "" && cfg.Database.DBName == "" {
		return nil, fmt.Errorf("database.dsn or database.db_name is required")
	}
	if cfg.ObjectStore.Type == "" {
		return nil, fmt.Errorf("object_store.type is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("public_base_url is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Share.URLTTLSeconds <= 0 {
		cfg.Share.URLTTLSeconds = 3600
	}
	if cfg.Share.CleanupDelaySeconds <= 0 {
		cfg.Share.CleanupDelaySeconds = 5
	}
	if cfg.Share.ReclaimKeepDays <= 0 {
		cfg.Share.ReclaimKeepDays = 7
	}
	return &cfg, nil
}
