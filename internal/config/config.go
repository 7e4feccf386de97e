package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all export settings, populated from environment variables.
type Config struct {
	ControlFile string
	OutputDir   string
	OutputFile  string
	SourceCode  string

	HydrometBaseURL string
	HydrometTimeout time.Duration
	HydrometGzip    bool
	SeriesCacheSize int

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	PushgatewayURL  string

	// Optional Kafka publishing of RISE records.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	// Optional SQLite run ledger.
	LedgerPath string
}

// OutputPath is the full path of the RISE JSON document.
func (c *Config) OutputPath() string {
	return filepath.Join(c.OutputDir, c.OutputFile)
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	hydrometTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("HYDROMET_TIMEOUT", "60s"))
	if err != nil || hydrometTimeout <= 0 {
		return nil, errors.New("invalid HYDROMET_TIMEOUT")
	}

	cacheSize, err := parseNonNegativeInt("SERIES_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	gzip, err := strconv.ParseBool(sharedcfg.EnvOrDefault("HYDROMET_GZIP", "true"))
	if err != nil {
		return nil, errors.New("invalid HYDROMET_GZIP")
	}

	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		outputDir, err = defaultOutputDir()
		if err != nil {
			return nil, err
		}
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		ControlFile: sharedcfg.EnvOrDefault("CONTROL_FILE", "riseHydrometItems.csv"),
		OutputDir:   outputDir,
		OutputFile:  sharedcfg.EnvOrDefault("OUTPUT_FILE", "cpnRiseDataTransfer.json"),
		SourceCode:  sharedcfg.EnvOrDefault("RISE_SOURCE_CODE", "cpnhydromet"),

		HydrometBaseURL: sharedcfg.EnvOrDefault("HYDROMET_BASE_URL", "https://www.usbr.gov/pn-bin"),
		HydrometTimeout: hydrometTimeout,
		HydrometGzip:    gzip,
		SeriesCacheSize: cacheSize,

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "rise-hydromet-records"),
		KafkaEnabled: len(brokers) > 0,

		LedgerPath: os.Getenv("LEDGER_PATH"),
	}

	if cfg.OutputFile == "" {
		return nil, errors.New("OUTPUT_FILE is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

// defaultOutputDir places jsonOutputs beside the running executable.
func defaultOutputDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), "jsonOutputs"), nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
