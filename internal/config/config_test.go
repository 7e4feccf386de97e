package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "riseHydrometItems.csv", cfg.ControlFile)
	assert.Equal(t, "jsonOutputs", filepath.Base(cfg.OutputDir))
	assert.Equal(t, "cpnRiseDataTransfer.json", cfg.OutputFile)
	assert.Equal(t, "cpnhydromet", cfg.SourceCode)
	assert.Equal(t, "https://www.usbr.gov/pn-bin", cfg.HydrometBaseURL)
	assert.Equal(t, 60*time.Second, cfg.HydrometTimeout)
	assert.True(t, cfg.HydrometGzip)
	assert.Equal(t, 256, cfg.SeriesCacheSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.PushgatewayURL)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "rise-hydromet-records", cfg.KafkaTopic)
	assert.Empty(t, cfg.LedgerPath)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("CONTROL_FILE", "/etc/rise/items.csv")
	t.Setenv("OUTPUT_DIR", "/var/lib/rise")
	t.Setenv("OUTPUT_FILE", "out.json")
	t.Setenv("RISE_SOURCE_CODE", "gphydromet")
	t.Setenv("HYDROMET_BASE_URL", "http://localhost:9000/pn-bin")
	t.Setenv("HYDROMET_TIMEOUT", "15s")
	t.Setenv("HYDROMET_GZIP", "false")
	t.Setenv("SERIES_CACHE_SIZE", "0")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "rise-records")
	t.Setenv("LEDGER_PATH", "/var/lib/rise/ledger.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/etc/rise/items.csv", cfg.ControlFile)
	assert.Equal(t, "/var/lib/rise", cfg.OutputDir)
	assert.Equal(t, "out.json", cfg.OutputFile)
	assert.Equal(t, filepath.Join("/var/lib/rise", "out.json"), cfg.OutputPath())
	assert.Equal(t, "gphydromet", cfg.SourceCode)
	assert.Equal(t, "http://localhost:9000/pn-bin", cfg.HydrometBaseURL)
	assert.Equal(t, 15*time.Second, cfg.HydrometTimeout)
	assert.False(t, cfg.HydrometGzip)
	assert.Equal(t, 0, cfg.SeriesCacheSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "rise-records", cfg.KafkaTopic)
	assert.Equal(t, "/var/lib/rise/ledger.db", cfg.LedgerPath)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidHydrometTimeout(t *testing.T) {
	for _, v := range []string{"bad", "0s", "-5s"} {
		t.Setenv("HYDROMET_TIMEOUT", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "HYDROMET_TIMEOUT")
	}
}

func TestLoad_InvalidCacheSize(t *testing.T) {
	t.Setenv("SERIES_CACHE_SIZE", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERIES_CACHE_SIZE")
}

func TestLoad_InvalidGzip(t *testing.T) {
	t.Setenv("HYDROMET_GZIP", "maybe")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HYDROMET_GZIP")
}
