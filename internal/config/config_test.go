package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pinEnvironment unsets every config variable so defaults apply regardless
// of what is set on the host running the tests. t.Setenv registers the
// restore; the variable itself must be unset because envconfig cannot parse
// an empty string into the numeric fields.
func pinEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ARCHIVER_ENVIRONMENT",
		"ARCHIVER_FEED_URL",
		"ARCHIVER_DIRECTORY_URL",
		"ARCHIVER_USERNAME",
		"ARCHIVER_PASSWORD",
		"ARCHIVER_DATA_DIR",
		"ARCHIVER_RAW_DATA_DIR",
		"ARCHIVER_WANTED_COLLECTIONS",
		"ARCHIVER_INGEST_QUEUE_SIZE",
		"ARCHIVER_PERSIST_QUEUE_SIZE",
		"ARCHIVER_BATCH_SIZE_MAX",
		"ARCHIVER_BATCH_TIMEOUT_SEC",
		"ARCHIVER_RECONNECT_DELAY_SEC",
		"ARCHIVER_RESOLVE_CONCURRENCY",
		"ARCHIVER_SHUTDOWN_TIMEOUT_SEC",
		"ARCHIVER_OPS_PORT",
		"ARCHIVER_DEBUG",
		"ARCHIVER_STREAM",
		"ARCHIVER_MEASURE_RATE",
		"ARCHIVER_RESOLVE_HANDLES",
		"ARCHIVER_CURSOR",
		"ARCHIVER_ARCHIVE_ALL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	pinEnvironment(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "wss://jetstream2.us-east.bsky.network/subscribe", cfg.FeedURL)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "data_everything", cfg.RawDataDir)
	assert.Equal(t, []string{"app.bsky.feed.post"}, cfg.WantedCollections)
	assert.Equal(t, 10, cfg.ResolveConcurrency)
	assert.Equal(t, 5, cfg.ReconnectDelaySec)
	assert.Equal(t, 5, cfg.ShutdownTimeoutSec)
	assert.False(t, cfg.ArchiveAll)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	pinEnvironment(t)
	t.Setenv("ARCHIVER_ENVIRONMENT", "production")
	t.Setenv("ARCHIVER_CURSOR", "1700000000000000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, int64(1700000000000000), cfg.Cursor)
}

func TestValidate_RejectsRawModeWithResolution(t *testing.T) {
	pinEnvironment(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.ArchiveAll = true
	cfg.ResolveHandles = true

	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveBatchTimeout(t *testing.T) {
	pinEnvironment(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.BatchTimeoutSec = 0
	assert.Error(t, cfg.Validate(), "a zero flush interval would crash the persistence stage")

	cfg.BatchTimeoutSec = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNegativeDelays(t *testing.T) {
	pinEnvironment(t)

	cfg, err := Load()
	require.NoError(t, err)

	cfg.ReconnectDelaySec = -1
	assert.Error(t, cfg.Validate())

	cfg, err = Load()
	require.NoError(t, err)

	cfg.ShutdownTimeoutSec = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	pinEnvironment(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.NoError(t, cfg.Validate())
}
