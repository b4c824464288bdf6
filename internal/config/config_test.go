package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestResolveFromEnv(t *testing.T) {
	cfg, err := Resolve("", env(map[string]string{
		"ENGAGE_API_URL":   "https://engage.example.edu/api/v3.0/events/event?status=Approved",
		"ENGAGE_API_KEY":   "k3y",
		"OUTPUT_PATH":      "out/cal.ics",
		"UID_DOMAIN":       "example.edu",
		"TIMEZONE_HINT":    "America/New_York",
		"ENGAGE_PAGE_SIZE": "50",
		"ENGAGE_TIMEOUT":   "5s",
		"ICAL_ASCII_ONLY":  "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, "k3y", cfg.APIKey)
	assert.Equal(t, "out/cal.ics", cfg.OutputPath)
	assert.Equal(t, "example.edu", cfg.UIDDomain)
	assert.Equal(t, "America/New_York", cfg.TimezoneHint)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.False(t, cfg.ASCIIOnly)
	assert.Equal(t, "X-Engage-Api-Key", cfg.APIKeyHeader)
	assert.Equal(t, "engage-v3", cfg.Fields.Version)
}

func TestResolveDefaults(t *testing.T) {
	cfg, err := Resolve("", env(map[string]string{"ENGAGE_API_URL": "https://x.example.edu/events"}))
	require.NoError(t, err)

	assert.Equal(t, "docs/calendar.ics", cfg.OutputPath)
	assert.Equal(t, "fairmontstate.edu", cfg.UIDDomain)
	assert.Equal(t, "UTC", cfg.TimezoneHint)
	assert.True(t, cfg.ASCIIOnly)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Schedule)
}

func TestResolveMissingURL(t *testing.T) {
	_, err := Resolve("", env(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingAPIURL))

	_, err = Resolve("", env(map[string]string{"ENGAGE_API_URL": "   "}))
	assert.True(t, errors.Is(err, ErrMissingAPIURL))
}

func TestResolveInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"scheme":    {"ENGAGE_API_URL": "ftp://x.example.edu"},
		"page size": {"ENGAGE_API_URL": "https://x.example.edu", "ENGAGE_PAGE_SIZE": "zero"},
		"timeout":   {"ENGAGE_API_URL": "https://x.example.edu", "ENGAGE_TIMEOUT": "soon"},
		"ascii":     {"ENGAGE_API_URL": "https://x.example.edu", "ICAL_ASCII_ONLY": "maybe"},
		"schedule":  {"ENGAGE_API_URL": "https://x.example.edu", "SCHEDULE": "whenever"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve("", env(vars))
			require.Error(t, err)
		})
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engagecal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://yaml.example.edu/events
output_path: gs://bucket/calendar.ics
page_size: 25
timeout: 10s
ascii_only: false
schedule: "0 * * * *"
fields:
  title: title
s3:
  region: us-east-1
`), 0o600))

	cfg, err := Resolve(path, env(map[string]string{"ENGAGE_API_URL": "https://env.example.edu/events"}))
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.edu/events", cfg.APIURL)
	assert.Equal(t, "gs://bucket/calendar.ics", cfg.OutputPath)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.False(t, cfg.ASCIIOnly)
	assert.Equal(t, "0 * * * *", cfg.Schedule)
	assert.Equal(t, "title", cfg.Fields.Title)
	assert.Equal(t, "startsOn", cfg.Fields.StartTime)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
}

func TestLoadFirstRunWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "engagecal.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().OutputPath, cfg.OutputPath)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Timeout, again.Timeout)
	assert.Equal(t, cfg.Fields, again.Fields)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_size: [1, 2"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ENGAGECAL_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("ENGAGECAL_TEST_DOTENV", "")
	os.Unsetenv("ENGAGECAL_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("ENGAGECAL_TEST_DOTENV"))
}

func TestConfigSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engagecal.yaml")
	cfg := DefaultConfig()
	cfg.APIURL = "https://x.example.edu/events"
	cfg.Schedule = "@hourly"
	cfg.Fields.Title = "title"

	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.APIURL, got.APIURL)
	assert.Equal(t, "@hourly", got.Schedule)
	assert.Equal(t, "title", got.Fields.Title)
}
