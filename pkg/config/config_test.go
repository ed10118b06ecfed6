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

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	clearEnv(t,
		"ENV_FILE", "SERVICE_NAME", "ENV", "LOG_LEVEL", "HEADLESS", "UI_TIMEOUT",
		"STORAGE_STATE_PATH", "HTTP_TIMEOUT", "HTTP_RETRY_MAX", "RATE_RPS", "RATE_BURST",
		"SECRETS_SOURCE", "PORT", "SCHEDULE_SUITES", "SCHEDULE_INTERVAL", "JIRA_BULK_KEYS",
	)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "qa-suite", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 10*time.Second, cfg.UITimeout)
	assert.Equal(t, "state.json", cfg.StorageStatePath)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 0, cfg.HTTPRetryMax)
	assert.Equal(t, 10, cfg.RateRPS)
	assert.Equal(t, 20, cfg.RateBurst)
	assert.Equal(t, "env", cfg.SecretsSource)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, time.Hour, cfg.ScheduleInterval)
	assert.Nil(t, cfg.ScheduleSuites)
	assert.Nil(t, cfg.JiraBulkKeys)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	clearEnv(t, "ENV_FILE")
	t.Setenv("AUTH_BASE_URL", "https://auth.test")
	t.Setenv("API_BASE_URL", "https://api.test")
	t.Setenv("HEADLESS", "false")
	t.Setenv("HTTP_RETRY_MAX", "3")
	t.Setenv("SCHEDULE_SUITES", "workspace, jira,,")
	t.Setenv("JIRA_BULK_KEYS", "CRM-6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://auth.test", cfg.AuthBaseURL)
	assert.Equal(t, "https://api.test", cfg.APIBaseURL)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 3, cfg.HTTPRetryMax)
	assert.Equal(t, []string{"workspace", "jira"}, cfg.ScheduleSuites)
	assert.Equal(t, []string{"CRM-6"}, cfg.JiraBulkKeys)
}

func TestLoad_ReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	clearEnv(t, "ENV_FILE", "GAMDOM_USERNAME")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GAMDOM_USERNAME=player1\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "player1", cfg.GamdomUsername)
}

func TestLoad_ExplicitEnvFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV_FILE", "does-not-exist.env")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.env")
}

func TestValidate_ReportsEveryMissingKey(t *testing.T) {
	cfg := &Config{AuthBaseURL: "https://auth.test"}

	err := cfg.Validate(SuiteWorkspace)
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"API_BASE_URL", "WORKSPACE_EMAIL", "WORKSPACE_PASSWORD"}, cfgErr.Missing)
}

func TestValidate_JiraAcceptsEitherTokenForm(t *testing.T) {
	base := Config{JiraBaseURL: "https://jira.test", JiraProjectKey: "QA"}

	withToken := base
	withToken.JiraBasicAuthToken = "abc"
	assert.NoError(t, withToken.Validate(SuiteJira))

	withPair := base
	withPair.JiraUsername = "qa@example.com"
	withPair.JiraAPIToken = "secret"
	assert.NoError(t, withPair.Validate(SuiteJira))

	err := base.Validate(SuiteJira)
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"JIRA_API_TOKEN", "JIRA_API_USERNAME"}, cfgErr.Missing)
}

func TestValidate_UnknownSuite(t *testing.T) {
	err := (&Config{}).Validate("perf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown suite "perf"`)
}

func TestJiraAuthToken(t *testing.T) {
	cfg := &Config{JiraUsername: "a@b.com", JiraAPIToken: "pw"}
	assert.Equal(t, "YUBiLmNvbTpwdw==", cfg.JiraAuthToken())

	cfg.JiraBasicAuthToken = "explicit"
	assert.Equal(t, "explicit", cfg.JiraAuthToken())

	assert.Empty(t, (&Config{}).JiraAuthToken())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("QA_INT", "nope")
	t.Setenv("QA_BOOL", "true")
	t.Setenv("QA_DUR", "2s")

	assert.Equal(t, 7, GetEnvInt("QA_INT", 7))
	assert.True(t, GetEnvBool("QA_BOOL", false))
	assert.Equal(t, 2*time.Second, GetEnvDuration("QA_DUR", time.Second))
	assert.Equal(t, "fallback", GetEnv("QA_UNSET_KEY", "fallback"))
}
