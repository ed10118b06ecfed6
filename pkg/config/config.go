package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Suite names understood by Validate and the runner.
const (
	SuiteWorkspace = "workspace"
	SuiteJira      = "jira"
	SuiteUI        = "ui"
)

// AllSuites lists every suite in execution order.
var AllSuites = []string{SuiteWorkspace, SuiteJira, SuiteUI}

// Config holds the runtime configuration for the qa-suite.
// It is built once at process start and passed to every component that needs it.
type Config struct {
	ServiceName string
	Env         string
	LogLevel    string

	// Workspace GraphQL API
	AuthBaseURL       string
	APIBaseURL        string
	WorkspaceEmail    string
	WorkspacePassword string

	// Issue tracker REST API
	JiraBaseURL        string
	JiraBasicAuthToken string
	JiraUsername       string
	JiraAPIToken       string
	JiraProjectKey     string
	JiraExpectedEmail  string
	JiraBulkKeys       []string

	// UI
	BaseURL          string
	GamdomUsername   string
	GamdomPassword   string
	Headless         bool
	UITimeout        time.Duration
	StorageStatePath string
	Screenshots      bool
	ScreenshotDir    string
	InstallBrowsers  bool

	// HTTP transport
	HTTPTimeout  time.Duration
	HTTPRetryMax int
	RateRPS      int
	RateBurst    int

	// Secrets
	SecretsSource string
	AWSRegion     string
	CacheTTL      time.Duration

	// Result sinks
	RedisAddr      string
	RedisDB        int
	DatabaseURL    string
	NATSURL        string
	RabbitMQURL    string
	PushgatewayURL string
	ResultTTL      time.Duration

	// Serve mode
	Port             int
	ScheduleSuites   []string
	ScheduleInterval time.Duration
}

// ConfigError reports required configuration keys that are absent.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
}

// Load reads the env file named by ENV_FILE (default ".env") and builds a Config from the
// process environment. A missing default .env is tolerated so CI can inject variables
// directly; an explicitly named file that does not exist is an error.
func Load() (*Config, error) {
	envFile, explicit := os.LookupEnv("ENV_FILE")
	if !explicit || envFile == "" {
		envFile = ".env"
		explicit = false
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "qa-suite"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),

		AuthBaseURL:       os.Getenv("AUTH_BASE_URL"),
		APIBaseURL:        os.Getenv("API_BASE_URL"),
		WorkspaceEmail:    os.Getenv("WORKSPACE_EMAIL"),
		WorkspacePassword: os.Getenv("WORKSPACE_PASSWORD"),

		JiraBaseURL:        os.Getenv("JIRA_API_URL"),
		JiraBasicAuthToken: os.Getenv("JIRA_BASIC_AUTH_TOKEN"),
		JiraUsername:       os.Getenv("JIRA_API_USERNAME"),
		JiraAPIToken:       os.Getenv("JIRA_API_TOKEN"),
		JiraProjectKey:     os.Getenv("JIRA_API_PROJECT_KEY"),
		JiraExpectedEmail:  os.Getenv("JIRA_EXPECTED_EMAIL"),
		JiraBulkKeys:       GetEnvList("JIRA_BULK_KEYS", nil),

		BaseURL:          os.Getenv("BASE_URL"),
		GamdomUsername:   os.Getenv("GAMDOM_USERNAME"),
		GamdomPassword:   os.Getenv("GAMDOM_PASSWORD"),
		Headless:         GetEnvBool("HEADLESS", true),
		UITimeout:        GetEnvDuration("UI_TIMEOUT", 10*time.Second),
		StorageStatePath: GetEnv("STORAGE_STATE_PATH", "state.json"),
		Screenshots:      GetEnvBool("SCREENSHOTS", true),
		ScreenshotDir:    GetEnv("SCREENSHOT_DIR", "test-results/screenshots"),
		InstallBrowsers:  GetEnvBool("PLAYWRIGHT_INSTALL", false),

		HTTPTimeout:  GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		HTTPRetryMax: GetEnvInt("HTTP_RETRY_MAX", 0),
		RateRPS:      GetEnvInt("RATE_RPS", 10),
		RateBurst:    GetEnvInt("RATE_BURST", 20),

		SecretsSource: GetEnv("SECRETS_SOURCE", "env"),
		AWSRegion:     GetEnv("AWS_REGION", "us-east-2"),
		CacheTTL:      GetEnvDuration("CACHE_TTL", time.Hour),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisDB:        GetEnvInt("REDIS_DB", 0),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		NATSURL:        os.Getenv("NATS_URL"),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		ResultTTL:      GetEnvDuration("RESULT_TTL", 7*24*time.Hour),

		Port:             GetEnvInt("PORT", 9090),
		ScheduleSuites:   GetEnvList("SCHEDULE_SUITES", nil),
		ScheduleInterval: GetEnvDuration("SCHEDULE_INTERVAL", time.Hour),
	}, nil
}

// Validate checks that every key required by the given suites is set.
// With no suites it validates all of them.
func (c *Config) Validate(suites ...string) error {
	if len(suites) == 0 {
		suites = AllSuites
	}

	var missing []string
	require := func(key, val string) {
		if val == "" {
			missing = append(missing, key)
		}
	}

	for _, s := range suites {
		switch s {
		case SuiteWorkspace:
			require("AUTH_BASE_URL", c.AuthBaseURL)
			require("API_BASE_URL", c.APIBaseURL)
			require("WORKSPACE_EMAIL", c.WorkspaceEmail)
			require("WORKSPACE_PASSWORD", c.WorkspacePassword)
		case SuiteJira:
			require("JIRA_API_URL", c.JiraBaseURL)
			require("JIRA_API_PROJECT_KEY", c.JiraProjectKey)
			if c.JiraBasicAuthToken == "" {
				require("JIRA_API_USERNAME", c.JiraUsername)
				require("JIRA_API_TOKEN", c.JiraAPIToken)
			}
		case SuiteUI:
			require("BASE_URL", c.BaseURL)
			require("GAMDOM_USERNAME", c.GamdomUsername)
			require("GAMDOM_PASSWORD", c.GamdomPassword)
		default:
			return fmt.Errorf("unknown suite %q", s)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return &ConfigError{Missing: missing}
	}
	return nil
}

// JiraAuthToken returns the basic-auth token for the issue tracker. An explicit
// JIRA_BASIC_AUTH_TOKEN wins; otherwise it is derived from username and API token.
func (c *Config) JiraAuthToken() string {
	if c.JiraBasicAuthToken != "" {
		return c.JiraBasicAuthToken
	}
	if c.JiraUsername == "" || c.JiraAPIToken == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(c.JiraUsername + ":" + c.JiraAPIToken))
}
