package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/pkg/config"
	pkgsecrets "github.com/Checker-Finance/qa-suite/pkg/secrets"
)

// CredentialResolver overlays suite credentials stored in a secrets backend onto a Config.
//
// Secret naming convention: {env}/{service}/{suite}, e.g. "uat/qa-suite/jira". Each secret is
// a flat map keyed by the same names the env file uses (JIRA_API_TOKEN, GAMDOM_PASSWORD, ...).
type CredentialResolver struct {
	logger   *zap.Logger
	env      string
	service  string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[map[string]string]
}

// NewCredentialResolver constructs a resolver backed by provider with a local cache.
func NewCredentialResolver(
	logger *zap.Logger,
	env, service string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[map[string]string],
) *CredentialResolver {
	return &CredentialResolver{
		logger:   logger,
		env:      env,
		service:  service,
		provider: provider,
		cache:    cache,
	}
}

func (r *CredentialResolver) secretName(suite string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, r.service, suite))
}

// Resolve fetches the raw secret map for a suite, using the cache when possible.
func (r *CredentialResolver) Resolve(ctx context.Context, suite string) (map[string]string, error) {
	name := r.secretName(suite)
	if v, ok := r.cache.Get(name); ok {
		return v, nil
	}

	secret, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("resolve credentials for suite %q: %w", suite, err)
	}

	r.cache.Put(name, secret)
	r.logger.Info("secrets.resolved", zap.String("name", name), zap.Int("keys", len(secret)))
	return secret, nil
}

// Apply resolves each suite's secret and writes recognised keys into cfg.
// Unknown keys are ignored; empty values never overwrite configured ones.
func (r *CredentialResolver) Apply(ctx context.Context, cfg *config.Config, suites ...string) error {
	fields := credentialFields(cfg)
	for _, suite := range suites {
		secret, err := r.Resolve(ctx, suite)
		if err != nil {
			return err
		}
		for key, val := range secret {
			if dst, ok := fields[key]; ok && val != "" {
				*dst = val
			}
		}
	}
	return nil
}

func credentialFields(cfg *config.Config) map[string]*string {
	return map[string]*string{
		"AUTH_BASE_URL":         &cfg.AuthBaseURL,
		"API_BASE_URL":          &cfg.APIBaseURL,
		"WORKSPACE_EMAIL":       &cfg.WorkspaceEmail,
		"WORKSPACE_PASSWORD":    &cfg.WorkspacePassword,
		"JIRA_API_URL":          &cfg.JiraBaseURL,
		"JIRA_BASIC_AUTH_TOKEN": &cfg.JiraBasicAuthToken,
		"JIRA_API_USERNAME":     &cfg.JiraUsername,
		"JIRA_API_TOKEN":        &cfg.JiraAPIToken,
		"JIRA_API_PROJECT_KEY":  &cfg.JiraProjectKey,
		"BASE_URL":              &cfg.BaseURL,
		"GAMDOM_USERNAME":       &cfg.GamdomUsername,
		"GAMDOM_PASSWORD":       &cfg.GamdomPassword,
	}
}
