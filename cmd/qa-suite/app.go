package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/jira"
	"github.com/Checker-Finance/qa-suite/internal/publisher"
	"github.com/Checker-Finance/qa-suite/internal/rabbitmq"
	"github.com/Checker-Finance/qa-suite/internal/rate"
	internalsecrets "github.com/Checker-Finance/qa-suite/internal/secrets"
	"github.com/Checker-Finance/qa-suite/internal/store"
	"github.com/Checker-Finance/qa-suite/internal/suite"
	"github.com/Checker-Finance/qa-suite/internal/ui/browser"
	"github.com/Checker-Finance/qa-suite/internal/workspace"
	"github.com/Checker-Finance/qa-suite/pkg/config"
	"github.com/Checker-Finance/qa-suite/pkg/eventbus"
	"github.com/Checker-Finance/qa-suite/pkg/logger"
	"github.com/Checker-Finance/qa-suite/pkg/model"
	"github.com/Checker-Finance/qa-suite/pkg/secrets"
	"github.com/Checker-Finance/qa-suite/pkg/utils"
)

// app holds everything a run or serve invocation wires together.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	bus        *eventbus.Bus[model.RunEvent]
	runner     *suite.Runner
	rateMgr    *rate.Manager
	httpClient *http.Client

	store *store.HybridStore
	nats  *publisher.Publisher
	mq    *rabbitmq.Publisher

	browserOnce sync.Once
	browser     *browser.Session
	browserErr  error

	suites  []string
	closers []func()
}

// suiteSelector picks the suites an invocation needs once configuration is known.
type suiteSelector func(cfg *config.Config) ([]string, error)

// newApp loads configuration, resolves credentials for the selected suites and
// connects the configured result sinks.
func newApp(ctx context.Context, selectSuites suiteSelector) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	suites, err := selectSuites(cfg)
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	log := logger.L()

	if cfg.SecretsSource == "aws" {
		provider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		resolver := internalsecrets.NewCredentialResolver(log, cfg.Env, cfg.ServiceName, provider,
			secrets.NewCache[map[string]string](cfg.CacheTTL))
		if err := resolver.Apply(ctx, cfg, suites...); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(suites...); err != nil {
		return nil, err
	}

	bus := eventbus.New[model.RunEvent]()
	a := &app{
		cfg:    cfg,
		logger: log,
		bus:    bus,
		runner: suite.NewRunner(log, bus),
		rateMgr: rate.NewManager(rate.Config{
			RequestsPerSecond: cfg.RateRPS,
			Burst:             cfg.RateBurst,
		}),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		suites:     suites,
	}

	if err := a.connectSinks(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// connectSinks wires each result sink whose URL is configured.
func (a *app) connectSinks(ctx context.Context) error {
	var reporters []suite.Reporter

	if a.cfg.RedisAddr != "" {
		log := a.logger.With(zap.String("redis", a.cfg.RedisAddr))
		if a.cfg.DatabaseURL != "" {
			log = log.With(zap.String("dsn", utils.MaskDSN(a.cfg.DatabaseURL)))
		}
		st, err := store.NewHybrid(a.cfg.RedisAddr, a.cfg.RedisDB, a.cfg.DatabaseURL, store.PGPoolConfig{
			MaxConns:        4,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
		}, a.cfg.ResultTTL, a.logger)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			_ = st.Close()
			return err
		}
		a.store = st
		a.closers = append(a.closers, func() { _ = st.Close() })
		reporters = append(reporters, st)
		log.Info("sink.store_enabled")
	}

	if a.cfg.NATSURL != "" {
		pub, err := publisher.Connect(a.cfg.NATSURL, publisher.SubjectRunCompleted, a.cfg.ServiceName, a.logger)
		if err != nil {
			return err
		}
		a.nats = pub
		a.closers = append(a.closers, pub.Close)
		reporters = append(reporters, pub)
		a.logger.Info("sink.nats_enabled", zap.String("url", utils.MaskDSN(a.cfg.NATSURL)))
	}

	if a.cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewPublisher(a.cfg.RabbitMQURL, "", a.logger)
		if err != nil {
			return err
		}
		a.mq = mq
		a.closers = append(a.closers, mq.SubscribeSteps(a.bus), func() { _ = mq.Close() })
		reporters = append(reporters, mq)
		a.logger.Info("sink.rabbitmq_enabled", zap.String("url", utils.MaskDSN(a.cfg.RabbitMQURL)))
	}

	if len(reporters) > 0 {
		a.closers = append(a.closers, suite.AttachReporters(a.bus, a.logger, 10*time.Second, reporters...))
	}
	a.logger.Info("sink.wired",
		zap.Int("reporters", len(reporters)),
		zap.Int("subscribers", a.bus.SubscriberCount()))
	return nil
}

// buildSuite constructs a fresh suite, so every run gets its own session state.
func (a *app) buildSuite(name string) (*suite.Suite, error) {
	switch name {
	case config.SuiteWorkspace:
		client, err := workspace.New(
			workspace.Credentials{Identifier: a.cfg.WorkspaceEmail, Secret: a.cfg.WorkspacePassword},
			workspace.Endpoints{AuthBaseURL: a.cfg.AuthBaseURL, APIBaseURL: a.cfg.APIBaseURL},
			workspace.WithLogger(a.logger),
			workspace.WithHTTPClient(a.httpClient),
			workspace.WithRateManager(a.rateMgr),
		)
		if err != nil {
			return nil, err
		}
		return suite.WorkspaceSuite(client, a.logger), nil

	case config.SuiteJira:
		client, err := jira.New(a.cfg.JiraBaseURL, a.cfg.JiraAuthToken(),
			jira.WithLogger(a.logger),
			jira.WithHTTPClient(a.httpClient),
			jira.WithRateManager(a.rateMgr),
			jira.WithRetryMax(a.cfg.HTTPRetryMax),
			jira.WithUserAgent(a.cfg.ServiceName+"/1.0"),
		)
		if err != nil {
			return nil, err
		}
		return suite.JiraSuite(client, suite.JiraOptions{
			ProjectKey:    a.cfg.JiraProjectKey,
			ExpectedEmail: a.cfg.JiraExpectedEmail,
			BulkKeys:      a.cfg.JiraBulkKeys,
		}, a.logger), nil

	case config.SuiteUI:
		sess, err := a.browserSession()
		if err != nil {
			return nil, err
		}
		return suite.UISuite(sess, suite.UIOptions{
			Username: a.cfg.GamdomUsername,
			Password: a.cfg.GamdomPassword,
			Timeout:  a.cfg.UITimeout,
		}, a.logger), nil
	}
	return nil, fmt.Errorf("unknown suite %q", name)
}

// browserSession launches Chromium on first use and reuses it afterwards.
func (a *app) browserSession() (*browser.Session, error) {
	a.browserOnce.Do(func() {
		a.browser, a.browserErr = browser.Launch(browser.Config{
			BaseURL:          a.cfg.BaseURL,
			Headless:         a.cfg.Headless,
			Timeout:          a.cfg.UITimeout,
			StorageStatePath: a.cfg.StorageStatePath,
			Username:         a.cfg.GamdomUsername,
			Password:         a.cfg.GamdomPassword,
			Screenshots:      a.cfg.Screenshots,
			ScreenshotDir:    a.cfg.ScreenshotDir,
			Install:          a.cfg.InstallBrowsers,
		}, a.logger)
		if a.browserErr == nil {
			a.closers = append(a.closers, func() {
				if err := a.browser.Close(); err != nil {
					a.logger.Warn("browser.close_failed", zap.Error(err))
				}
			})
		}
	})
	return a.browser, a.browserErr
}

// Close releases sinks and the browser in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	logger.Sync()
}
