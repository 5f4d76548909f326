package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jobqueue "github.com/goliatone/go-job/queue/adapters/postgres"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-paypal-proxy/auth"
	"github.com/goliatone/go-paypal-proxy/core"
	"github.com/goliatone/go-paypal-proxy/jobs"
	proxymigrations "github.com/goliatone/go-paypal-proxy/migrations"
	"github.com/goliatone/go-paypal-proxy/notify"
	"github.com/goliatone/go-paypal-proxy/paypal"
	sqlstore "github.com/goliatone/go-paypal-proxy/store/sql"
	"github.com/goliatone/go-paypal-proxy/transport/rest"
	"github.com/goliatone/go-paypal-proxy/webhooks"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("proxy-server: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, logger := glog.Resolve("paypal-proxy", nil, nil)
	logger = glog.Ensure(logger)

	loader := newEnvConfigLoader()
	configProvider := core.NewCfgxConfigProvider(loader)
	cfg, err := configProvider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, sqlDB, driver, err := openPersistence(ctx)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = 5 * time.Minute
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return fmt.Errorf("build site cache: %w", err)
	}
	sites, err := sqlstore.NewCachedSiteStore(factory.SiteStore(), cacheService)
	if err != nil {
		return fmt.Errorf("build cached site store: %w", err)
	}

	gateway := paypal.NewClient(paypal.ClientConfig{
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		Environment:  cfg.PayPal.Environment,
	})

	verifier := auth.NewVerifier(auth.VerifierConfig{
		Sites:        sites,
		ReplayWindow: cfg.Signature.ReplayWindow,
	})

	notifier := notify.NewCallbackNotifier(notify.CallbackNotifierConfig{
		CallbackPath: cfg.Notify.CallbackPath,
		Timeout:      cfg.Notify.Timeout,
		Logger:       logger,
	})

	service, err := core.NewService(core.Config{},
		core.WithLogger(logger),
		core.WithConfigProvider(configProvider),
		core.WithSiteStore(sites),
		core.WithTransactionLedger(factory.LedgerStore()),
		core.WithPendingOrderStore(factory.PendingOrderStore()),
		core.WithGateway(gateway),
		core.WithNotifier(notifier),
		core.WithSignatureVerifier(verifier),
	)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	reconciler, err := webhooks.NewReconciler(webhooks.ReconcilerConfig{
		Ledger:   factory.LedgerStore(),
		Sites:    sites,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("build reconciler: %w", err)
	}

	var webhookVerifier *webhooks.HMACVerifier
	if secret := strings.TrimSpace(cfg.PayPal.WebhookSecret); secret != "" {
		webhookVerifier, err = webhooks.NewHMACVerifier(secret)
		if err != nil {
			return fmt.Errorf("build webhook verifier: %w", err)
		}
	} else {
		logger.Info("webhook secret is not configured, inbound webhooks are unauthenticated")
	}

	router, err := rest.NewRouter(rest.RouterConfig{
		Service:         service,
		Reconciler:      reconciler,
		WebhookVerifier: webhookVerifier,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	sweeper, err := jobs.NewSweeper(jobs.SweeperConfig{
		Store:  factory.PendingOrderStore(),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("build sweeper: %w", err)
	}
	if err := startSweeping(ctx, sweeper, sqlDB, driver, logger); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("proxy server listening", "addr", cfg.HTTP.Addr, "paypal_env", cfg.PayPal.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type persistenceConfig struct {
	driver string
	server string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.server }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "go-paypal-proxy" }

// startSweeping runs pending order expiry. PROXY_SWEEP_MODE=queue routes
// sweep messages through the durable go-job queue so several proxy
// instances share one schedule; the default is an in-process ticker.
func startSweeping(ctx context.Context, sweeper *jobs.Sweeper, sqlDB *sql.DB, driver string, logger glog.Logger) error {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("PROXY_SWEEP_MODE")), "queue") {
		go func() {
			if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("pending order sweeper stopped", "error", err)
			}
		}()
		return nil
	}

	opts := []jobqueue.Option{}
	if driver == "sqlite3" {
		opts = append(opts,
			jobqueue.WithDialect(jobqueue.DialectSQLite),
			jobqueue.WithUseSkipLocked(false),
		)
	}
	storage := jobqueue.NewStorage(sqlDB, opts...)
	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate sweep queue: %w", err)
	}
	adapter := jobqueue.NewAdapter(storage)

	scheduler, err := jobs.NewScheduler(sweeper, adapter, logger)
	if err != nil {
		return fmt.Errorf("build sweep scheduler: %w", err)
	}
	worker, err := jobs.NewWorker(sweeper, adapter, logger)
	if err != nil {
		return fmt.Errorf("build sweep worker: %w", err)
	}
	go func() {
		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweep scheduler stopped", "error", err)
		}
	}()
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweep worker stopped", "error", err)
		}
	}()
	return nil
}

// openPersistence opens the database named by PROXY_DB_DRIVER/PROXY_DB_DSN,
// registers the dialect-matching embedded migrations and runs them. The
// driver name is returned for dialect-sensitive collaborators.
func openPersistence(ctx context.Context) (*persistence.Client, *sql.DB, string, error) {
	driver := strings.TrimSpace(os.Getenv("PROXY_DB_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := strings.TrimSpace(os.Getenv("PROXY_DB_DSN"))
	if dsn == "" {
		dsn = "file:paypal-proxy.db?cache=shared&_foreign_keys=on"
	}

	var dialect schema.Dialect
	var migrationDialect string
	switch driver {
	case "postgres":
		dialect = pgdialect.New()
		migrationDialect = proxymigrations.DialectPostgres
	case "sqlite3":
		dialect = sqlitedialect.New()
		migrationDialect = proxymigrations.DialectSQLite
	default:
		return nil, nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, "", fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{
		driver: driver,
		server: dsn,
		debug:  os.Getenv("PROXY_DB_DEBUG") == "true",
	}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, "", fmt.Errorf("persistence client: %w", err)
	}

	_, err = proxymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrationDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, proxymigrations.WithValidationTargets(migrationDialect))
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, "", fmt.Errorf("register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, "", fmt.Errorf("run migrations: %w", err)
	}
	return client, sqlDB, driver, nil
}

type envConfigLoader struct{}

func newEnvConfigLoader() envConfigLoader { return envConfigLoader{} }

// LoadRaw layers PROXY_* environment variables over an optional JSON file
// named by PROXY_CONFIG_FILE. Env always wins.
func (envConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	raw := map[string]any{}
	if path := strings.TrimSpace(os.Getenv("PROXY_CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	setString(raw, os.Getenv("PROXY_SERVICE_NAME"), "service_name")
	setString(raw, os.Getenv("PROXY_HTTP_ADDR"), "http", "addr")
	setString(raw, os.Getenv("PROXY_PAYPAL_CLIENT_ID"), "paypal", "client_id")
	setString(raw, os.Getenv("PROXY_PAYPAL_CLIENT_SECRET"), "paypal", "client_secret")
	setString(raw, os.Getenv("PROXY_PAYPAL_ENVIRONMENT"), "paypal", "environment")
	setString(raw, os.Getenv("PROXY_PAYPAL_WEBHOOK_SECRET"), "paypal", "webhook_secret")
	setString(raw, os.Getenv("PROXY_NOTIFY_CALLBACK_PATH"), "notify", "callback_path")

	if err := setDuration(raw, os.Getenv("PROXY_SIGNATURE_REPLAY_WINDOW"), "signature", "replay_window"); err != nil {
		return nil, err
	}
	if err := setDuration(raw, os.Getenv("PROXY_NOTIFY_TIMEOUT"), "notify", "timeout"); err != nil {
		return nil, err
	}
	return raw, nil
}

func setString(raw map[string]any, value string, path ...string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	setValue(raw, value, path...)
}

func setDuration(raw map[string]any, value string, path ...string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse duration %q for %s: %w", value, strings.Join(path, "."), err)
	}
	setValue(raw, parsed, path...)
	return nil
}

func setValue(raw map[string]any, value any, path ...string) {
	node := raw
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[key] = child
		}
		node = child
	}
	node[path[len(path)-1]] = value
}
