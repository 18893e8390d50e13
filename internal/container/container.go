package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/application/dispatcher"
	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/application/service"
	"github.com/garyjia/booking-voucher/internal/application/workflow"
	"github.com/garyjia/booking-voucher/internal/domain/token"
	"github.com/garyjia/booking-voucher/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/booking-voucher/internal/infrastructure/worker"
	"github.com/garyjia/booking-voucher/internal/metrics"
	"github.com/garyjia/booking-voucher/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config  *Config
	logger  *zap.Logger
	clock   port.Clock
	metrics *metrics.Recorder

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External and storage
	notifier port.Notifier
	storage  *StorageBundle

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.LifecycleEngine
	signer     *token.Signer
	services   *ServiceBundle

	// Workers
	workers    *worker.WorkerManager
	expiration *worker.ExpirationWorker

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Voucher  port.VoucherRepository
	UsageLog port.UsageLogRepository
	Partner  port.PartnerRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Issuer        service.VoucherIssuer
	Lookup        service.LookupService
	Redemption    service.RedemptionService
	Documents     service.DocumentService
	Usage         service.UsageService
	Sweep         service.SweepService
	UsageLogger   *service.UsageLogger
	Notifications *service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
	Workers    []worker.Status            `json:"workers,omitempty"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option customises a container before Start
type Option func(*Container)

// WithClock overrides the wall clock used by every service
func WithClock(clock port.Clock) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

// WithMetrics supplies the metrics recorder, for example one bound to a shared registry
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(c *Container) {
		c.metrics = recorder
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
		clock:  port.SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewRecorder(nil)
	}

	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database and repositories
// 2. Notifier and storage
// 3. Dispatcher, token signer and lifecycle engine
// 4. Application services and event subscribers
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return c.abort(fmt.Errorf("failed to initialize database: %w", err))
	}
	c.logger.Info("Database initialized")

	if err := c.initExternal(); err != nil {
		return c.abort(fmt.Errorf("failed to initialize notifier and storage: %w", err))
	}
	c.logger.Info("Notifier and storage initialized")

	if err := c.initDispatcherAndEngine(); err != nil {
		return c.abort(fmt.Errorf("failed to initialize dispatcher and engine: %w", err))
	}
	c.logger.Info("Dispatcher and lifecycle engine initialized")

	if err := c.initServices(); err != nil {
		return c.abort(fmt.Errorf("failed to initialize services: %w", err))
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkers(); err != nil {
		return c.abort(fmt.Errorf("failed to initialize workers: %w", err))
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// abort releases whatever Start already acquired
func (c *Container) abort(err error) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.workers != nil {
		_ = c.workers.StopAll()
		c.workers = nil
	}
	if c.dispatcher != nil {
		_ = c.dispatcher.Close()
		c.dispatcher = nil
	}
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
	return err
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Step 2: Drain the dispatcher so pending usage entries are written
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	mark := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.db == nil:
		mark("database", false, "not initialized")
	default:
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.db.PingContext(pingCtx)
		cancel()
		if err != nil {
			mark("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			mark("database", true, "")
		}
	}

	if c.workers == nil {
		mark("workers", false, "not initialized")
	} else {
		mark("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()))
		status.Workers = c.workers.Statuses()
	}

	if c.dispatcher == nil {
		mark("dispatcher", false, "not initialized")
	} else {
		mark("dispatcher", true, "")
	}

	return status
}

// HealthCheck reports the first unhealthy component, if any
func (c *Container) HealthCheck(ctx context.Context) error {
	status := c.Health(ctx)
	if status.Overall {
		return nil
	}
	for _, name := range []string{"database", "dispatcher", "workers"} {
		if h, ok := status.Components[name]; ok && !h.Healthy {
			return fmt.Errorf("%s unhealthy: %s", name, h.Message)
		}
	}
	return fmt.Errorf("container unhealthy")
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db.DB, c.logger)
	if err != nil {
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) initExternal() error {
	notifier, err := ProvideNotifier(&c.config.Lark, c.logger.Named("notifier"))
	if err != nil {
		return err
	}
	c.notifier = notifier

	loc, err := time.LoadLocation(c.config.Voucher.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	storageBundle, err := ProvideStorage(&c.config.Storage, loc, c.logger)
	if err != nil {
		return err
	}
	c.storage = storageBundle
	return nil
}

func (c *Container) initDispatcherAndEngine() error {
	disp, err := ProvideDispatcher(&c.config.Dispatcher, c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	signer, err := ProvideSigner(&c.config.Voucher)
	if err != nil {
		return err
	}
	c.signer = signer

	engine, err := ProvideEngine(c.repositories, c.txManager, c.dispatcher, c.clock, c.metrics, c.logger)
	if err != nil {
		return err
	}
	c.engine = engine

	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Engine:     c.engine,
		Publisher:  c.dispatcher,
		Notifier:   c.notifier,
		Storage:    c.storage,
		Signer:     c.signer,
		Clock:      c.clock,
		Metrics:    c.metrics,
		VoucherCfg: &c.config.Voucher,
		SweeperCfg: &c.config.Sweeper,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services

	service.RegisterSubscribers(c.dispatcher, services.UsageLogger, services.Notifications)
	return nil
}

func (c *Container) initWorkers() error {
	workers, expiration, err := ProvideWorkers(c.services.Sweep, &c.config.Sweeper, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers
	c.expiration = expiration

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the voucher lifecycle engine.
func (c *Container) Engine() workflow.LifecycleEngine {
	return c.engine
}

// ExpirationWorker returns the sweep worker, also used for manual sweeps.
func (c *Container) ExpirationWorker() *worker.ExpirationWorker {
	return c.expiration
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Metrics returns the prometheus recorder.
func (c *Container) Metrics() *metrics.Recorder {
	return c.metrics
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// LogAdapter adapts zap.Logger to the key-value Logger interfaces used by
// services, the dispatcher, the engine and the HTTP layer.
type LogAdapter struct {
	logger *zap.Logger
}

// NewLogAdapter wraps logger
func NewLogAdapter(logger *zap.Logger) *LogAdapter {
	return &LogAdapter{logger: logger.WithOptions(zap.AddCallerSkip(1))}
}

func (a *LogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *LogAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
