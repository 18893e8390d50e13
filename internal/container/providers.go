package container

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/application/dispatcher"
	"github.com/garyjia/booking-voucher/internal/application/port"
	"github.com/garyjia/booking-voucher/internal/application/service"
	"github.com/garyjia/booking-voucher/internal/application/workflow"
	"github.com/garyjia/booking-voucher/internal/domain/policy"
	"github.com/garyjia/booking-voucher/internal/domain/token"
	"github.com/garyjia/booking-voucher/internal/infrastructure/document"
	infraLark "github.com/garyjia/booking-voucher/internal/infrastructure/external/lark"
	"github.com/garyjia/booking-voucher/internal/infrastructure/persistence/repository"
	"github.com/garyjia/booking-voucher/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/booking-voucher/internal/infrastructure/report"
	"github.com/garyjia/booking-voucher/internal/infrastructure/storage"
	"github.com/garyjia/booking-voucher/internal/infrastructure/worker"
	"github.com/garyjia/booking-voucher/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// StorageBundle holds file storage and the artifact writers.
type StorageBundle struct {
	FileStorage  *storage.LocalFileStorage
	Renderer     port.DocumentRenderer
	ReportWriter port.UsageReportWriter
}

// ServiceDeps groups what ProvideServices needs.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Engine     workflow.LifecycleEngine
	Publisher  port.EventPublisher
	Notifier   port.Notifier
	Storage    *StorageBundle
	Signer     *token.Signer
	Clock      port.Clock
	Metrics    port.MetricsRecorder
	VoucherCfg *VoucherConfig
	SweeperCfg *SweeperConfig
	Logger     *zap.Logger
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunEmbedded(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Voucher:  repository.NewVoucherRepository(sqlDB, logger),
		UsageLog: repository.NewUsageLogRepository(sqlDB, logger),
		Partner:  repository.NewPartnerRepository(sqlDB, logger),
	}, nil
}

// ProvideNotifier returns the Lark notifier when enabled and a log-only one otherwise.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.Notifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark notifications disabled, using log notifier")
		return infraLark.NewLogNotifier(logger), nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
	}, logger)

	return infraLark.NewNotifier(client, cfg.ReceiveIDType, logger), nil
}

// ProvideStorage creates file storage and the document and report writers.
func ProvideStorage(cfg *StorageConfig, loc *time.Location, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	fileStorage := storage.NewLocalFileStorage(cfg.BaseDir, logger)
	if err := fileStorage.EnsureDirs(); err != nil {
		return nil, err
	}

	return &StorageBundle{
		FileStorage:  fileStorage,
		Renderer:     document.NewPDFRenderer(loc, logger),
		ReportWriter: report.NewUsageReportWriter(loc, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg *DispatcherConfig, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dispatcher config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(NewLogAdapter(logger.Named("dispatcher"))),
		dispatcher.WithAsyncPublish(cfg.Async),
	), nil
}

// ProvideEngine creates the voucher lifecycle engine.
func ProvideEngine(repos *RepositoryBundle, txManager port.TransactionManager, publisher port.EventPublisher, clock port.Clock, metrics port.MetricsRecorder, logger *zap.Logger) (workflow.LifecycleEngine, error) {
	if repos == nil || txManager == nil {
		return nil, fmt.Errorf("repositories and transaction manager are required")
	}

	return workflow.NewEngine(repos.Voucher, txManager,
		workflow.WithPublisher(publisher),
		workflow.WithClock(clock),
		workflow.WithMetrics(metrics),
		workflow.WithLogger(NewLogAdapter(logger.Named("workflow"))),
	), nil
}

// ProvideSigner creates the verification token signer.
func ProvideSigner(cfg *VoucherConfig) (*token.Signer, error) {
	signer, err := token.NewSigner([]byte(cfg.SigningSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to create token signer: %w", err)
	}
	return signer, nil
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Storage == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}

	log := NewLogAdapter(deps.Logger.Named("service"))
	repos := deps.Repos

	validity := policy.DefaultValidityPolicy()
	validity.DefaultValidity = deps.VoucherCfg.DefaultValidity

	issuer := service.NewVoucherIssuer(repos.Voucher, repos.Partner, deps.TxManager, deps.Publisher, log,
		service.WithValidityPolicy(validity),
		service.WithNumberRetryLimit(deps.VoucherCfg.NumberRetryLimit),
		service.WithIssuerClock(deps.Clock),
		service.WithIssuerMetrics(deps.Metrics),
	)

	lookup := service.NewLookupService(repos.Voucher, repos.Partner, deps.Engine, deps.Signer,
		deps.Publisher, deps.Clock, deps.Metrics, log)

	redemption := service.NewRedemptionService(lookup, deps.Engine, deps.Signer, deps.Clock,
		deps.VoucherCfg.TokenTTL, log)

	documents := service.NewDocumentService(lookup, repos.Voucher, deps.Storage.Renderer,
		deps.Storage.FileStorage, deps.Publisher, deps.Clock, log)

	usage := service.NewUsageService(repos.Voucher, repos.UsageLog, deps.Storage.ReportWriter,
		deps.Storage.FileStorage, deps.Clock, log)

	sweep := service.NewSweepService(repos.Voucher, deps.Engine, deps.Clock, deps.Metrics,
		deps.SweeperCfg.BatchSize, log)

	return &ServiceBundle{
		Issuer:        issuer,
		Lookup:        lookup,
		Redemption:    redemption,
		Documents:     documents,
		Usage:         usage,
		Sweep:         sweep,
		UsageLogger:   service.NewUsageLogger(repos.UsageLog, deps.Metrics, log),
		Notifications: service.NewNotificationService(repos.Voucher, deps.Notifier, log),
	}, nil
}

// ProvideWorkers creates the worker manager with the expiration worker registered.
func ProvideWorkers(sweeper worker.Sweeper, cfg *SweeperConfig, logger *zap.Logger) (*worker.WorkerManager, *worker.ExpirationWorker, error) {
	if sweeper == nil {
		return nil, nil, fmt.Errorf("sweeper is required")
	}
	if cfg == nil {
		return nil, nil, fmt.Errorf("sweeper config is required")
	}

	expiration := worker.NewExpirationWorker(worker.ExpirationWorkerConfig{
		Interval:   cfg.Interval,
		Timeout:    cfg.Timeout,
		RunOnStart: cfg.RunOnStart,
	}, sweeper, logger.Named("expiration"))

	manager := worker.NewWorkerManager(logger)
	manager.Register(expiration)

	return manager, expiration, nil
}
