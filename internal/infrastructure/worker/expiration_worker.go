package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/application/service"
)

// ExpirationWorkerConfig holds configuration for the expiration worker
type ExpirationWorkerConfig struct {
	Interval   time.Duration
	Timeout    time.Duration
	RunOnStart bool
}

// DefaultExpirationWorkerConfig sweeps once a day
func DefaultExpirationWorkerConfig() ExpirationWorkerConfig {
	return ExpirationWorkerConfig{
		Interval:   24 * time.Hour,
		Timeout:    10 * time.Minute,
		RunOnStart: true,
	}
}

// Sweeper runs one expiration pass
type Sweeper interface {
	Sweep(ctx context.Context) (*service.SweepResult, error)
}

// ExpirationWorker periodically expires lapsed vouchers.
// Runs never overlap; a manual run waits for a scheduled one to finish.
type ExpirationWorker struct {
	config  ExpirationWorkerConfig
	sweeper Sweeper
	logger  *zap.Logger

	runMu sync.Mutex

	mu         sync.RWMutex
	cancel     context.CancelFunc
	done       chan struct{}
	isRunning  bool
	lastRun    time.Time
	runs       int
	lastResult *service.SweepResult
	lastError  error
}

// NewExpirationWorker creates a new expiration worker
func NewExpirationWorker(config ExpirationWorkerConfig, sweeper Sweeper, logger *zap.Logger) *ExpirationWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultExpirationWorkerConfig().Interval
	}
	return &ExpirationWorker{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}
}

// Start begins the polling loop
func (w *ExpirationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("expiration worker already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	done := w.done
	w.mu.Unlock()

	w.logger.Info("ExpirationWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Bool("run_on_start", w.config.RunOnStart))

	go w.loop(loopCtx, done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to return
func (w *ExpirationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("ExpirationWorker stopped", zap.Int("runs", w.Status().Runs))
	return nil
}

// Name implements Worker
func (w *ExpirationWorker) Name() string {
	return "ExpirationWorker"
}

func (w *ExpirationWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if w.config.RunOnStart {
		w.runLogged(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runLogged(ctx)
		}
	}
}

func (w *ExpirationWorker) runLogged(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Expiration sweep failed", zap.Error(err))
	}
}

// RunOnce performs a sweep now under the configured timeout
func (w *ExpirationWorker) RunOnce(ctx context.Context) (*service.SweepResult, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	runCtx := ctx
	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	result, err := w.sweeper.Sweep(runCtx)

	w.mu.Lock()
	w.lastRun = time.Now()
	w.runs++
	w.lastResult = result
	w.lastError = err
	w.mu.Unlock()

	if result != nil {
		w.logger.Info("Expiration sweep completed",
			zap.Int("expired", result.ExpiredCount),
			zap.Int("failed", len(result.Errors)),
			zap.Duration("duration", result.Duration))
	}
	return result, err
}

// LastResult returns the most recent sweep result, if any
func (w *ExpirationWorker) LastResult() *service.SweepResult {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastResult
}

// Status implements StatusReporter
func (w *ExpirationWorker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Status{
		Name:    w.Name(),
		Running: w.isRunning,
		LastRun: w.lastRun,
		Runs:    w.runs,
	}
	if w.lastError != nil {
		s.LastError = w.lastError.Error()
	}
	return s
}
