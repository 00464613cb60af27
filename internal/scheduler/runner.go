package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/region23/tablebook/internal/tokens"
	"github.com/region23/tablebook/pkg/logger"
	"github.com/region23/tablebook/pkg/metrics"
)

// Runner запускает фоновые задачи: цикл напоминаний и очистку токенов
type Runner struct {
	sched    gocron.Scheduler
	reminder *Reminder
	tokens   tokens.Store
	logger   *logger.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Options задает периоды фоновых задач
type Options struct {
	ReminderInterval time.Duration
	SweepInterval    time.Duration
}

// NewRunner создает планировщик фоновых задач. tokenStore может быть nil.
func NewRunner(reminder *Reminder, tokenStore tokens.Store, opts Options, log *logger.Logger) (*Runner, error) {
	if opts.ReminderInterval <= 0 {
		return nil, fmt.Errorf("reminder interval must be positive")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		sched:    sched,
		reminder: reminder,
		tokens:   tokenStore,
		logger:   log.Component("scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}

	// Один цикл за раз: следующий запуск переносится, пока идет текущий
	_, err = sched.NewJob(
		gocron.DurationJob(opts.ReminderInterval),
		gocron.NewTask(r.runReminder),
		gocron.WithName("reminder-cycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return nil, fmt.Errorf("failed to register reminder job: %w", err)
	}

	if tokenStore != nil && opts.SweepInterval > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(opts.SweepInterval),
			gocron.NewTask(r.sweepTokens),
			gocron.WithName("token-sweep"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to register token sweep job: %w", err)
		}
	}

	return r, nil
}

// Start запускает задачи
func (r *Runner) Start() {
	r.sched.Start()
	r.logger.Info("Scheduler started", logger.Int("jobs", len(r.sched.Jobs())))
}

// Stop отменяет текущий цикл и ждет завершения запущенных задач
func (r *Runner) Stop() error {
	var err error
	r.stopOnce.Do(func() {
		r.cancel()
		if shutdownErr := r.sched.Shutdown(); shutdownErr != nil {
			err = fmt.Errorf("failed to shutdown scheduler: %w", shutdownErr)
		}
		r.logger.Info("Scheduler stopped")
	})
	return err
}

func (r *Runner) runReminder() {
	if r.ctx.Err() != nil {
		return
	}
	r.reminder.RunCycle(r.ctx)
}

func (r *Runner) sweepTokens() {
	if r.ctx.Err() != nil {
		return
	}
	removed, err := r.tokens.SweepExpired(r.ctx)
	if err != nil {
		metrics.RecordError("scheduler", "token_sweep")
		r.logger.Warn("Failed to sweep expired tokens", logger.Error(err))
		return
	}
	if removed > 0 {
		for i := 0; i < removed; i++ {
			metrics.RecordLinkToken("expired")
		}
		r.logger.Debug("Expired tokens swept", logger.Int("removed", removed))
	}
}
