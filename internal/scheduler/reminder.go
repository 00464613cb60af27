package scheduler

import (
	"context"
	"time"

	"github.com/region23/tablebook/internal/storage/models"
	"github.com/region23/tablebook/pkg/logger"
	"github.com/region23/tablebook/pkg/metrics"
)

// CycleResult содержит итоги одного цикла напоминаний
type CycleResult struct {
	Pending  int
	Marked   int
	Skipped  int
	Sent     int
	Failed   int
	Canceled bool
}

// Reminder рассылает администраторам уведомления о новых бронях
type Reminder struct {
	repo      Repository
	notifier  Notifier
	ioTimeout time.Duration
	logger    *logger.Logger
}

// NewReminder создает обработчик цикла напоминаний
func NewReminder(repo Repository, notifier Notifier, ioTimeout time.Duration, log *logger.Logger) *Reminder {
	return &Reminder{
		repo:      repo,
		notifier:  notifier,
		ioTimeout: ioTimeout,
		logger:    log.Component("reminder"),
	}
}

// RunCycle обрабатывает все ожидающие брони без отправленного напоминания.
// Ошибки не прерывают цикл: они логируются, и обработка продолжается.
func (r *Reminder) RunCycle(ctx context.Context) CycleResult {
	started := time.Now()
	var result CycleResult

	notSent := false
	var pending []*models.Reservation
	err := r.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		pending, err = r.repo.ListReservations(ctx, models.ReservationFilter{
			Status:       models.ReservationPending,
			ReminderSent: &notSent,
		})
		return err
	})
	if err != nil {
		metrics.RecordError("reminder", "list_reservations")
		metrics.RecordReminderCycle("error", time.Since(started).Seconds())
		r.logger.Error("Failed to list pending reservations", logger.Error(err))
		return result
	}

	result.Pending = len(pending)
	metrics.SetPendingReminders(float64(len(pending)))

	for _, res := range pending {
		if ctx.Err() != nil {
			result.Canceled = true
			r.logger.Info("Reminder cycle interrupted",
				logger.Int("remaining", result.Pending-result.Marked-result.Skipped))
			break
		}

		if r.process(ctx, res, &result) {
			result.Marked++
		} else {
			result.Skipped++
		}
	}

	status := "success"
	if result.Canceled {
		status = "canceled"
	}
	metrics.RecordReminderCycle(status, time.Since(started).Seconds())

	if result.Pending > 0 {
		r.logger.Info("Reminder cycle finished",
			logger.Int("pending", result.Pending),
			logger.Int("marked", result.Marked),
			logger.Int("skipped", result.Skipped),
			logger.Int("sent", result.Sent),
			logger.Int("failed", result.Failed),
			logger.Duration("duration", time.Since(started)))
	}
	return result
}

// process уведомляет администраторов по одной брони и помечает ее.
// Возвращает false, если бронь пропущена и будет рассмотрена снова.
// Начатая бронь доводится до конца даже при отмене цикла: каждый вызов
// ограничен ioTimeout, а отмена проверяется только между бронями.
func (r *Reminder) process(ctx context.Context, res *models.Reservation, result *CycleResult) bool {
	ctx = context.WithoutCancel(ctx)
	log := r.logger.WithFields(logger.String("reservation_id", res.ID))

	tableID := res.AssignedTable()
	if tableID == "" {
		log.Debug("Reservation has no table, skipping")
		return false
	}

	var table *models.Table
	err := r.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		table, err = r.repo.GetTable(ctx, tableID)
		return err
	})
	if err != nil {
		log.Warn("Failed to resolve reservation table, skipping",
			logger.String("table_id", tableID),
			logger.Error(err))
		return false
	}

	var admins []*models.Admin
	err = r.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		admins, err = r.repo.ListAdmins(ctx, table.RestaurantID)
		return err
	})
	if err != nil {
		metrics.RecordError("reminder", "list_admins")
		log.Error("Failed to list restaurant admins", logger.Error(err))
		return false
	}

	reachable := 0
	for _, admin := range admins {
		if !admin.HasTelegram() {
			continue
		}
		reachable++

		err := r.withTimeout(ctx, func(ctx context.Context) error {
			return r.notifier.NotifyReservation(ctx, admin, res)
		})
		if err != nil {
			result.Failed++
			metrics.RecordNotification("reservation", "failed")
			log.Warn("Failed to notify admin",
				logger.String("admin_id", admin.ID),
				logger.Error(err))
			continue
		}
		result.Sent++
		metrics.RecordNotification("reservation", "sent")
	}

	if reachable == 0 {
		log.Debug("No admin with linked Telegram, keeping reservation for next cycle",
			logger.String("restaurant_id", table.RestaurantID))
		return false
	}

	err = r.withTimeout(ctx, func(ctx context.Context) error {
		return r.repo.MarkReminderSent(ctx, res.ID)
	})
	if err != nil {
		metrics.RecordError("reminder", "mark_sent")
		log.Error("Failed to mark reminder as sent", logger.Error(err))
		return false
	}
	return true
}

func (r *Reminder) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.ioTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.ioTimeout)
	defer cancel()
	return fn(ctx)
}
