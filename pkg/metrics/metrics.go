package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики сервиса бронирования
var (
	// Метрики бронирований
	ReservationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablebook_reservations_created_total",
			Help: "Общее количество созданных бронирований",
		},
	)

	AllocationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablebook_allocation_failures_total",
			Help: "Отказы в распределении стола по причинам",
		},
		[]string{"reason"},
	)

	AllocationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablebook_allocation_retries_total",
			Help: "Повторы распределения после конфликта при вставке",
		},
	)

	ReservationStatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablebook_reservation_status_changes_total",
			Help: "Изменения статуса бронирований",
		},
		[]string{"status"},
	)

	// Метрики столов
	TableGroupOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablebook_table_group_operations_total",
			Help: "Операции объединения и разъединения столов",
		},
		[]string{"operation", "status"},
	)

	// Метрики напоминаний
	ReminderCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablebook_reminder_cycles_total",
			Help: "Количество циклов напоминаний",
		},
		[]string{"status"},
	)

	ReminderCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablebook_reminder_cycle_duration_seconds",
			Help:    "Длительность цикла напоминаний в секундах",
			Buckets: prometheus.DefBuckets,
		},
	)

	PendingReminders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablebook_pending_reminders",
			Help: "Бронирования, ожидающие напоминания в последнем цикле",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablebook_notifications_sent_total",
			Help: "Общее количество отправленных уведомлений",
		},
		[]string{"type", "status"},
	)

	// Метрики токенов привязки
	LinkTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablebook_link_tokens_total",
			Help: "Операции с токенами привязки Telegram",
		},
		[]string{"operation"},
	)

	// Метрики производительности
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablebook_memory_usage_bytes",
			Help: "Использование памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablebook_goroutines_count",
			Help: "Количество активных горутин",
		},
	)

	// Метрики ошибок
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablebook_errors_total",
			Help: "Общее количество ошибок",
		},
		[]string{"component", "error_type"},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablebook_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablebook_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordReservationCreated записывает метрику создания бронирования
func RecordReservationCreated() {
	ReservationsCreated.Inc()
}

// RecordAllocationFailure записывает причину отказа в распределении
func RecordAllocationFailure(reason string) {
	AllocationFailures.WithLabelValues(reason).Inc()
}

// RecordAllocationRetry записывает повтор после конфликта на вставке
func RecordAllocationRetry() {
	AllocationRetries.Inc()
}

// RecordStatusChange записывает смену статуса бронирования
func RecordStatusChange(status string) {
	ReservationStatusChanges.WithLabelValues(status).Inc()
}

// RecordTableGroupOperation записывает операцию join/unjoin
func RecordTableGroupOperation(operation, status string) {
	TableGroupOperations.WithLabelValues(operation, status).Inc()
}

// RecordReminderCycle записывает завершение цикла напоминаний
func RecordReminderCycle(status string, seconds float64) {
	ReminderCycles.WithLabelValues(status).Inc()
	ReminderCycleDuration.Observe(seconds)
}

// SetPendingReminders устанавливает количество ожидающих напоминаний
func SetPendingReminders(count float64) {
	PendingReminders.Set(count)
}

// RecordNotification записывает метрику отправки уведомления
func RecordNotification(notificationType, status string) {
	NotificationsSent.WithLabelValues(notificationType, status).Inc()
}

// RecordLinkToken записывает операцию с токеном привязки
func RecordLinkToken(operation string) {
	LinkTokens.WithLabelValues(operation).Inc()
}

// RecordError записывает метрику ошибки
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}
