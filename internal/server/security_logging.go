package server

import (
	"net/http"
	"time"

	tgmodels "github.com/go-telegram/bot/models"

	"github.com/region23/tablebook/pkg/logger"
)

// SecurityLogger логирует события безопасности
type SecurityLogger struct {
	logger *logger.Logger
}

// NewSecurityLogger создает новый логгер безопасности
func NewSecurityLogger(log *logger.Logger) *SecurityLogger {
	return &SecurityLogger{logger: log.Component("security")}
}

// LogFailedAuth логирует неудачную попытку аутентификации
func (sl *SecurityLogger) LogFailedAuth(r *http.Request, reason string) {
	sl.logger.Warn("Authentication failed",
		logger.String("reason", reason),
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("user_agent", r.UserAgent()),
		logger.String("path", r.URL.Path),
		logger.String("method", r.Method))
}

// LogValidationError логирует ошибки валидации запроса
func (sl *SecurityLogger) LogValidationError(r *http.Request, reason string) {
	sl.logger.Debug("Validation error",
		logger.String("reason", reason),
		logger.String("remote_addr", r.RemoteAddr),
		logger.String("path", r.URL.Path))
}

// LogTelegramUpdate логирует обработку Telegram update
func (sl *SecurityLogger) LogTelegramUpdate(update *tgmodels.Update, processingTime time.Duration) {
	var chatID int64
	updateType := "other"

	switch {
	case update.Message != nil:
		updateType = "message"
		chatID = update.Message.Chat.ID
	case update.CallbackQuery != nil:
		updateType = "callback_query"
		chatID = update.CallbackQuery.From.ID
	}

	sl.logger.Info("Telegram update processed",
		logger.Int64("update_id", update.ID),
		logger.String("type", updateType),
		logger.Int64("chat_id", chatID),
		logger.Int64("processing_time_ms", processingTime.Milliseconds()))
}

// LogSystemEvent логирует системные события сервера
func (sl *SecurityLogger) LogSystemEvent(event, severity string) {
	fields := []logger.Field{
		logger.String("event", event),
		logger.String("severity", severity),
	}
	if severity == "error" {
		sl.logger.Error("System event", fields...)
		return
	}
	sl.logger.Info("System event", fields...)
}
