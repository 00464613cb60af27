package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/tablebook/internal/bot/service"
	"github.com/region23/tablebook/pkg/logger"
)

// DefaultHandler обрабатывает /help и все нераспознанные сообщения
type DefaultHandler struct {
	service *botservice.Service
	logger  *logger.Logger
}

// NewDefaultHandler создает новый обработчик по умолчанию
func NewDefaultHandler(service *botservice.Service, log *logger.Logger) *DefaultHandler {
	return &DefaultHandler{service: service, logger: log}
}

// Handle отправляет меню команд администратору или отказ остальным
func (h *DefaultHandler) Handle(ctx context.Context, update *models.Update) {
	chatID := update.Message.Chat.ID

	lang, ok := resolveLanguage(ctx, h.service, h.logger, chatID)
	if !ok {
		return
	}

	if err := h.service.SendSimpleMessage(ctx, chatID, botservice.HelpText(lang)); err != nil {
		h.logger.Error("Failed to send help", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
