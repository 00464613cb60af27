package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/region23/tablebook/internal/bot/i18n"
	"github.com/region23/tablebook/internal/bot/keyboard"
	botservice "github.com/region23/tablebook/internal/bot/service"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
)

// PendingHandler обрабатывает команду /pending
type PendingHandler struct {
	service *botservice.Service
	logger  *logger.Logger
}

// NewPendingHandler создает новый обработчик команды /pending
func NewPendingHandler(service *botservice.Service, log *logger.Logger) *PendingHandler {
	return &PendingHandler{service: service, logger: log}
}

// Handle отправляет по одному сообщению с кнопками на каждую ожидающую бронь
func (h *PendingHandler) Handle(ctx context.Context, update *models.Update) {
	chatID := update.Message.Chat.ID

	lang, ok := resolveLanguage(ctx, h.service, h.logger, chatID)
	if !ok {
		return
	}

	list, err := h.service.PendingForChat(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to list pending reservations", logger.Int64("chat_id", chatID), logger.Error(err))
		h.service.SendError(ctx, chatID, lang)
		return
	}

	if len(list) == 0 {
		if err := h.service.SendSimpleMessage(ctx, chatID, i18n.T(lang, i18n.KeyPendingEmpty)); err != nil {
			h.logger.Error("Failed to send message", logger.Int64("chat_id", chatID), logger.Error(err))
		}
		return
	}

	for _, r := range list {
		text := "<b>" + i18n.T(lang, i18n.KeyPendingTitle) + "</b>\n" + h.service.FormatReservation(lang, r)
		if err := h.service.SendMessage(ctx, chatID, text, keyboard.CreateReservationKeyboard(lang, r.ID)); err != nil {
			h.logger.Error("Failed to send pending reservation",
				logger.Int64("chat_id", chatID),
				logger.String("reservation_id", r.ID),
				logger.Error(err))
			return
		}
	}
}

// resolveLanguage возвращает язык администратора чата. Незнакомому чату
// отправляется отказ, и второй результат равен false.
func resolveLanguage(ctx context.Context, service *botservice.Service, log *logger.Logger, chatID int64) (string, bool) {
	lang, err := service.Language(ctx, chatID)
	if err == nil {
		return lang, true
	}

	if apperrors.Is(err, apperrors.ErrAdminNotFound) {
		if err := service.SendSimpleMessage(ctx, chatID, i18n.T(i18n.DefaultLanguage, i18n.KeyUnauthorized)); err != nil {
			log.Error("Failed to send message", logger.Int64("chat_id", chatID), logger.Error(err))
		}
		return "", false
	}

	log.Error("Failed to resolve admin", logger.Int64("chat_id", chatID), logger.Error(err))
	service.SendError(ctx, chatID, i18n.DefaultLanguage)
	return "", false
}
