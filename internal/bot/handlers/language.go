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

// LanguageHandler обрабатывает команду /lang
type LanguageHandler struct {
	service *botservice.Service
	logger  *logger.Logger
}

// NewLanguageHandler создает новый обработчик команды /lang
func NewLanguageHandler(service *botservice.Service, log *logger.Logger) *LanguageHandler {
	return &LanguageHandler{service: service, logger: log}
}

// Handle меняет язык либо показывает клавиатуру выбора языка
func (h *LanguageHandler) Handle(ctx context.Context, update *models.Update, arg string) {
	chatID := update.Message.Chat.ID

	lang, ok := resolveLanguage(ctx, h.service, h.logger, chatID)
	if !ok {
		return
	}

	if arg == "" {
		if err := h.service.SendMessage(ctx, chatID, i18n.T(lang, i18n.KeyLanguageUsage), keyboard.CreateLanguageKeyboard()); err != nil {
			h.logger.Error("Failed to send language keyboard", logger.Int64("chat_id", chatID), logger.Error(err))
		}
		return
	}

	if err := h.service.SetLanguage(ctx, chatID, arg); err != nil {
		if apperrors.Is(err, apperrors.ErrInvalidLanguage) {
			if err := h.service.SendMessage(ctx, chatID, i18n.T(lang, i18n.KeyLanguageUsage), keyboard.CreateLanguageKeyboard()); err != nil {
				h.logger.Error("Failed to send language keyboard", logger.Int64("chat_id", chatID), logger.Error(err))
			}
			return
		}
		h.logger.Error("Failed to set language", logger.Int64("chat_id", chatID), logger.Error(err))
		h.service.SendError(ctx, chatID, lang)
		return
	}

	if err := h.service.SendSimpleMessage(ctx, chatID, i18n.T(i18n.Normalize(arg), i18n.KeyLanguageSet)); err != nil {
		h.logger.Error("Failed to send message", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
