package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/region23/tablebook/internal/bot/i18n"
	botservice "github.com/region23/tablebook/internal/bot/service"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
)

// StartHandler обрабатывает команду /start, в том числе с токеном привязки
type StartHandler struct {
	service *botservice.Service
	logger  *logger.Logger
}

// NewStartHandler создает новый обработчик команды /start
func NewStartHandler(service *botservice.Service, log *logger.Logger) *StartHandler {
	return &StartHandler{service: service, logger: log}
}

// Handle обрабатывает команду /start. payload содержит токен из deep link.
func (h *StartHandler) Handle(ctx context.Context, update *models.Update, payload string) {
	msg := update.Message
	chatID := msg.Chat.ID

	if payload != "" {
		h.link(ctx, msg, payload)
		return
	}

	admin, err := h.service.AdminByChat(ctx, chatID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrAdminNotFound) {
			h.logger.Error("Failed to resolve admin", logger.Int64("chat_id", chatID), logger.Error(err))
		}
		h.sendUnauthorized(ctx, chatID)
		return
	}

	lang := i18n.Normalize(admin.Language)
	h.send(ctx, chatID, i18n.T(lang, i18n.KeyWelcome, admin.Name)+"\n\n"+botservice.HelpText(lang))
}

func (h *StartHandler) link(ctx context.Context, msg *models.Message, token string) {
	chatID := msg.Chat.ID

	admin, err := h.service.LinkAdmin(ctx, token, chatID, username(msg))
	switch {
	case err == nil:
		lang := i18n.Normalize(admin.Language)
		h.send(ctx, chatID, i18n.T(lang, i18n.KeyLinked)+"\n\n"+botservice.HelpText(lang))
	case apperrors.Is(err, apperrors.ErrLinkTokenInvalid), apperrors.Is(err, apperrors.ErrAdminNotFound):
		h.logger.Warn("Rejected link token", logger.Int64("chat_id", chatID))
		h.send(ctx, chatID, i18n.T(i18n.DefaultLanguage, i18n.KeyLinkInvalid))
	default:
		h.logger.Error("Failed to link admin", logger.Int64("chat_id", chatID), logger.Error(err))
		h.service.SendError(ctx, chatID, i18n.DefaultLanguage)
	}
}

func (h *StartHandler) sendUnauthorized(ctx context.Context, chatID int64) {
	h.send(ctx, chatID, i18n.T(i18n.DefaultLanguage, i18n.KeyUnauthorized))
}

func (h *StartHandler) send(ctx context.Context, chatID int64, text string) {
	if err := h.service.SendSimpleMessage(ctx, chatID, text); err != nil {
		h.logger.Error("Failed to send message", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}

// username возвращает имя пользователя Telegram из сообщения
func username(msg *models.Message) string {
	if msg.From != nil && msg.From.Username != "" {
		return msg.From.Username
	}
	return msg.Chat.Username
}
