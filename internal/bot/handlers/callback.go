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

// CallbackHandler обрабатывает callback query от inline кнопок
type CallbackHandler struct {
	service *botservice.Service
	logger  *logger.Logger
}

// NewCallbackHandler создает новый обработчик callback query
func NewCallbackHandler(service *botservice.Service, log *logger.Logger) *CallbackHandler {
	return &CallbackHandler{service: service, logger: log}
}

// Handle обрабатывает callback query
func (h *CallbackHandler) Handle(ctx context.Context, update *models.Update) {
	cb := update.CallbackQuery
	if cb == nil || cb.Message.Message == nil {
		return
	}

	chatID := cb.Message.Message.Chat.ID
	messageID := cb.Message.Message.ID

	action, value, ok := keyboard.ParseCallbackData(cb.Data)
	if !ok {
		h.answer(ctx, cb.ID, i18n.T(i18n.DefaultLanguage, i18n.KeyActionInvalid))
		return
	}

	switch action {
	case keyboard.ActionConfirm, keyboard.ActionDiscard:
		h.handleReservation(ctx, cb, chatID, messageID, action, value)
	case keyboard.ActionLanguage:
		h.handleLanguage(ctx, cb, chatID, messageID, value)
	default:
		h.answer(ctx, cb.ID, i18n.T(i18n.DefaultLanguage, i18n.KeyActionInvalid))
	}
}

func (h *CallbackHandler) handleReservation(ctx context.Context, cb *models.CallbackQuery, chatID int64, messageID int, action, reservationID string) {
	lang, err := h.service.Language(ctx, chatID)
	if err != nil {
		h.answer(ctx, cb.ID, i18n.T(i18n.DefaultLanguage, i18n.KeyUnauthorized))
		return
	}

	r, err := h.service.ApplyReservationAction(ctx, chatID, action, reservationID)
	if err != nil {
		h.logger.Warn("Reservation action rejected",
			logger.Int64("chat_id", chatID),
			logger.String("reservation_id", reservationID),
			logger.String("action", action),
			logger.Error(err))

		switch {
		case apperrors.Is(err, apperrors.ErrInvalidTransition):
			current := ""
			if appErr, ok := apperrors.As(err); ok {
				if ctxMap, ok := appErr.Context.(map[string]string); ok {
					current = ctxMap["from"]
				}
			}
			h.answer(ctx, cb.ID, i18n.T(lang, i18n.KeyAlreadyHandled, i18n.Status(lang, current)))
		case apperrors.Is(err, apperrors.ErrForbidden), apperrors.Is(err, apperrors.ErrAdminNotFound):
			h.answer(ctx, cb.ID, i18n.T(lang, i18n.KeyUnauthorized))
		default:
			h.answer(ctx, cb.ID, i18n.T(lang, i18n.KeyActionFailed))
		}
		return
	}

	text := i18n.T(lang, i18n.KeyActionDone, r.ID, i18n.Status(lang, string(r.Status)))
	h.answer(ctx, cb.ID, text)

	if err := h.service.EditMessage(ctx, chatID, messageID, text); err != nil {
		h.logger.Warn("Failed to edit reservation message",
			logger.Int64("chat_id", chatID),
			logger.Error(err))
	}
}

func (h *CallbackHandler) handleLanguage(ctx context.Context, cb *models.CallbackQuery, chatID int64, messageID int, lang string) {
	if err := h.service.SetLanguage(ctx, chatID, lang); err != nil {
		h.logger.Warn("Failed to set language", logger.Int64("chat_id", chatID), logger.Error(err))
		h.answer(ctx, cb.ID, i18n.T(i18n.DefaultLanguage, i18n.KeyActionFailed))
		return
	}

	text := i18n.T(lang, i18n.KeyLanguageSet)
	h.answer(ctx, cb.ID, text)
	if err := h.service.EditMessage(ctx, chatID, messageID, text); err != nil {
		h.logger.Warn("Failed to edit language message", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}

func (h *CallbackHandler) answer(ctx context.Context, callbackID, text string) {
	if err := h.service.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		h.logger.Warn("Failed to answer callback query", logger.Error(err))
	}
}
