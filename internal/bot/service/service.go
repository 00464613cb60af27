package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/region23/tablebook/internal/bot/i18n"
	"github.com/region23/tablebook/internal/bot/keyboard"
	"github.com/region23/tablebook/internal/storage"
	"github.com/region23/tablebook/internal/storage/models"
	"github.com/region23/tablebook/internal/tokens"
	apperrors "github.com/region23/tablebook/pkg/errors"
	"github.com/region23/tablebook/pkg/logger"
	"github.com/region23/tablebook/pkg/metrics"
)

const linkTokenPrefix = "link:"

// Sender описывает методы Telegram API, которыми пользуется сервис.
// *bot.Bot удовлетворяет этому интерфейсу.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Reservations описывает операции над бронями, доступные из бота
type Reservations interface {
	Get(ctx context.Context, id string) (*models.Reservation, error)
	Confirm(ctx context.Context, id string) (*models.Reservation, error)
	Discard(ctx context.Context, id string) (*models.Reservation, error)
	ListPending(ctx context.Context, restaurantID string) ([]*models.Reservation, error)
}

// Options содержит настройки сервиса бота
type Options struct {
	BotUsername string
	TokenTTL    time.Duration
	Location    *time.Location
}

// LinkToken описывает одноразовую ссылку для привязки Telegram
type LinkToken struct {
	Token     string    `json:"token"`
	DeepLink  string    `json:"deep_link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service представляет основной сервис Telegram бота
type Service struct {
	sender       Sender
	admins       storage.AdminRepository
	reservations Reservations
	tokens       tokens.Store
	opts         Options
	logger       *logger.Logger
	now          func() time.Time
}

// NewService создает новый экземпляр сервиса бота
func NewService(
	sender Sender,
	admins storage.AdminRepository,
	reservations Reservations,
	tokenStore tokens.Store,
	opts Options,
	log *logger.Logger,
) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		sender:       sender,
		admins:       admins,
		reservations: reservations,
		tokens:       tokenStore,
		opts:         opts,
		logger:       log.Component("bot"),
		now:          time.Now,
	}
}

// NotifyReservation отправляет администратору сообщение о новой брони
// с кнопками подтверждения и отклонения
func (s *Service) NotifyReservation(ctx context.Context, admin *models.Admin, r *models.Reservation) error {
	if !admin.HasTelegram() {
		return fmt.Errorf("admin %s has no linked telegram chat", admin.ID)
	}

	lang := i18n.Normalize(admin.Language)
	text := i18n.T(lang, i18n.KeyNewReservation) + "\n" + s.FormatReservation(lang, r)

	_, err := s.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      *admin.TelegramChatID,
		Text:        text,
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: keyboard.CreateReservationKeyboard(lang, r.ID),
	})
	if err != nil {
		return fmt.Errorf("failed to send reservation notification: %w", err)
	}
	return nil
}

// FormatReservation форматирует бронь в HTML
func (s *Service) FormatReservation(lang string, r *models.Reservation) string {
	field := func(key, value string) string {
		return fmt.Sprintf("<b>%s:</b> %s", i18n.T(lang, key), html.EscapeString(value))
	}

	lines := []string{
		field(i18n.KeyFieldID, r.ID),
		field(i18n.KeyFieldClientName, r.ClientName),
		field(i18n.KeyFieldContact, r.ClientContact),
		field(i18n.KeyFieldTime, r.StartsAt.In(s.opts.Location).Format("2006-01-02 15:04")),
		field(i18n.KeyFieldPartySize, fmt.Sprintf("%d", r.PartySize)),
	}
	return strings.Join(lines, "\n")
}

// GenerateLinkToken создает одноразовый токен для привязки Telegram к администратору
func (s *Service) GenerateLinkToken(ctx context.Context, adminID string) (*LinkToken, error) {
	if _, err := s.getAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.tokens.Put(ctx, linkTokenPrefix+token, adminID, s.opts.TokenTTL); err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to store link token: %w", err))
	}
	metrics.RecordLinkToken("generated")

	s.logger.Info("Link token generated", logger.String("admin_id", adminID))

	return &LinkToken{
		Token:     token,
		DeepLink:  fmt.Sprintf("https://t.me/%s?start=%s", s.opts.BotUsername, token),
		ExpiresAt: s.now().Add(s.opts.TokenTTL).UTC(),
	}, nil
}

// LinkAdmin потребляет токен и привязывает чат к администратору
func (s *Service) LinkAdmin(ctx context.Context, token string, chatID int64, username string) (*models.Admin, error) {
	adminID, ok, err := s.tokens.Consume(ctx, linkTokenPrefix+token)
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to consume link token: %w", err))
	}
	if !ok {
		metrics.RecordLinkToken("rejected")
		return nil, apperrors.ErrLinkTokenInvalid
	}

	err = s.admins.LinkAdminTelegram(ctx, adminID, chatID, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.ErrAdminNotFound.WithContext(map[string]string{"admin_id": adminID})
	}
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to link admin telegram: %w", err))
	}
	metrics.RecordLinkToken("consumed")

	s.logger.Info("Admin linked to Telegram",
		logger.String("admin_id", adminID),
		logger.Int64("chat_id", chatID))

	return s.getAdmin(ctx, adminID)
}

// AdminByChat возвращает администратора по id чата
func (s *Service) AdminByChat(ctx context.Context, chatID int64) (*models.Admin, error) {
	admin, err := s.admins.GetAdminByChatID(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.ErrAdminNotFound.WithContext(map[string]int64{"telegram_chat_id": chatID})
	}
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to get admin by chat: %w", err))
	}
	return admin, nil
}

// Language возвращает язык администратора
func (s *Service) Language(ctx context.Context, chatID int64) (string, error) {
	admin, err := s.AdminByChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	return i18n.Normalize(admin.Language), nil
}

// SetLanguage меняет язык администратора
func (s *Service) SetLanguage(ctx context.Context, chatID int64, lang string) error {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if !i18n.IsSupported(lang) {
		return apperrors.ErrInvalidLanguage.
			WithMessage("language must be one of: %s", strings.Join(i18n.Supported(), ", ")).
			WithContext(map[string]string{"language": lang})
	}

	admin, err := s.AdminByChat(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.admins.SetAdminLanguage(ctx, admin.ID, lang); err != nil {
		return apperrors.Upstream(fmt.Errorf("failed to set admin language: %w", err))
	}

	s.logger.Info("Admin language updated",
		logger.String("admin_id", admin.ID),
		logger.String("language", lang))
	return nil
}

// ApplyReservationAction выполняет confirm/discard от имени администратора чата.
// Администратор может менять только брони своего ресторана.
func (s *Service) ApplyReservationAction(ctx context.Context, chatID int64, action, reservationID string) (*models.Reservation, error) {
	admin, err := s.AdminByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	r, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if r.RestaurantID != admin.RestaurantID {
		return nil, apperrors.ErrForbidden.WithContext(map[string]string{"reservation_id": reservationID})
	}

	switch action {
	case keyboard.ActionConfirm:
		return s.reservations.Confirm(ctx, reservationID)
	case keyboard.ActionDiscard:
		return s.reservations.Discard(ctx, reservationID)
	default:
		return nil, apperrors.Validation("unknown action %q", action)
	}
}

// PendingForChat возвращает ожидающие брони ресторана администратора
func (s *Service) PendingForChat(ctx context.Context, chatID int64) ([]*models.Reservation, error) {
	admin, err := s.AdminByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.reservations.ListPending(ctx, admin.RestaurantID)
}

// SendMessage отправляет сообщение пользователю
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup tgmodels.ReplyMarkup) error {
	params := &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   tgmodels.ParseModeHTML,
		ReplyMarkup: replyMarkup,
	}

	_, err := s.sender.SendMessage(ctx, params)
	return err
}

// SendSimpleMessage отправляет простое текстовое сообщение
func (s *Service) SendSimpleMessage(ctx context.Context, chatID int64, text string) error {
	return s.SendMessage(ctx, chatID, text, nil)
}

// SendError отправляет сообщение об ошибке пользователю
func (s *Service) SendError(ctx context.Context, chatID int64, lang string) {
	if err := s.SendSimpleMessage(ctx, chatID, i18n.T(lang, i18n.KeyInternalError)); err != nil {
		s.logger.Error("Failed to send error message",
			logger.Int64("chat_id", chatID),
			logger.Error(err))
	}
}

// EditMessage заменяет текст сообщения и убирает кнопки
func (s *Service) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := s.sender.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: keyboard.CreateRemoveInlineKeyboard(),
	})
	return err
}

// AnswerCallbackQuery отвечает на callback query
func (s *Service) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	params := &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}

	_, err := s.sender.AnswerCallbackQuery(ctx, params)
	return err
}

func (s *Service) getAdmin(ctx context.Context, adminID string) (*models.Admin, error) {
	admin, err := s.admins.GetAdmin(ctx, adminID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.ErrAdminNotFound.WithContext(map[string]string{"admin_id": adminID})
	}
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("failed to get admin: %w", err))
	}
	return admin, nil
}

// HelpText возвращает меню команд
func HelpText(lang string) string {
	return fmt.Sprintf("<b>%s</b>\n\n%s\n%s\n%s\n%s",
		i18n.T(lang, i18n.KeyHelpTitle),
		i18n.T(lang, i18n.KeyHelpStart),
		i18n.T(lang, i18n.KeyHelpPending),
		i18n.T(lang, i18n.KeyHelpLanguage),
		i18n.T(lang, i18n.KeyHelpHelp),
	)
}
