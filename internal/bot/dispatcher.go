package bot

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/region23/tablebook/internal/bot/handlers"
	"github.com/region23/tablebook/internal/bot/service"
	"github.com/region23/tablebook/pkg/logger"
)

// Dispatcher управляет обработкой входящих обновлений от Telegram
type Dispatcher struct {
	startHandler    *handlers.StartHandler
	pendingHandler  *handlers.PendingHandler
	languageHandler *handlers.LanguageHandler
	callbackHandler *handlers.CallbackHandler
	defaultHandler  *handlers.DefaultHandler
	logger          *logger.Logger
}

// NewDispatcher создает новый диспетчер обновлений
func NewDispatcher(service *service.Service, log *logger.Logger) *Dispatcher {
	log = log.Component("bot-dispatcher")
	return &Dispatcher{
		startHandler:    handlers.NewStartHandler(service, log),
		pendingHandler:  handlers.NewPendingHandler(service, log),
		languageHandler: handlers.NewLanguageHandler(service, log),
		callbackHandler: handlers.NewCallbackHandler(service, log),
		defaultHandler:  handlers.NewDefaultHandler(service, log),
		logger:          log,
	}
}

// HandleUpdate обрабатывает входящее обновление от Telegram
func (d *Dispatcher) HandleUpdate(ctx context.Context, update *models.Update) {
	if update == nil {
		return
	}

	if update.CallbackQuery != nil {
		d.logger.Debug("Received callback query",
			logger.Int64("from", update.CallbackQuery.From.ID),
			logger.String("data", update.CallbackQuery.Data))
		d.callbackHandler.Handle(ctx, update)
		return
	}

	if update.Message == nil {
		d.logger.Debug("Ignoring unsupported update", logger.Int64("update_id", update.ID))
		return
	}

	d.logger.Debug("Received message", logger.Int64("chat_id", update.Message.Chat.ID))

	command, arg := ParseCommand(update.Message.Text)
	switch command {
	case "start":
		d.startHandler.Handle(ctx, update, arg)
	case "pending":
		d.pendingHandler.Handle(ctx, update)
	case "lang", "language":
		d.languageHandler.Handle(ctx, update, arg)
	default:
		d.defaultHandler.Handle(ctx, update)
	}
}

// ParseCommand разбирает текст вида "/command@bot arg" на команду и аргумент.
// Для обычного текста возвращается пустая команда.
func ParseCommand(text string) (command, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}
