package keyboard

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/region23/tablebook/internal/bot/i18n"
)

// Действия в callback data
const (
	ActionConfirm  = "confirm"
	ActionDiscard  = "discard"
	ActionLanguage = "lang"
)

// CreateReservationKeyboard создает кнопки подтверждения и отклонения брони
func CreateReservationKeyboard(lang, reservationID string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{
					Text:         i18n.T(lang, i18n.KeyButtonConfirm),
					CallbackData: CallbackData(ActionConfirm, reservationID),
				},
				{
					Text:         i18n.T(lang, i18n.KeyButtonDiscard),
					CallbackData: CallbackData(ActionDiscard, reservationID),
				},
			},
		},
	}
}

// CreateLanguageKeyboard создает inline клавиатуру выбора языка
func CreateLanguageKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: i18n.T(i18n.English, i18n.KeyLanguageEnglish), CallbackData: CallbackData(ActionLanguage, i18n.English)},
				{Text: i18n.T(i18n.Portuguese, i18n.KeyLanguagePortuguese), CallbackData: CallbackData(ActionLanguage, i18n.Portuguese)},
			},
		},
	}
}

// CreateRemoveInlineKeyboard убирает кнопки у отредактированного сообщения
func CreateRemoveInlineKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}}
}

// CallbackData собирает строку вида action:value
func CallbackData(action, value string) string {
	return fmt.Sprintf("%s:%s", action, value)
}

// ParseCallbackData разбирает строку вида action:value
func ParseCallbackData(data string) (action, value string, ok bool) {
	action, value, found := strings.Cut(data, ":")
	if !found || action == "" || value == "" {
		return "", "", false
	}
	return action, value, true
}
