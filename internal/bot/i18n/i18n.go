package i18n

import (
	"fmt"
	"strings"
)

// Поддерживаемые языки
const (
	English    = "en"
	Portuguese = "pt"

	DefaultLanguage = English
)

// Ключи сообщений
const (
	KeyNewReservation     = "new_reservation"
	KeyFieldID            = "field_id"
	KeyFieldClientName    = "field_client_name"
	KeyFieldContact       = "field_contact"
	KeyFieldTime          = "field_time"
	KeyFieldPartySize     = "field_party_size"
	KeyFieldStatus        = "field_status"
	KeyButtonConfirm      = "button_confirm"
	KeyButtonDiscard      = "button_discard"
	KeyActionDone         = "action_done"
	KeyActionFailed       = "action_failed"
	KeyActionInvalid      = "action_invalid"
	KeyAlreadyHandled     = "already_handled"
	KeyUnauthorized       = "unauthorized"
	KeyWelcome            = "welcome"
	KeyLinked             = "linked"
	KeyLinkInvalid        = "link_invalid"
	KeyHelpTitle          = "help_title"
	KeyHelpStart          = "help_start"
	KeyHelpPending        = "help_pending"
	KeyHelpLanguage       = "help_language"
	KeyHelpHelp           = "help_help"
	KeyLanguageSet        = "language_set"
	KeyLanguageUsage      = "language_usage"
	KeyPendingTitle       = "pending_title"
	KeyPendingEmpty       = "pending_empty"
	KeyInternalError      = "internal_error"
	KeyStatusConfirmed    = "status_confirmed"
	KeyStatusDiscarded    = "status_discarded"
	KeyStatusPending      = "status_pending"
	KeyLanguageEnglish    = "language_en"
	KeyLanguagePortuguese = "language_pt"
)

var messages = map[string]map[string]string{
	English: {
		KeyNewReservation:     "New reservation:",
		KeyFieldID:            "Reservation ID",
		KeyFieldClientName:    "Client Name",
		KeyFieldContact:       "Contact",
		KeyFieldTime:          "Time",
		KeyFieldPartySize:     "Party Size",
		KeyFieldStatus:        "Status",
		KeyButtonConfirm:      "Confirm",
		KeyButtonDiscard:      "Discard",
		KeyActionDone:         "Reservation %s %s by admin.",
		KeyActionFailed:       "Could not update the reservation.",
		KeyActionInvalid:      "Unknown action.",
		KeyAlreadyHandled:     "Reservation is already %s.",
		KeyUnauthorized:       "Unauthorized: This bot is for authorized administrators only.",
		KeyWelcome:            "Welcome, %s! You will receive reservation notifications here.",
		KeyLinked:             "Your Telegram account is now linked. You will receive reservation notifications here.",
		KeyLinkInvalid:        "This link is invalid or has expired. Please generate a new one.",
		KeyHelpTitle:          "Available commands",
		KeyHelpStart:          "/start - link your account or show this menu",
		KeyHelpPending:        "/pending - list pending reservations",
		KeyHelpLanguage:       "/lang en|pt - change language",
		KeyHelpHelp:           "/help - show this menu",
		KeyLanguageSet:        "Language changed to English.",
		KeyLanguageUsage:      "Choose a language:",
		KeyPendingTitle:       "Pending reservations",
		KeyPendingEmpty:       "There are no pending reservations.",
		KeyInternalError:      "Something went wrong. Please try again later.",
		KeyStatusConfirmed:    "confirmed",
		KeyStatusDiscarded:    "discarded",
		KeyStatusPending:      "pending",
		KeyLanguageEnglish:    "English",
		KeyLanguagePortuguese: "Português",
	},
	Portuguese: {
		KeyNewReservation:     "Nova reserva:",
		KeyFieldID:            "ID da reserva",
		KeyFieldClientName:    "Nome do cliente",
		KeyFieldContact:       "Contacto",
		KeyFieldTime:          "Hora",
		KeyFieldPartySize:     "Número de pessoas",
		KeyFieldStatus:        "Estado",
		KeyButtonConfirm:      "Confirmar",
		KeyButtonDiscard:      "Descartar",
		KeyActionDone:         "Reserva %s %s pelo administrador.",
		KeyActionFailed:       "Não foi possível atualizar a reserva.",
		KeyActionInvalid:      "Ação desconhecida.",
		KeyAlreadyHandled:     "A reserva já está %s.",
		KeyUnauthorized:       "Não autorizado: este bot é apenas para administradores autorizados.",
		KeyWelcome:            "Bem-vindo, %s! Receberá aqui as notificações de reservas.",
		KeyLinked:             "A sua conta do Telegram foi associada. Receberá aqui as notificações de reservas.",
		KeyLinkInvalid:        "Este link é inválido ou expirou. Gere um novo, por favor.",
		KeyHelpTitle:          "Comandos disponíveis",
		KeyHelpStart:          "/start - associar a conta ou mostrar este menu",
		KeyHelpPending:        "/pending - listar reservas pendentes",
		KeyHelpLanguage:       "/lang en|pt - mudar o idioma",
		KeyHelpHelp:           "/help - mostrar este menu",
		KeyLanguageSet:        "Idioma alterado para português.",
		KeyLanguageUsage:      "Escolha um idioma:",
		KeyPendingTitle:       "Reservas pendentes",
		KeyPendingEmpty:       "Não há reservas pendentes.",
		KeyInternalError:      "Ocorreu um erro. Tente novamente mais tarde.",
		KeyStatusConfirmed:    "confirmada",
		KeyStatusDiscarded:    "descartada",
		KeyStatusPending:      "pendente",
		KeyLanguageEnglish:    "English",
		KeyLanguagePortuguese: "Português",
	},
}

// Supported возвращает список поддерживаемых языков
func Supported() []string {
	return []string{English, Portuguese}
}

// IsSupported проверяет, поддерживается ли язык
func IsSupported(lang string) bool {
	_, ok := messages[strings.ToLower(strings.TrimSpace(lang))]
	return ok
}

// Normalize приводит код языка к поддерживаемому, иначе возвращает язык по умолчанию
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if _, ok := messages[lang]; ok {
		return lang
	}
	return DefaultLanguage
}

// T возвращает перевод ключа. Отсутствующий ключ ищется в языке по умолчанию.
func T(lang, key string, args ...interface{}) string {
	text, ok := messages[Normalize(lang)][key]
	if !ok {
		text, ok = messages[DefaultLanguage][key]
		if !ok {
			return "[missing translation: " + key + "]"
		}
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

// Status переводит статус брони
func Status(lang, status string) string {
	switch status {
	case "confirmed":
		return T(lang, KeyStatusConfirmed)
	case "discarded":
		return T(lang, KeyStatusDiscarded)
	case "pending":
		return T(lang, KeyStatusPending)
	}
	return status
}
