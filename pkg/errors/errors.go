package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind классифицирует ошибку для транспортного слоя
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindUpstream
)

// AppError представляет доменную ошибку с кодом причины и контекстом
type AppError struct {
	Kind    Kind        `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, чтобы errors.Is(err, ErrTableNotFound)
// срабатывал и для копий с контекстом
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus возвращает HTTP статус для вида ошибки
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WithContext добавляет контекст к ошибке
func (e *AppError) WithContext(ctx interface{}) *AppError {
	c := *e
	c.Context = ctx
	return &c
}

// WithError добавляет underlying ошибку
func (e *AppError) WithError(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// WithMessage заменяет текст сообщения
func (e *AppError) WithMessage(format string, args ...interface{}) *AppError {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// Предопределенные ошибки
var (
	// Ошибки валидации
	ErrValidation = &AppError{
		Kind:    KindValidation,
		Code:    "VALIDATION_ERROR",
		Message: "invalid request",
	}

	ErrInvalidDate = &AppError{
		Kind:    KindValidation,
		Code:    "INVALID_DATE",
		Message: "invalid date, expected YYYY-MM-DD",
	}

	ErrInvalidTime = &AppError{
		Kind:    KindValidation,
		Code:    "INVALID_TIME",
		Message: "invalid time, expected HH:MM",
	}

	ErrInvalidPartySize = &AppError{
		Kind:    KindValidation,
		Code:    "INVALID_PARTY_SIZE",
		Message: "party size must be a positive integer",
	}

	ErrInvalidLanguage = &AppError{
		Kind:    KindValidation,
		Code:    "INVALID_LANGUAGE",
		Message: "unsupported language",
	}

	// Ошибки поиска
	ErrTableNotFound = &AppError{
		Kind:    KindNotFound,
		Code:    "TABLE_NOT_FOUND",
		Message: "table not found",
	}

	ErrGroupNotFound = &AppError{
		Kind:    KindNotFound,
		Code:    "GROUP_NOT_FOUND",
		Message: "joined group not found",
	}

	ErrReservationNotFound = &AppError{
		Kind:    KindNotFound,
		Code:    "RESERVATION_NOT_FOUND",
		Message: "reservation not found",
	}

	ErrRestaurantNotFound = &AppError{
		Kind:    KindNotFound,
		Code:    "RESTAURANT_NOT_FOUND",
		Message: "restaurant not found",
	}

	ErrAdminNotFound = &AppError{
		Kind:    KindNotFound,
		Code:    "ADMIN_NOT_FOUND",
		Message: "admin not found",
	}

	// Ошибки объединения столов
	ErrInsufficientTables = &AppError{
		Kind:    KindConflict,
		Code:    "INSUFFICIENT_TABLES",
		Message: "at least 2 tables are required to join",
	}

	ErrTableUnavailable = &AppError{
		Kind:    KindConflict,
		Code:    "TABLE_UNAVAILABLE",
		Message: "table is not available",
	}

	ErrAlreadyJoined = &AppError{
		Kind:    KindConflict,
		Code:    "ALREADY_JOINED",
		Message: "table is already joined",
	}

	ErrLocationMismatch = &AppError{
		Kind:    KindConflict,
		Code:    "LOCATION_MISMATCH",
		Message: "tables must share the same location",
	}

	ErrTableReserved = &AppError{
		Kind:    KindConflict,
		Code:    "TABLE_RESERVED",
		Message: "cannot delete a reserved table",
	}

	ErrTableJoined = &AppError{
		Kind:    KindConflict,
		Code:    "TABLE_JOINED",
		Message: "table is part of a joined group",
	}

	ErrDuplicateTableName = &AppError{
		Kind:    KindConflict,
		Code:    "DUPLICATE_TABLE_NAME",
		Message: "table name already exists",
	}

	// Ошибки распределения
	ErrNoCapacity = &AppError{
		Kind:    KindConflict,
		Code:    "NO_CAPACITY",
		Message: "No tables available for this party size",
	}

	ErrNoAvailability = &AppError{
		Kind:    KindConflict,
		Code:    "NO_AVAILABILITY",
		Message: "No tables available at the requested time",
	}

	ErrInvalidTransition = &AppError{
		Kind:    KindConflict,
		Code:    "INVALID_STATUS_TRANSITION",
		Message: "reservation is no longer pending",
	}

	// Ошибки доступа
	ErrUnauthorized = &AppError{
		Kind:    KindUnauthorized,
		Code:    "UNAUTHORIZED",
		Message: "authentication required",
	}

	ErrForbidden = &AppError{
		Kind:    KindForbidden,
		Code:    "FORBIDDEN",
		Message: "access denied",
	}

	ErrLinkTokenInvalid = &AppError{
		Kind:    KindValidation,
		Code:    "LINK_TOKEN_INVALID",
		Message: "link token is invalid or expired",
	}

	// Системные ошибки
	ErrUpstream = &AppError{
		Kind:    KindUpstream,
		Code:    "UPSTREAM_ERROR",
		Message: "internal error",
	}

	ErrTelegramAPI = &AppError{
		Kind:    KindUpstream,
		Code:    "TELEGRAM_API",
		Message: "telegram api error",
	}
)

// New создает новую доменную ошибку
func New(kind Kind, code, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// Upstream оборачивает ошибку хранилища или внешнего канала
func Upstream(err error) *AppError {
	return ErrUpstream.WithError(err)
}

// Validation создает ошибку валидации с текстом
func Validation(format string, args ...interface{}) *AppError {
	return ErrValidation.WithMessage(format, args...)
}

// As извлекает AppError из цепочки ошибок
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is проксирует стандартный errors.Is
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
