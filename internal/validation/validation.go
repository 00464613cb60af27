package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/region23/tablebook/internal/storage/models"
	apperrors "github.com/region23/tablebook/pkg/errors"
)

// Регулярные выражения для валидации
var (
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRegex = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
)

// Теги пользовательских правил
const (
	TagTableStatus = "table_status"
	TagHHMM        = "hhmm"
	TagDate        = "isodate"
	TagTableName   = "table_name"
)

// Register добавляет пользовательские правила в validator.
// Повторные вызовы для того же движка безопасны.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})

	for tag, fn := range map[string]validator.Func{
		TagTableStatus: tableStatus,
		TagHHMM:        clock,
		TagDate:        date,
		TagTableName:   tableName,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// tableStatus допускает пустое значение, чтобы работать с omitempty
var tableStatus validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return s == "" || models.TableStatus(s).Valid()
}

// tableName допускает пустое значение: имя тогда генерируется автоматически
var tableName validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return s == "" || models.ValidTableName(s)
}

var clock validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok || !timeRegex.MatchString(s) {
		return false
	}
	_, err := ValidateTime(s)
	return err == nil
}

var date validator.Func = func(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := ValidateDate(s)
	return err == nil
}

// ValidateDate валидирует дату в формате YYYY-MM-DD
func ValidateDate(dateStr string) (time.Time, error) {
	if !dateRegex.MatchString(dateStr) {
		return time.Time{}, apperrors.ErrInvalidDate.WithContext(map[string]string{
			"date":   dateStr,
			"reason": "date must be in YYYY-MM-DD format",
		})
	}

	d, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, apperrors.ErrInvalidDate.WithError(err).WithContext(map[string]string{"date": dateStr})
	}
	return d, nil
}

// ValidateTime валидирует время в формате HH:MM или HH:MM:SS
func ValidateTime(timeStr string) (time.Time, error) {
	layout := "15:04"
	if strings.Count(timeStr, ":") == 2 {
		layout = "15:04:05"
	}

	t, err := time.Parse(layout, timeStr)
	if err != nil {
		return time.Time{}, apperrors.ErrInvalidTime.WithError(err).WithContext(map[string]string{
			"time":   timeStr,
			"reason": "time must be in HH:MM format",
		})
	}
	return t, nil
}

// TranslateError превращает ошибку привязки запроса в ошибку валидации
// с перечнем полей и нарушенных правил
func TranslateError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation("malformed request body").WithError(err)
	}

	fields := make(map[string]string, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		fields[name] = rule(fe)
		names = append(names, name)
	}

	return apperrors.Validation("invalid fields: %s", strings.Join(names, ", ")).WithContext(fields)
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case TagTableStatus:
		return "must be one of available, maintenance, reserved"
	case TagHHMM:
		return "must be a time in HH:MM format"
	case TagDate:
		return "must be a date in YYYY-MM-DD format"
	case TagTableName:
		return "must look like T<number>"
	}
	return "failed " + fe.Tag()
}
