package reservation

import (
	"strings"
	"time"

	apperrors "github.com/region23/tablebook/pkg/errors"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Slot представляет полуинтервал [Start, End), занимаемый бронью
type Slot struct {
	Start time.Time
	End   time.Time
}

// NewSlot создает слот длительностью d
func NewSlot(start time.Time, d time.Duration) Slot {
	return Slot{Start: start, End: start.Add(d)}
}

// Overlaps проверяет пересечение слотов. Совпадение конца одного с началом
// другого пересечением не считается.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// ParseDate проверяет дату в формате YYYY-MM-DD
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, apperrors.ErrInvalidDate.WithContext(map[string]string{"reservation_date": date})
	}
	return d, nil
}

// ParseStart собирает начало слота из даты и времени в часовом поясе loc.
// Время принимается как HH:MM или HH:MM:SS.
func ParseStart(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}

	clock = strings.TrimSpace(clock)
	if len(clock) == len("15:04:05") {
		clock = clock[:len(timeLayout)]
	}
	t, err := time.Parse(timeLayout, clock)
	if err != nil {
		return time.Time{}, apperrors.ErrInvalidTime.WithContext(map[string]string{"reservation_time": clock})
	}

	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
