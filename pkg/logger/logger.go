package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel определяет уровень логирования
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var logrusLevels = map[LogLevel]logrus.Level{
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
	LevelFatal: logrus.FatalLevel,
}

// ParseLevel разбирает уровень из строки конфигурации
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Logger представляет структурированный логгер поверх logrus
type Logger struct {
	entry *logrus.Entry
}

// Options задает вывод и формат логгера
type Options struct {
	Level  LogLevel
	Format string // text | json
	Output io.Writer
}

// New создает новый логгер с текстовым выводом в stdout
func New(level LogLevel) *Logger {
	return NewWithOptions(Options{Level: level})
}

// NewWithOptions создает логгер с заданными параметрами
func NewWithOptions(opts Options) *Logger {
	l := logrus.New()
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stdout)
	}

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	l.SetLevel(logrusLevels[opts.Level])

	return &Logger{entry: logrus.NewEntry(l)}
}

// Nop возвращает логгер, который ничего не пишет
func Nop() *Logger {
	return NewWithOptions(Options{Level: LevelFatal, Output: io.Discard})
}

// SetLevel устанавливает уровень логирования
func (l *Logger) SetLevel(level LogLevel) {
	l.entry.Logger.SetLevel(logrusLevels[level])
}

// Debug записывает debug сообщение
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(logrus.DebugLevel, msg, fields)
}

// Info записывает info сообщение
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(logrus.InfoLevel, msg, fields)
}

// Warn записывает warning сообщение
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(logrus.WarnLevel, msg, fields)
}

// Error записывает error сообщение
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(logrus.ErrorLevel, msg, fields)
}

// Fatal записывает fatal сообщение и завершает программу
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.entry.WithFields(toLogrus(fields)).Fatal(msg)
}

// WithFields возвращает логгер с предустановленными полями
func (l *Logger) WithFields(fields ...Field) *Logger {
	return &Logger{entry: l.entry.WithFields(toLogrus(fields))}
}

// Component возвращает логгер с полем component
func (l *Logger) Component(name string) *Logger {
	return l.WithFields(String("component", name))
}

func (l *Logger) log(level logrus.Level, msg string, fields []Field) {
	if !l.entry.Logger.IsLevelEnabled(level) {
		return
	}
	l.entry.WithFields(toLogrus(fields)).Log(level, msg)
}

func toLogrus(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		if err, ok := f.Value.(error); ok && err != nil {
			out[f.Key] = err.Error()
			continue
		}
		out[f.Key] = f.Value
	}
	return out
}

// Field представляет поле логирования
type Field struct {
	Key   string
	Value interface{}
}

// Вспомогательные функции для создания полей
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
