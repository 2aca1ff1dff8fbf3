package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает имя уровня без учёта регистра
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("неизвестный уровень логирования %q", s)
}

// Logger пишет сообщения в консоль и, если задан каталог, в файл компонента.
// В файл уходят сообщения от minFileLevel, в консоль от minConsoleLevel.
type Logger struct {
	mu              sync.Mutex
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

var settingsMu sync.RWMutex

var (
	logDir       = ""
	consoleLevel = INFO
	fileLevel    = TRACE
	consoleOut   = io.Writer(os.Stdout)
)

// Configure задаёт каталог файлов логов и минимальный уровень консоли для
// новых логгеров. Пустой dir отключает файловый вывод.
func Configure(dir string, level LogLevel) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	logDir = dir
	consoleLevel = level
}

// SetOutput перенаправляет консольный вывод новых логгеров
func SetOutput(w io.Writer) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	consoleOut = w
}

// NewLogger создаёт логгер компонента
func NewLogger(component string) (*Logger, error) {
	settingsMu.RLock()
	dir, minConsole, minFile, out := logDir, consoleLevel, fileLevel, consoleOut
	settingsMu.RUnlock()

	l := &Logger{
		component:       component,
		consoleLogger:   log.New(out, "", log.LstdFlags),
		minConsoleLevel: minConsole,
		minFileLevel:    minFile,
	}
	if dir == "" {
		return l, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.log", component, timestamp))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}
	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	return l, nil
}

// Close закрывает файл логгера
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	toFile := l.fileLogger != nil && level >= l.minFileLevel
	toConsole := l.consoleLogger != nil && level >= l.minConsoleLevel
	if !toFile && !toConsole {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))
	if toFile {
		l.fileLogger.Println(message)
	}
	if toConsole {
		l.consoleLogger.Println(message)
	}
}

// Логгер по умолчанию для пакетных функций. До InitDefaultLogger пишет только в консоль.
var defaultMu sync.RWMutex

var defaultLogger = &Logger{
	component:       "main",
	consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
	minConsoleLevel: INFO,
	minFileLevel:    TRACE,
}

// InitDefaultLogger создаёт логгер по умолчанию для компонента
func InitDefaultLogger(component string) error {
	l, err := NewLogger(component)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	prev := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()
	_ = prev.Close()
	return nil
}

// CloseDefaultLogger закрывает файл логгера по умолчанию
func CloseDefaultLogger() {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	_ = l.Close()
}

// Default возвращает логгер по умолчанию
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func Trace(format string, args ...interface{}) { Default().log(TRACE, format, args...) }
func Debug(format string, args ...interface{}) { Default().log(DEBUG, format, args...) }
func Info(format string, args ...interface{}) { Default().log(INFO, format, args...) }
func Warn(format string, args ...interface{}) { Default().log(WARN, format, args...) }
func Error(format string, args ...interface{}) { Default().log(ERROR, format, args...) }
