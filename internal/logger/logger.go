package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Logger writes a colored line to the terminal writer and a JSON line to the
// optional file writer. It is safe for concurrent use.
type Logger struct {
	mu           sync.Mutex
	terminal     io.Writer
	file         io.Writer
	logFile      *os.File
	colorEnabled bool
	minLevel     LogLevel
}

// NewLogger logs to stdout and to a daily JSON file under dir.
func NewLogger(dir string) *Logger {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	logFileName := filepath.Join(dir, fmt.Sprintf("admission-%s.log", timestamp))

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to create log file:", err)
	}

	logger := &Logger{
		terminal:     os.Stdout,
		file:         logFile,
		logFile:      logFile,
		colorEnabled: true,
		minLevel:     DEBUG,
	}

	logger.Info("LOGGER", "Logging system initialized")
	logger.Info("LOGGER", fmt.Sprintf("Log file: %s", logFileName))

	return logger
}

// NewWriterLogger writes JSON lines to w and nothing to the terminal. Tests
// use it with io.Discard or a buffer.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{
		terminal: io.Discard,
		file:     w,
		minLevel: DEBUG,
	}
}

// SetLevel drops entries below level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// ParseLevel maps a config string to a level, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) log(level LogLevel, category, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	io.WriteString(l.terminal, l.terminalLine(level, entry))

	if l.file != nil {
		raw, _ := json.Marshal(entry)
		l.file.Write(append(raw, '\n'))
	}
}

var levelNames = [...]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR", FATAL: "FATAL"}

func (lv LogLevel) String() string {
	if lv < DEBUG || lv > FATAL {
		return "INFO"
	}
	return levelNames[lv]
}

// palette pairs the level and category colors per level.
var palette = map[LogLevel][2]*color.Color{
	DEBUG: {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	INFO:  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	WARN:  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	ERROR: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
	FATAL: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

var (
	clockColor  = color.New(color.FgBlue)
	callerColor = color.New(color.FgMagenta)
)

func (l *Logger) terminalLine(level LogLevel, entry LogEntry) string {
	clock := entry.Timestamp[11:19]
	if !l.colorEnabled {
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", clock, entry.Level, entry.Category, entry.Message)
	}

	colors := palette[level]
	var b strings.Builder
	b.WriteString(clockColor.Sprint(clock))
	b.WriteByte(' ')
	b.WriteString(colors[0].Sprintf("%-5s", entry.Level))
	b.WriteByte(' ')
	b.WriteString(colors[1].Sprintf("[%-10s]", entry.Category))
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	if entry.File != "" && entry.Line > 0 {
		b.WriteString(callerColor.Sprintf(" (%s:%d)", entry.File, entry.Line))
	}
	b.WriteByte('\n')
	return b.String()
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

func (l *Logger) LogCheckin(result, code, message string) {
	l.log(INFO, "CHECKIN", fmt.Sprintf("[%s] %s - %s", result, code, message))
}

func (l *Logger) LogWebhook(eventType, eventID, message string) {
	l.log(INFO, "WEBHOOK", fmt.Sprintf("[%s] %s - %s", eventType, eventID, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.log(INFO, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.log(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.log(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.log(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
