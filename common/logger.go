package common

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/Azure/azure-pipeline-go/pipeline"
)

// LogLevel mirrors pipeline.LogLevel, so the same severity vocabulary threads
// through both the filter's internal diagnostics and anything built on
// azure-pipeline-go.
type LogLevel pipeline.LogLevel

const (
	LogNone    = LogLevel(pipeline.LogNone)
	LogFatal   = LogLevel(pipeline.LogFatal)
	LogPanic   = LogLevel(pipeline.LogPanic)
	LogError   = LogLevel(pipeline.LogError)
	LogWarning = LogLevel(pipeline.LogWarning)
	LogInfo    = LogLevel(pipeline.LogInfo)
	LogDebug   = LogLevel(pipeline.LogDebug)
)

func (l LogLevel) String() string {
	switch l {
	case LogNone:
		return "NoLogLevel"
	case LogFatal:
		return "FatalLogs"
	case LogPanic:
		return "PanicLogs"
	case LogError:
		return "ErrorLogs"
	case LogWarning:
		return "WarningLogs"
	case LogInfo:
		return "InfoLogs"
	case LogDebug:
		return "DebugLogs"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// ILogger is the logging surface the prebuffer package accepts. A nil ILogger
// is valid everywhere one is accepted; callers that don't want logging just
// don't supply one.
type ILogger interface {
	ShouldLog(level LogLevel) bool
	Log(level LogLevel, msg string)
	Panic(err error)
}

type ILoggerCloser interface {
	ILogger
	CloseLog()
}

// filterLogger is a minimal io.Writer-backed logger: one *log.Logger, no
// job-plan folder, no log rotation, no secret sanitizer (membuf has no
// credentials flowing through it).
type filterLogger struct {
	mu       sync.Mutex
	minLevel LogLevel
	logger   *log.Logger
}

// NewFilterLogger returns a logger writing to w (e.g. os.Stderr) at minLevel.
// Passing LogNone disables all logging without the caller needing to pass nil.
func NewFilterLogger(w *os.File, minLevel LogLevel) ILoggerCloser {
	return &filterLogger{
		minLevel: minLevel,
		logger:   log.New(w, "", log.LstdFlags|log.LUTC),
	}
}

func (fl *filterLogger) ShouldLog(level LogLevel) bool {
	if level == LogNone {
		return false
	}
	return level <= fl.minLevel
}

func (fl *filterLogger) Log(level LogLevel, msg string) {
	if !fl.ShouldLog(level) {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.logger.Println(level.String(), msg)
}

func (fl *filterLogger) Panic(err error) {
	fl.mu.Lock()
	fl.logger.Println(err)
	fl.mu.Unlock()
	panic(err)
}

func (fl *filterLogger) CloseLog() {
	// nothing to flush or close: we write directly to the caller's *os.File
	// and don't own its lifetime.
}
