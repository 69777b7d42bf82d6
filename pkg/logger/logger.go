package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much the CLI logs
type Options struct {
	Level string
	File  string
}

// New builds the process logger. Without a file it writes human-readable text to stderr;
// with a file it writes JSON through a rotating writer.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()

	if opts.File != "" {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.Out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		logger.Out = os.Stderr
	}

	logger.SetLevel(ParseLevel(opts.Level))
	return logger
}

// ParseLevel maps a config string to a logrus level, defaulting to info
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// Discard returns a logger that drops everything, for tests and library defaults
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

// Component returns an entry tagged with the component name
func Component(log *logrus.Logger, name string) *logrus.Entry {
	if log == nil {
		log = Discard()
	}
	return log.WithField("component", name)
}

type sessionHook struct {
	id string
}

func (h sessionHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h sessionHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["session"]; !ok {
		e.Data["session"] = h.id
	}
	return nil
}

// TagSession stamps every entry written through log with the session id
func TagSession(log *logrus.Logger, id string) {
	if log == nil || id == "" {
		return
	}
	log.AddHook(sessionHook{id: id})
}
