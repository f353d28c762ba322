// Package logger wraps a process-wide logrus logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields is an alias so callers don't import logrus for structured logs.
type Fields = logrus.Fields

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init configures level and format. An empty level means info and an empty
// format means text; anything unrecognised is an error and leaves the
// logger untouched.
func Init(level, format string) error {
	lvl := logrus.InfoLevel
	if level = strings.TrimSpace(level); level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		lvl = parsed
	}

	var f logrus.Formatter
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		f = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		f = &logrus.JSONFormatter{}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	log.SetLevel(lvl)
	log.SetFormatter(f)
	return nil
}

func SetOutput(w io.Writer) { log.SetOutput(w) }

// Level reports the current threshold.
func Level() logrus.Level { return log.GetLevel() }

func WithFields(fields Fields) *logrus.Entry { return log.WithFields(fields) }

func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }

func Info(args ...interface{}) { log.Info(args...) }

func Infof(format string, args ...interface{}) { log.Infof(format, args...) }

func Warnf(format string, args ...interface{}) { log.Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }

func Fatalf(format string, args ...interface{}) { log.Fatalf(format, args...) }
