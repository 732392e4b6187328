// Package stridelog provides the structured logger shared by the
// core packages and CLI, grounded on the teacher's logrus usage
// (internal/watcher.Config.Logger).
package stridelog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger configured the way the CLI commands
// expect: text formatter, timestamps, level read from STRIDE_LOG_LEVEL
// (defaulting to info), writing to stderr so stdout stays available
// for piped CSV/TSV output.
func New() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.Level = levelFromEnv()
	return l
}

func levelFromEnv() logrus.Level {
	if v := os.Getenv("STRIDE_LOG_LEVEL"); v != "" {
		if lvl, err := logrus.ParseLevel(v); err == nil {
			return lvl
		}
	}
	return logrus.InfoLevel
}

// Default is used by packages that need a logger but were not handed
// one explicitly (e.g. constructed outside of the CLI entrypoints).
var Default = New()
