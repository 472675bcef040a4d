// Package obslog wraps logrus for structured, per-PR leveled logging:
// structured fields (pr, state, sha) instead of plain console narration,
// with --quiet still suppressing non-error console output.
package obslog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the run's root logger. format is "json" or "console"
// (default); quiet raises the console threshold to error-only.
func New(level, format string, quiet bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if quiet && lvl > logrus.ErrorLevel {
		lvl = logrus.ErrorLevel
	}
	l.SetLevel(lvl)

	return l
}

// ForPR returns a field-scoped entry for log lines about one pull
// request, carrying its number, current state, and head SHA.
func ForPR(l *logrus.Logger, num int, state, sha string) *logrus.Entry {
	return l.WithFields(logrus.Fields{"pr": num, "state": state, "sha": sha})
}
