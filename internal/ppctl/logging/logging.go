// Package logging configures the process-wide logrus logger for ppctl.
package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds a configured *logrus.Logger. level is one of logrus's named
// levels (debug, info, warn, error); format is "text" or "json".
func New(level, format string) (*logrus.Logger, error) {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be text or json)", format)
	}

	return l, nil
}
