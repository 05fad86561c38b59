// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import "github.com/sirupsen/logrus"

// ParseLogLevel translates spec.md §6's `--log` enum
// ({debug,info,warning,error,critical}) onto logrus levels. "critical" has
// no logrus equivalent; it maps to PanicLevel, the most severe level
// logrus exposes short of process exit, matching SPEC_FULL.md §2.
func ParseLogLevel(name string) (logrus.Level, error) {
	switch name {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "critical":
		return logrus.PanicLevel, nil
	default:
		return 0, newErr(KindRegistryConflict, name, "unknown log level %q", name)
	}
}

// NewLogger builds the logger the driver installs as SchedulerOptions.Logger,
// at the given verbosity, text-formatted with full timestamps in the style
// the pack's services use for local/CLI output (structured JSON is left to
// hosts that want it, via opts.Logger.SetFormatter).
func NewLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}
