// Package logger provides the structured logging interface used across cmsdl.
//
// It wraps zerolog with a small Logger interface so components can attach
// fields (course, path, run id) without depending on zerolog directly.
// Console output is coloured and goes to stderr. When a log file is
// configured, entries are written to both.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("course", c.String())
//	log.Info("Course scraped")
//
// Tests use NewNopLogger or NewTestLogger, which records every message for
// later assertions.
package logger
