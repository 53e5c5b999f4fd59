// Package logging builds the run's *logrus.Logger from the CLI's -L/-d/-q
// flags. Grounded on github.com/sirupsen/logrus's own idiom (logrus.New,
// SetLevel, SetOutput) as used across the pack (e.g. flashmob-go-
// guerrilla's log package wraps a *logrus.Logger the same way), simplified
// to this tool's single-destination, no-hook needs.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures New, sourced directly from spec.md §6's -L/-d/-q
// flags.
type Options struct {
	// Level is readpst.c's -L argument: 1 debug, 2 info, 3 warn. Zero
	// means "not given", mapped to logrus's default (Info).
	Level int
	// File is the -d FILE destination; empty means stderr.
	File string
	// Quiet mirrors -q: force Error level and suppress progress lines
	// (callers check Quiet directly, since warnings/errors must still
	// surface per spec.md §6).
	Quiet bool
}

// New builds a *logrus.Logger per opts. The returned io.Closer closes the
// log file when one was opened; it is a no-op otherwise.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", opts.File, err)
		}
		logger.SetOutput(f)
		closer = f
	} else {
		logger.SetOutput(os.Stderr)
	}

	logger.SetLevel(levelFor(opts))
	return logger, closer, nil
}

// levelFor maps -L's inverted numbering (1 most verbose) onto logrus's own
// severity ordering (Debug most verbose), per spec.md §6's note that the
// two orderings run opposite ways.
func levelFor(opts Options) logrus.Level {
	if opts.Quiet {
		return logrus.ErrorLevel
	}
	switch opts.Level {
	case 1:
		return logrus.DebugLevel
	case 2:
		return logrus.InfoLevel
	case 3:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
