// Package logging provides the shared zap logger for the arena.
//
// The spoken-line transcript is written to stdout by the speech pipeline;
// structured logs go to stderr so the transcript stays clean.
package logging

import (
	"go.uber.org/zap"
)

// NewLogger builds a stderr-only production logger. debug enables the debug
// level, used by the ARENA_DEBUG env toggle.
func NewLogger(debug bool) *zap.SugaredLogger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Named("arena").Sugar()
}
