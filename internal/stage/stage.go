// Package stage holds what the folder-based archival stages share.
package stage

import (
	"go.uber.org/zap"

	"gfres/internal/apperr"
)

// Result summarizes one stage run. Errors holds one entry per skipped unit.
type Result struct {
	Processed int
	Unchanged int
	Ignored   int
	Errors    []error
}

// Skip logs a unit that could not be processed.
func Skip(logger *zap.Logger, unit string, err error) {
	logger.Warn("unit skipped",
		zap.String("unit", unit),
		zap.String("kind", Kind(err)),
		zap.Error(err),
	)
}

func Kind(err error) string {
	if kind, ok := apperr.KindOf(err); ok {
		return string(kind)
	}
	return "UNKNOWN"
}

// Workers clamps a configured worker count to at least one.
func Workers(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
