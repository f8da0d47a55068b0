package debug

import (
	"time"

	"go.uber.org/zap"
)

// Timing logs the start of an operation at debug level and returns a func
// that logs its completion with the elapsed time
func Timing(logger *zap.Logger, operation string, fields ...zap.Field) func() {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return func() {}
	}

	start := time.Now()
	logger.Debug("Starting: "+operation, fields...)

	return func() {
		logger.Debug("Completed: "+operation, append(fields, zap.Duration("took", time.Since(start)))...)
	}
}
