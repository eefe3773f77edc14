package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/platinummonkey/pulse/pkg/observability"
)

// SafeGo executes fn in a goroutine with context cancellation, panic
// recovery, timeout enforcement, and error logging. Use this instead
// of a bare go statement for background tasks whose failure should be
// observed but must not crash the process.
//
// Example:
//
//	async.SafeGo(ctx, logger, 5*time.Second, "reactive anomaly check", func(ctx context.Context) error {
//	    _, err := detector.DetectEventAnomaly(ctx, event, history)
//	    return err
//	})
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("background task failed")
		}
	}()
}

// SafeGoNoError is SafeGo for functions that do not return errors.
func SafeGoNoError(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context)) {
	SafeGo(parentCtx, logger, timeout, taskName, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}
