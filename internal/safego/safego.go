// Package safego launches background goroutines that survive panics.
package safego

import (
	"log/slog"
	"runtime/debug"

	"github.com/propertydesk/propertydesk/internal/telemetry"
)

// Go runs fn in a new goroutine. A panic is recovered, logged with its stack
// under name and counted in background_panics_total, so one failing job or
// audit write cannot take the process down.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				telemetry.BackgroundPanicsTotal.WithLabelValues(name).Inc()
				slog.Error("recovered panic in background goroutine",
					"goroutine", name, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
