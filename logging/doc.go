// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the key/value logging methods (Debug, Info,
// Warn, Error) that orchestrators, flows and agents use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - StructuredLogger with contextual cloning and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	graph, err := multiagent.NewGraph(nodes, edges, func(o *multiagent.GraphOptions) {
//		o.Logger = logger
//	})
//
// The interface is intentionally small to avoid vendor lock-in.
package logging
