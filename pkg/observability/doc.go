/*
Package observability turns simulator lifecycle hooks into telemetry.

Metrics exposes Prometheus counters for state entries, transitions, breakpoints,
halts and ticks. LoggingHooks writes the same events to a slog.Logger. Both
return a domain.LifecycleHooks value; combine them with LifecycleHooks.Merge.
*/
package observability
