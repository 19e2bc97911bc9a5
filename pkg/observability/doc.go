/*
Package observability exports Prometheus metrics for diagram sessions.

Metrics are fed by session lifecycle hooks: pass Metrics.Hooks to session.WithHooks
for every session that should be counted. Gauges read live values from the session
registry when one is given to NewMetrics.
*/
package observability
