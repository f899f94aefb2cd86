// Package api provides the admin HTTP server of the MQTT helper.
//
// It exposes Prometheus metrics, a health endpoint, the helper's current
// lifecycle and subscription status, and read access to the operation
// journal.
//
//	GET /healthz                  liveness plus registered checks
//	GET /metrics                  Prometheus exposition
//	GET /api/v1/status            helper state, subscriptions, runtime
//	GET /api/v1/journal           journal entries (filters: operation, client_id, outcome, since, limit, offset)
//	GET /api/v1/journal/summary   counts per operation and outcome (filter: since)
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	err = server.Run(ctx) // blocks until ctx is cancelled
package api
