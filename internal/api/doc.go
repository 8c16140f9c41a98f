// Package api exposes the operational HTTP endpoints of a running harvest:
// liveness, a permit-pool snapshot, and Prometheus metrics.
package api
