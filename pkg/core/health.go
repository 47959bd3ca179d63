// SPDX-License-Identifier: Apache-2.0
// Package core provides the shared event and health vocabulary used by the
// tool engine and the agent registry.
package core

import (
	"context"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	// HealthHealthy indicates the component is fully operational.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the component is operational but with reduced capacity.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy indicates the component is not operational.
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthResult represents the result of a health check.
type HealthResult struct {
	Status       HealthStatus
	Component    string
	Message      string
	ResponseTime time.Duration
	ErrorRate    float64
	Uptime       time.Duration
	LastCheck    time.Time
	Error        error
}

// HealthChecker checks the health of a component.
type HealthChecker interface {
	// Check returns the current health status of the component.
	// The context can be used to implement timeouts.
	Check(ctx context.Context) HealthResult
}

// StatusRank orders statuses for aggregation: the worst member status wins.
func StatusRank(s HealthStatus) int {
	switch s {
	case HealthHealthy:
		return 2
	case HealthDegraded:
		return 1
	default:
		return 0
	}
}

// WorstStatus returns the lowest-ranked of the given statuses.
// An empty input is reported unhealthy.
func WorstStatus(statuses ...HealthStatus) HealthStatus {
	if len(statuses) == 0 {
		return HealthUnhealthy
	}
	worst := statuses[0]
	for _, s := range statuses[1:] {
		if StatusRank(s) < StatusRank(worst) {
			worst = s
		}
	}
	return worst
}
