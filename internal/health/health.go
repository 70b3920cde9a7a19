// Package health provides system health monitoring and the HTTP control surface.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth contains health details for one component.
type ComponentHealth struct {
	Name   string         `json:"name"`
	Status SystemStatus   `json:"status"`
	Error  string         `json:"error,omitempty"`
	Detail map[string]int `json:"detail,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
}

// worst returns the more severe of two statuses.
func worst(a, b SystemStatus) SystemStatus {
	switch {
	case a == StatusCritical || b == StatusCritical:
		return StatusCritical
	case a == StatusDegraded || b == StatusDegraded:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}
