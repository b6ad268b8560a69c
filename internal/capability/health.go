package capability

import (
	"time"
)

// Status is the coarse health of a collaborator.
type Status int

// Health statuses, from best to worst. Unknown means never checked.
const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusDegraded
	StatusUnhealthy
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Performance summarizes recent adapter traffic.
type Performance struct {
	ResponseTime time.Duration
	ErrorRate    float64
	LastActivity time.Time
}

// HealthStatus is the result of the latest health check.
type HealthStatus struct {
	Status      Status
	LastCheck   time.Time
	Issues      []string
	Performance *Performance
}

// Clone returns a deep copy.
func (h HealthStatus) Clone() HealthStatus {
	if h.Issues != nil {
		h.Issues = append([]string(nil), h.Issues...)
	}
	if h.Performance != nil {
		p := *h.Performance
		h.Performance = &p
	}
	return h
}

// equivalent reports whether two checks reached the same verdict.
func (h HealthStatus) equivalent(o HealthStatus) bool {
	if h.Status != o.Status || len(h.Issues) != len(o.Issues) {
		return false
	}
	for i := range h.Issues {
		if h.Issues[i] != o.Issues[i] {
			return false
		}
	}
	return true
}

// worsen raises the status to at least s and records the issue.
func (h *HealthStatus) worsen(s Status, issue string) {
	if s > h.Status {
		h.Status = s
	}
	h.Issues = append(h.Issues, issue)
}
