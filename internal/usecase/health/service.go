// Package health aggregates component probes into one report.
package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a non-critical component is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates a critical component is failing.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Component is one named probe.
type Component struct {
	Name     string
	Probe    func(ctx context.Context) error
	Critical bool
}

// Storage probes the chunk store connection. Storage is critical.
func Storage(p Pinger) Component {
	return Component{Name: "storage", Probe: p.Ping, Critical: true}
}

// Embedding probes the embedding provider.
func Embedding(c ProviderChecker) Component {
	return Component{Name: "embedding", Probe: c.HealthCheck}
}

// Generation probes the answer generation provider.
func Generation(c ProviderChecker) Component {
	return Component{Name: "generation", Probe: c.HealthCheck}
}

// Service coordinates health checks.
type Service struct {
	timeout    time.Duration
	components []Component
}

// New creates a Service. A non-positive timeout leaves probes bounded only by ctx.
func New(timeout time.Duration, components ...Component) *Service {
	return &Service{timeout: timeout, components: components}
}

// Check runs every probe and aggregates the results.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.components))
	status := Healthy

	for _, c := range s.components {
		if err := s.probe(ctx, c); err != nil {
			checks[c.Name] = CheckError
			if c.Critical {
				status = Unhealthy
			} else if status == Healthy {
				status = Degraded
			}
			continue
		}
		checks[c.Name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) probe(ctx context.Context, c Component) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return c.Probe(ctx)
}
