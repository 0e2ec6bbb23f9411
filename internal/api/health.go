package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health check statuses.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthCheck probes one dependency. Critical checks mark the service
// unhealthy on failure; non-critical ones only degrade it.
type HealthCheck struct {
	Probe    func() error
	Critical bool
}

// checkResult is the per-dependency entry in the health response.
type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// healthResponse is the health endpoint payload.
type healthResponse struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service"`
	Version string                 `json:"version"`
	Checks  map[string]checkResult `json:"checks,omitempty"`
}

// healthHandler returns a Gin handler running the configured checks.
func healthHandler(serviceName, version string, checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := healthResponse{
			Status:  statusHealthy,
			Service: serviceName,
			Version: version,
		}

		if len(checks) > 0 {
			resp.Checks = make(map[string]checkResult, len(checks))
			for name, check := range checks {
				result := runCheck(check)
				resp.Checks[name] = result

				switch result.Status {
				case statusUnhealthy:
					resp.Status = statusUnhealthy
				case statusDegraded:
					if resp.Status == statusHealthy {
						resp.Status = statusDegraded
					}
				}
			}
		}

		code := http.StatusOK
		if resp.Status == statusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
	}
}

func runCheck(check HealthCheck) checkResult {
	start := time.Now()
	err := check.Probe()
	latency := time.Since(start)

	if err != nil {
		status := statusDegraded
		if check.Critical {
			status = statusUnhealthy
		}
		return checkResult{
			Status:  status,
			Message: err.Error(),
			Latency: latency.String(),
		}
	}
	return checkResult{
		Status:  statusHealthy,
		Latency: latency.String(),
	}
}
