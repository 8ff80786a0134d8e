package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
	"github.com/noah-isme/task-scheduler-api/internal/service"
)

// Metrics records HTTP request metrics. Requests that reached the optimizer
// are labelled with the solver backend and the solve status the handler put
// in X-Schedule-Status; everything else is labelled "none".
func Metrics(metricsSvc *service.MetricsService, solver string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// unmatched paths would otherwise mint one series per URL
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labelSolver, outcome := "none", "none"
		if status := c.Writer.Header().Get(dto.HeaderScheduleStatus); status != "" {
			labelSolver, outcome = solver, status
		}
		metricsSvc.ObserveHTTPRequest(service.HTTPObservation{
			Method:   c.Request.Method,
			Path:     path,
			Status:   c.Writer.Status(),
			Solver:   labelSolver,
			Outcome:  outcome,
			Duration: duration,
		})
	}
}
