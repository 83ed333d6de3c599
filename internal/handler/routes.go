package handler

import (
	"github.com/gin-gonic/gin"
)

// Routes bundles what RegisterRoutes mounts.
type Routes struct {
	Prefix   string
	Auth     gin.HandlerFunc
	Bookings *BookingHandler
	Workflow *WorkflowHandler
	Metrics  *MetricsHandler
	// MetricsPath is left unmounted when empty.
	MetricsPath string
}

// RegisterRoutes mounts health, metrics and the candidate API on r.
func RegisterRoutes(r *gin.Engine, routes Routes) {
	r.GET("/health", routes.Metrics.Health)
	r.GET("/ready", routes.Metrics.Ready)
	if routes.MetricsPath != "" {
		r.GET(routes.MetricsPath, routes.Metrics.Prometheus)
	}

	api := r.Group(routes.Prefix)
	api.Use(routes.Auth)

	api.GET("/departments/:departmentId/dates", routes.Bookings.ListDates)
	api.GET("/departments/:departmentId/dates/:date/slots", routes.Bookings.ListSlots)
	api.GET("/slots/:id", routes.Bookings.GetSlot)

	api.GET("/bookings/me", routes.Bookings.Current)
	api.POST("/bookings", routes.Bookings.Book)
	api.PUT("/bookings/me", routes.Bookings.Reschedule)
	api.DELETE("/bookings/me", routes.Bookings.Cancel)

	api.POST("/workflow/start", routes.Workflow.Start)
	api.POST("/workflow/actions", routes.Workflow.Act)
}
