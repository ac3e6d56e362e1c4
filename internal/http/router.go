// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"feastly/internal/http/handlers"
	"feastly/internal/http/middleware"
)

func NewRouter(
	orderService handlers.OrderService,
	courierService handlers.CourierService,
	dispatchService handlers.DispatchService,
	locationService handlers.LocationSink,
	log *zap.Logger,
) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.Use(middleware.RequireActor())

	orderHandler := handlers.NewOrderHandler(orderService)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/status", orderHandler.Transition)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)

	courierHandler := handlers.NewCourierHandler(courierService, dispatchService)
	api.POST("/couriers/register", courierHandler.Register)
	api.GET("/couriers/:id", courierHandler.Profile)
	api.PUT("/couriers/:id/availability", courierHandler.SetAvailability)
	api.POST("/couriers/orders/:id/accept", courierHandler.AcceptOrder)

	locationHandler := handlers.NewLocationHandler(locationService)
	api.PUT("/couriers/:id/location", locationHandler.Update)

	return r
}
