package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	domrepo "CropPulse/internal/domain/repository"
	xhttp "CropPulse/pkg/http"
)

// Router registers every API surface on one Echo instance.
type Router struct {
	market *MarketHandler
	alerts *AlertsHandler
	store  domrepo.PriceStore
}

func NewRouter(market *MarketHandler, alerts *AlertsHandler, store domrepo.PriceStore) *Router {
	return &Router{market: market, alerts: alerts, store: store}
}

var _ xhttp.Handler = (*Router)(nil)

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.market.RegisterRoutes(e)
	r.alerts.RegisterRoutes(e)
	e.GET("/healthz", r.Health)
}

func (r *Router) Health(c echo.Context) error {
	if err := r.store.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
