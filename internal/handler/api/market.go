package api

import (
	models "CropPulse/internal/domain/models"
	"CropPulse/internal/usecase"
	xhttp "CropPulse/pkg/http"
	xlogger "CropPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketHandler exposes the ingest and read boundaries over HTTP.
type MarketHandler struct {
	logger   *xlogger.Logger
	ingestor *usecase.Ingestor
	prices   *usecase.PriceReader
	weather  *usecase.WeatherReader
}

func NewMarketHandler(logger *xlogger.Logger, ingestor *usecase.Ingestor, prices *usecase.PriceReader, weather *usecase.WeatherReader) *MarketHandler {
	return &MarketHandler{logger: logger, ingestor: ingestor, prices: prices, weather: weather}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/observations", h.SubmitObservations)
	g.GET("/prices", h.CurrentPrices)
	g.GET("/prices/history", h.PriceHistory)
	g.GET("/weather", h.Weather)
}

// SubmitObservations ingests a raw observation batch. Per-record failures
// come back in the response body; the batch itself always lands.
func (h *MarketHandler) SubmitObservations(c echo.Context) error {
	req := &models.SubmitObservationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.ingestor.SubmitObservations(c.Request().Context(), req.Source, req.Observations)
	if err != nil {
		h.logger.Error("submit observations failed", xlogger.Error(err),
			xlogger.String("source", req.Source))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// CurrentPrices returns either one series' latest point (commodity+market)
// or the per-market aggregate for a commodity.
func (h *MarketHandler) CurrentPrices(c echo.Context) error {
	req := &models.CurrentPricesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	if req.Market != "" {
		p, err := h.prices.Current(ctx, req.Commodity, req.Market)
		if err != nil {
			return xhttp.NotFoundResponse(c, err.Error())
		}
		return xhttp.SuccessResponse(c, p)
	}

	view, err := h.prices.CurrentPrices(ctx, req.Commodity)
	if err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *MarketHandler) PriceHistory(c echo.Context) error {
	req := &models.PriceHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	history, err := h.prices.History(c.Request().Context(), req.Commodity, req.Market, req.Days)
	if err != nil {
		h.logger.Error("price history failed", xlogger.Error(err),
			xlogger.String("commodity", req.Commodity), xlogger.String("market", req.Market))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, history)
}

func (h *MarketHandler) Weather(c echo.Context) error {
	req := &models.WeatherRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.weather.Current(c.Request().Context(), req.Location)
	if err != nil {
		h.logger.Error("weather fetch failed", xlogger.Error(err),
			xlogger.String("location", req.Location))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}
