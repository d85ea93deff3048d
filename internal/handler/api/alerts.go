package api

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	models "CropPulse/internal/domain/models"
	domrepo "CropPulse/internal/domain/repository"
	xhttp "CropPulse/pkg/http"
	xlogger "CropPulse/pkg/logger"
)

// AlertsHandler exposes price alert rule management. Trigger latches are
// owned by the evaluator; this surface only creates, lists and removes
// rules.
type AlertsHandler struct {
	logger   *xlogger.Logger
	registry domrepo.RuleRegistry
}

func NewAlertsHandler(logger *xlogger.Logger, registry domrepo.RuleRegistry) *AlertsHandler {
	return &AlertsHandler{logger: logger, registry: registry}
}

func (h *AlertsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/alerts")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
}

func (h *AlertsHandler) Create(c echo.Context) error {
	req := &models.CreateRuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	kind, err := models.ParseRuleKind(req.Kind)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	rule := models.AlertRule{
		OwnerID:       req.OwnerID,
		Commodity:     req.Commodity,
		Market:        req.Market,
		Kind:          kind,
		Threshold:     decimal.NewFromFloat(req.Threshold),
		ChangePercent: decimal.NewFromFloat(req.ChangePercent),
	}
	created, err := h.registry.Create(c.Request().Context(), rule)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	h.logger.Info("alert rule created",
		xlogger.String("rule_id", created.ID),
		xlogger.String("owner", created.OwnerID),
		xlogger.String("kind", string(created.Kind)))
	return xhttp.CreatedResponse(c, created)
}

func (h *AlertsHandler) List(c echo.Context) error {
	req := &models.ListRulesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rules, err := h.registry.ListByOwner(c.Request().Context(), req.OwnerID)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rules, int64(len(rules)))
}

// RuleView combines a rule with its current latch for the detail read.
type RuleView struct {
	Rule   models.AlertRule     `json:"rule"`
	Status models.TriggerStatus `json:"status"`
}

func (h *AlertsHandler) Get(c echo.Context) error {
	id := c.Param("id")
	rule, ok, err := h.registry.Get(c.Request().Context(), id)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if !ok {
		return xhttp.NotFoundResponse(c, "rule not found")
	}
	status, _, err := h.registry.Status(c.Request().Context(), id)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, RuleView{Rule: rule, Status: status})
}

func (h *AlertsHandler) Delete(c echo.Context) error {
	id := c.Param("id")
	if err := h.registry.Delete(c.Request().Context(), id); err != nil {
		return xhttp.NotFoundResponse(c, err.Error())
	}
	h.logger.Info("alert rule deleted", xlogger.String("rule_id", id))
	return xhttp.NoContentResponse(c)
}
