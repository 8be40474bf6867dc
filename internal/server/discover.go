package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/procurehq/supplierscope/internal/discovery"
	"github.com/procurehq/supplierscope/internal/discovery/engine"
)

// DiscoveryHandler serves the discovery endpoints.
type DiscoveryHandler struct {
	Engine *engine.Engine
}

type discoverRequest struct {
	Name    string                    `json:"name"`
	Context *discovery.RequestContext `json:"context,omitempty"`
}

type bulkRequest struct {
	Requests []discoverRequest `json:"requests"`
}

type updateResponse struct {
	Outcome *discovery.DiscoverOutcome `json:"outcome"`
	Updated bool                       `json:"updated"`
}

// Register mounts the endpoints on g.
func (h *DiscoveryHandler) Register(g *echo.Group) {
	g.POST("/discover", h.discover)
	g.POST("/discover/refresh", h.refresh)
	g.POST("/discover/update", h.updateIfBetter)
	g.POST("/discover/bulk", h.bulk)
	g.GET("/stats", h.stats)
}

func (h *DiscoveryHandler) discover(c echo.Context) error {
	var body discoverRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	outcome, err := h.Engine.Discover(c.Request().Context(), body.toRequest())
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *DiscoveryHandler) refresh(c echo.Context) error {
	var body discoverRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	outcome, err := h.Engine.Refresh(c.Request().Context(), body.toRequest())
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *DiscoveryHandler) updateIfBetter(c echo.Context) error {
	var body discoverRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	outcome, updated, err := h.Engine.UpdateIfBetter(c.Request().Context(), body.toRequest())
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, updateResponse{Outcome: outcome, Updated: updated})
}

func (h *DiscoveryHandler) bulk(c echo.Context) error {
	var body bulkRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if len(body.Requests) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "requests must not be empty")
	}
	reqs := make([]discovery.DiscoveryRequest, len(body.Requests))
	for i, r := range body.Requests {
		reqs[i] = r.toRequest()
	}
	results := h.Engine.BulkDiscover(c.Request().Context(), reqs)
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

func (h *DiscoveryHandler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Engine.Stats(c.Request().Context()))
}

func (r discoverRequest) toRequest() discovery.DiscoveryRequest {
	return discovery.DiscoveryRequest{Name: r.Name, Context: r.Context}
}
