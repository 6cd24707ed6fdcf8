package reasoning

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medichain/reasoner/internal/kb"
	"github.com/medichain/reasoner/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reasoning", auth.RequireRole("admin", "physician", "nurse"))
	g.POST("/explain", h.Explain)
}

func (h *Handler) Explain(c echo.Context) error {
	var req ExplainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var chain *Chain
	var err error
	if req.Profile != nil {
		chain, err = h.svc.ExplainWithProfile(req.ConditionID, req.Symptoms, req.Profile)
	} else {
		chain, err = h.svc.Explain(req.ConditionID, req.Symptoms)
	}
	if err != nil {
		var iq *kb.InvalidQueryError
		if errors.As(err, &iq) {
			return echo.NewHTTPError(http.StatusBadRequest, iq.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, chain)
}
