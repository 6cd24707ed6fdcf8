package safety

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
	g := api.Group("/safety", auth.RequireRole("admin", "physician", "nurse", "pharmacist"))
	g.POST("/treatments/:id/validate", h.ValidateTreatment)
	g.POST("/conditions/:id/validate", h.ValidatePlan)
}

func (h *Handler) ValidateTreatment(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Validate(c.Param("id"), &req.Profile)
	if err != nil {
		return safetyError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ValidatePlan(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.ValidatePlan(c.Param("id"), &req.Profile)
	if err != nil {
		return safetyError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func safetyError(err error) error {
	var ut *kb.UnknownTreatmentError
	if errors.As(err, &ut) {
		return echo.NewHTTPError(http.StatusNotFound, ut.Error())
	}
	var iq *kb.InvalidQueryError
	if errors.As(err, &iq) {
		return echo.NewHTTPError(http.StatusNotFound, iq.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
