package diagnosis

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
	g := api.Group("/diagnosis", auth.RequireRole("admin", "physician", "nurse"))
	g.POST("/match", h.Match)
	g.POST("/rank", h.Rank)
}

func (h *Handler) Match(c echo.Context) error {
	var req MatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	scores, err := h.svc.Match(req.Symptoms)
	if err != nil {
		return queryError(err)
	}
	normalized, _ := NormalizeSymptoms(req.Symptoms)
	return c.JSON(http.StatusOK, MatchResponse{
		KBVersion: h.svc.store.Snapshot().Version(),
		Symptoms:  normalized,
		Scores:    scores,
	})
}

func (h *Handler) Rank(c echo.Context) error {
	var req RankRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Limit < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must not be negative")
	}
	candidates, err := h.svc.Rank(req.Symptoms, req.Limit)
	if err != nil {
		return queryError(err)
	}
	normalized, _ := NormalizeSymptoms(req.Symptoms)
	return c.JSON(http.StatusOK, RankResponse{
		KBVersion:  h.svc.store.Snapshot().Version(),
		Symptoms:   normalized,
		Candidates: candidates,
	})
}

// queryError maps kb errors to HTTP status codes. Invalid input is the
// caller's fault; anything else is ours.
func queryError(err error) error {
	var iq *kb.InvalidQueryError
	if errors.As(err, &iq) {
		return echo.NewHTTPError(http.StatusBadRequest, iq.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
