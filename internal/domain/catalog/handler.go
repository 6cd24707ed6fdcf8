package catalog

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medichain/reasoner/internal/kb"
	"github.com/medichain/reasoner/internal/platform/auth"
	"github.com/medichain/reasoner/pkg/pagination"
)

type Handler struct {
	svc *Service
	log zerolog.Logger

	// kbDescriptor is the source admin reloads pull from.
	kbDescriptor string
}

func NewHandler(svc *Service, kbDescriptor string, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, kbDescriptor: kbDescriptor, log: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/catalog", auth.RequireRole("admin", "physician", "nurse", "pharmacist"))
	read.GET("/conditions", h.ListConditions)
	read.GET("/conditions/:id", h.GetCondition)
	read.GET("/conditions/:id/red-flags", h.GetRedFlags)
	read.GET("/conditions/:id/lab-tests", h.GetLabTests)
	read.GET("/conditions/:id/imaging", h.GetImaging)
	read.GET("/treatments", h.ListTreatments)
	read.GET("/treatments/:id", h.GetTreatment)
	read.GET("/emergencies", h.ListEmergencies)
	read.GET("/red-flags", h.ListRedFlags)
	read.GET("/lab-tests", h.ListLabTests)
	read.GET("/imaging", h.ListImaging)

	admin := api.Group("/kb", auth.RequireRole("admin"))
	admin.GET("", h.KBInfo)
	admin.POST("/reload", h.ReloadKB)
}

func (h *Handler) ListConditions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total := h.svc.Conditions(pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetCondition(c echo.Context) error {
	cond, err := h.svc.Condition(c.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *Handler) GetRedFlags(c echo.Context) error {
	flags, err := h.svc.RedFlags(c.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, flags)
}

func (h *Handler) GetLabTests(c echo.Context) error {
	tests, err := h.svc.LabTests(c.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, tests)
}

func (h *Handler) GetImaging(c echo.Context) error {
	img, err := h.svc.Imaging(c.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, img)
}

func (h *Handler) ListTreatments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total := h.svc.Treatments(pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetTreatment(c echo.Context) error {
	tr, err := h.svc.Treatment(c.Param("id"))
	if err != nil {
		return notFound(err)
	}
	return c.JSON(http.StatusOK, tr)
}

func (h *Handler) ListEmergencies(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Emergencies())
}

func (h *Handler) ListRedFlags(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.AllRedFlags())
}

func (h *Handler) ListLabTests(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.AllLabTests())
}

func (h *Handler) ListImaging(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.AllImaging())
}

func (h *Handler) KBInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Info())
}

func (h *Handler) ReloadKB(c echo.Context) error {
	info, err := h.svc.Reload(c.Request().Context(), h.kbDescriptor)
	if err != nil {
		h.log.Error().Err(err).Str("source", h.kbDescriptor).Msg("kb reload failed")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	h.log.Info().Str("version", info.Version).Int("facts", info.Facts).Msg("kb reloaded")
	return c.JSON(http.StatusOK, info)
}

func notFound(err error) error {
	var iq *kb.InvalidQueryError
	var ut *kb.UnknownTreatmentError
	if errors.As(err, &iq) || errors.As(err, &ut) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
