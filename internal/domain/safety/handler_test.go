package safety

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	h := NewHandler(newTestService(t))
	e := echo.New()
	return h, e
}

func TestHandler_ValidateTreatment(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"profile":{"conditions":["bleeding-disorder"]}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("aspirin")

	if err := h.ValidateTreatment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !res.Blocked {
		t.Errorf("expected blocked result, got %+v", res)
	}
}

func TestHandler_ValidateTreatment_Unknown(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"profile":{}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("leeches")

	err := h.ValidateTreatment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 HTTPError, got %v", err)
	}
}

func TestHandler_ValidatePlan(t *testing.T) {
	h, e := newTestHandler(t)
	body := `{"profile":{"medications":["warfarin"]}}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("heart-attack")

	if err := h.ValidatePlan(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp PlanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ConditionID != "heart-attack" || len(resp.Results) != 2 {
		t.Errorf("unexpected plan response %+v", resp)
	}
}
