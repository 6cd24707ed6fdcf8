package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medichain/reasoner/pkg/pagination"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	h := NewHandler(newTestService(t), "embedded:", zerolog.Nop())
	e := echo.New()
	return h, e
}

func TestHandler_ListConditions(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/?limit=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListConditions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 14 || !resp.HasMore {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandler_GetCondition(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("meningitis")

	if err := h.GetCondition(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetCondition_NotFound(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("dragon-pox")

	err := h.GetCondition(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 HTTPError, got %v", err)
	}
}

func TestHandler_ListEmergencies(t *testing.T) {
	h, e := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListEmergencies(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entries []EmergencyEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 7 {
		t.Errorf("emergencies = %d, want 7", len(entries))
	}
}

func TestHandler_KBInfoAndReload(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := h.KBInfo(e.NewContext(req, rec)); err != nil {
		t.Fatalf("kb info: %v", err)
	}
	var before KBInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &before); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if before.Version == "" || before.Facts == 0 {
		t.Errorf("unexpected info %+v", before)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	rec = httptest.NewRecorder()
	if err := h.ReloadKB(e.NewContext(req, rec)); err != nil {
		t.Fatalf("reload: %v", err)
	}
	var after KBInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if after.Version == before.Version {
		t.Error("expected a new version after reload")
	}
}
