package event

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jereck/tarot-time/internal/platform/auth"
	"github.com/Jereck/tarot-time/pkg/pagination"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func newRequest(method, body, owner string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if owner != "" {
		req = req.WithContext(auth.WithOwnerID(context.Background(), owner))
	}
	return req
}

func createViaHandler(t *testing.T, h *Handler, e *echo.Echo, owner, body string) Event {
	t.Helper()
	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPost, body, owner), rec)
	if err := h.CreateEvent(c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var ev Event
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return ev
}

func TestHandler_CreateEvent(t *testing.T) {
	h, e := newTestHandler()
	ev := createViaHandler(t, h, e, "owner-1", `{"name":"Past life reading","duration_minutes":45,"owner_id":"someone-else"}`)
	if ev.OwnerID != "owner-1" {
		t.Errorf("expected owner from auth context, got %q", ev.OwnerID)
	}
	if ev.DurationMinutes != 45 || !ev.Active() {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestHandler_CreateEvent_BadRequest(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodPost, `{"duration_minutes":30}`, "owner-1"), httptest.NewRecorder())
	err := h.CreateEvent(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetEvent_OtherOwnerIsNotFound(t *testing.T) {
	h, e := newTestHandler()
	ev := createViaHandler(t, h, e, "owner-1", `{"name":"Reading"}`)

	c := e.NewContext(newRequest(http.MethodGet, "", "owner-2"), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(ev.ID.String())
	err := h.GetEvent(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_GetEvent_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(newRequest(http.MethodGet, "", "owner-1"), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	err := h.GetEvent(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_UpdateAndDeleteEvent(t *testing.T) {
	h, e := newTestHandler()
	ev := createViaHandler(t, h, e, "owner-1", `{"name":"Reading"}`)

	rec := httptest.NewRecorder()
	c := e.NewContext(newRequest(http.MethodPut, `{"name":"Deep reading","duration_minutes":90,"is_active":false}`, "owner-1"), rec)
	c.SetParamNames("id")
	c.SetParamValues(ev.ID.String())
	if err := h.UpdateEvent(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(newRequest(http.MethodDelete, "", "owner-1"), rec)
	c.SetParamNames("id")
	c.SetParamValues(ev.ID.String())
	if err := h.DeleteEvent(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ListPublicEvents(t *testing.T) {
	h, e := newTestHandler()
	createViaHandler(t, h, e, "owner-1", `{"name":"Open"}`)
	createViaHandler(t, h, e, "owner-1", `{"name":"Hidden","is_active":false}`)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("ownerId")
	c.SetParamValues("owner-1")
	if err := h.ListPublicEvents(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data  []Event `json:"data"`
		Total int     `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Data[0].Name != "Open" {
		t.Errorf("expected only the active event, got %+v", resp)
	}
}

func TestHandler_GetPublicEvent_Inactive(t *testing.T) {
	h, e := newTestHandler()
	ev := createViaHandler(t, h, e, "owner-1", `{"name":"Hidden","is_active":false}`)

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("ownerId", "id")
	c.SetParamValues("owner-1", ev.ID.String())
	err := h.GetPublicEvent(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_ListEvents_Paginates(t *testing.T) {
	h, e := newTestHandler()
	for i := 0; i < 3; i++ {
		createViaHandler(t, h, e, "owner-1", `{"name":"Reading `+uuid.NewString()[:4]+`"}`)
	}

	req := newRequest(http.MethodGet, "", "owner-1")
	req.URL.RawQuery = "_count=2"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.ListEvents(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || resp.Limit != 2 || !resp.HasMore {
		t.Errorf("unexpected page %+v", resp)
	}
}
