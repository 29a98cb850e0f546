package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paqtrack/paqtrack-be/internal/auth"
	"github.com/paqtrack/paqtrack-be/internal/delivery"
	"github.com/paqtrack/paqtrack-be/internal/middleware"
	"github.com/paqtrack/paqtrack-be/internal/models"
)

func agentRef(id int64) *int64 { return &id }

func pendingPackage(id, agentID int64) models.Package {
	return models.Package{
		ID:          id,
		Description: "box of parts",
		Address:     "Av. Reforma 100",
		Status:      models.StatusPending,
		AgentID:     agentRef(agentID),
	}
}

// newPackageMux wires the package handler behind the real bearer guard, the
// way the server does.
func newPackageMux(t *testing.T, pkgs *fakePackageStore, ttl time.Duration) (*http.ServeMux, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", "paqtrack-test", ttl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	workflow := delivery.NewService(pkgs, &fakePhotoStore{}, &fakeAuditStore{}, logger)

	mux := http.NewServeMux()
	h := NewPackageHandler(pkgs, workflow)
	h.Register(mux)
	h.RegisterProtected(mux, middleware.RequireAgent(tokens))
	return mux, tokens
}

func bearerFor(t *testing.T, tokens *auth.TokenManager, agentID int64) string {
	t.Helper()
	token, err := tokens.Issue(agentID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func deliverRequest(t *testing.T, target, lat, lng string, photo []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if lat != "" {
		if err := mw.WriteField("lat", lat); err != nil {
			t.Fatalf("write lat: %v", err)
		}
	}
	if lng != "" {
		if err := mw.WriteField("lng", lng); err != nil {
			t.Fatalf("write lng: %v", err)
		}
	}
	if photo != nil {
		part, err := mw.CreateFormFile("photo", "proof.jpg")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(photo); err != nil {
			t.Fatalf("write photo: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodePackage(t *testing.T, body []byte) models.Package {
	t.Helper()
	var envelope struct {
		Data models.Package `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode package envelope: %v", err)
	}
	return envelope.Data
}

func TestDeliverPackage(t *testing.T) {
	pkgs := newFakePackageStore(pendingPackage(7, 3))
	mux, tokens := newPackageMux(t, pkgs, 30*time.Minute)

	req := deliverRequest(t, "/packages/7/deliver", "19.4", "-99.1", []byte("jpeg-bytes"))
	req.Header.Set("Authorization", bearerFor(t, tokens, 3))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body)
	}
	pkg := decodePackage(t, rec.Body.Bytes())
	if pkg.Status != models.StatusDelivered {
		t.Errorf("status = %q, want delivered", pkg.Status)
	}
	if pkg.PhotoURL == nil || pkg.DeliveredLat == nil || pkg.DeliveredLng == nil || pkg.DeliveredAt == nil {
		t.Fatalf("delivery fields not all set: %+v", pkg)
	}
	if *pkg.DeliveredLat != 19.4 || *pkg.DeliveredLng != -99.1 {
		t.Errorf("coordinates = (%v, %v), want (19.4, -99.1)", *pkg.DeliveredLat, *pkg.DeliveredLng)
	}
}

func TestDeliverPackageNotOwner(t *testing.T) {
	pkgs := newFakePackageStore(pendingPackage(7, 3))
	mux, tokens := newPackageMux(t, pkgs, 30*time.Minute)

	req := deliverRequest(t, "/packages/7/deliver", "19.4", "-99.1", []byte("jpeg-bytes"))
	req.Header.Set("Authorization", bearerFor(t, tokens, 5))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	pkg, err := pkgs.GetPackage(t.Context(), 7)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if pkg.Status != models.StatusPending {
		t.Errorf("package mutated by forbidden request: status %q", pkg.Status)
	}
}

func TestDeliverPackageNotFound(t *testing.T) {
	mux, tokens := newPackageMux(t, newFakePackageStore(), 30*time.Minute)

	req := deliverRequest(t, "/packages/999/deliver", "19.4", "-99.1", []byte("jpeg-bytes"))
	req.Header.Set("Authorization", bearerFor(t, tokens, 3))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeliverPackageExpiredToken(t *testing.T) {
	pkgs := newFakePackageStore(pendingPackage(7, 3))
	mux, tokens := newPackageMux(t, pkgs, -time.Second)

	req := deliverRequest(t, "/packages/7/deliver", "19.4", "-99.1", []byte("jpeg-bytes"))
	req.Header.Set("Authorization", bearerFor(t, tokens, 3))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	pkg, err := pkgs.GetPackage(t.Context(), 7)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if pkg.Status != models.StatusPending {
		t.Errorf("package mutated by unauthenticated request: status %q", pkg.Status)
	}
}

func TestDeliverPackageMissingFields(t *testing.T) {
	pkgs := newFakePackageStore(pendingPackage(7, 3))
	mux, tokens := newPackageMux(t, pkgs, 30*time.Minute)
	bearer := bearerFor(t, tokens, 3)

	cases := []struct {
		name string
		req  *http.Request
	}{
		{"missing lat", deliverRequest(t, "/packages/7/deliver", "", "-99.1", []byte("x"))},
		{"missing lng", deliverRequest(t, "/packages/7/deliver", "19.4", "", []byte("x"))},
		{"missing photo", deliverRequest(t, "/packages/7/deliver", "19.4", "-99.1", nil)},
		{"non-numeric lat", deliverRequest(t, "/packages/7/deliver", "north", "-99.1", []byte("x"))},
	}
	for _, tc := range cases {
		tc.req.Header.Set("Authorization", bearer)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, tc.req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", tc.name, rec.Code, http.StatusBadRequest)
		}
	}

	pkg, err := pkgs.GetPackage(t.Context(), 7)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if pkg.Status != models.StatusPending {
		t.Errorf("package mutated by invalid request: status %q", pkg.Status)
	}
}

func TestDeliverPackageOversizedPhoto(t *testing.T) {
	pkgs := newFakePackageStore(pendingPackage(7, 3))
	mux, tokens := newPackageMux(t, pkgs, 30*time.Minute)

	// One page past the cap: the upload must be rejected outright, never
	// confirmed with a truncated proof photo.
	oversized := bytes.Repeat([]byte("x"), 10<<20+4096)
	req := deliverRequest(t, "/packages/7/deliver", "19.4", "-99.1", oversized)
	req.Header.Set("Authorization", bearerFor(t, tokens, 3))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	pkg, err := pkgs.GetPackage(t.Context(), 7)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if pkg.Status != models.StatusPending || pkg.PhotoURL != nil {
		t.Errorf("package mutated by oversized upload: %+v", pkg)
	}
}

func TestDeliverPackagePhotoAtLimit(t *testing.T) {
	pkgs := newFakePackageStore(pendingPackage(7, 3))
	mux, tokens := newPackageMux(t, pkgs, 30*time.Minute)

	exact := bytes.Repeat([]byte("x"), 10<<20)
	req := deliverRequest(t, "/packages/7/deliver", "19.4", "-99.1", exact)
	req.Header.Set("Authorization", bearerFor(t, tokens, 3))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body)
	}
	if pkg := decodePackage(t, rec.Body.Bytes()); pkg.Status != models.StatusDelivered {
		t.Errorf("status = %q, want delivered", pkg.Status)
	}
}

func TestCreatePackageRejectsNegativeAgentID(t *testing.T) {
	pkgs := newFakePackageStore()
	mux, _ := newPackageMux(t, pkgs, 30*time.Minute)

	body := `{"description":"box of parts","address":"Av. Reforma 100","agent_id":-3}`
	req := httptest.NewRequest(http.MethodPost, "/packages", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestListPackagesScopedToCaller(t *testing.T) {
	pkgs := newFakePackageStore(pendingPackage(1, 3), pendingPackage(2, 3), pendingPackage(9, 5))
	mux, tokens := newPackageMux(t, pkgs, 30*time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/packages", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, 3))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var envelope struct {
		Data []models.Package `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("got %d packages, want 2", len(envelope.Data))
	}
	for _, p := range envelope.Data {
		if p.AgentID == nil || *p.AgentID != 3 {
			t.Errorf("package %d not scoped to agent 3", p.ID)
		}
	}
}

func TestHistoryRejectsBadDates(t *testing.T) {
	mux, tokens := newPackageMux(t, newFakePackageStore(), 30*time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/history?from=yesterday", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, 3))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHistoryReturnsDeliveredOnly(t *testing.T) {
	delivered := pendingPackage(2, 3)
	delivered.Status = models.StatusDelivered
	at := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	delivered.DeliveredAt = &at

	pkgs := newFakePackageStore(pendingPackage(1, 3), delivered)
	mux, tokens := newPackageMux(t, pkgs, 30*time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/history?from=2026-08-01&to=2026-08-31", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, 3))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var envelope struct {
		Data []models.Package `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].ID != 2 {
		t.Fatalf("history = %+v, want only package 2", envelope.Data)
	}
}
