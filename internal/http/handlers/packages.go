package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paqtrack/paqtrack-be/internal/auth"
	"github.com/paqtrack/paqtrack-be/internal/delivery"
	"github.com/paqtrack/paqtrack-be/internal/http/respond"
	"github.com/paqtrack/paqtrack-be/internal/models"
	"github.com/paqtrack/paqtrack-be/internal/models/dto"
	"github.com/paqtrack/paqtrack-be/internal/storage"
)

const (
	maxPhotoBytes = 10 << 20
	// Slack for the non-file form fields and multipart framing around the photo.
	maxDeliverBodyBytes = maxPhotoBytes + (1 << 20)
)

// PackageHandler exposes package listing, creation, delivery history, and the
// delivery-confirmation endpoint.
type PackageHandler struct {
	packages storage.PackageStore
	workflow *delivery.Service
}

// NewPackageHandler constructs the handler.
func NewPackageHandler(packages storage.PackageStore, workflow *delivery.Service) *PackageHandler {
	return &PackageHandler{packages: packages, workflow: workflow}
}

// Register attaches public package routes to the mux.
func (h *PackageHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /packages", h.handleCreate)
}

// RegisterProtected attaches agent-scoped package routes behind the bearer guard.
func (h *PackageHandler) RegisterProtected(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	mux.Handle("GET /packages", guard(http.HandlerFunc(h.handleList)))
	mux.Handle("GET /history", guard(http.HandlerFunc(h.handleHistory)))
	mux.Handle("PUT /packages/{id}/deliver", guard(http.HandlerFunc(h.handleDeliver)))
}

func (h *PackageHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePackageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.Address) == "" {
		respond.Error(w, http.StatusBadRequest, "description and address are required")
		return
	}
	if req.AgentID < 0 {
		respond.Error(w, http.StatusBadRequest, "agent_id must be a positive id")
		return
	}

	pkg := models.Package{
		Description: strings.TrimSpace(req.Description),
		Address:     strings.TrimSpace(req.Address),
	}
	if req.AgentID > 0 {
		pkg.AgentID = &req.AgentID
	}
	created, err := h.packages.CreatePackage(r.Context(), pkg)
	if err != nil {
		slog.Error("create package failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to create package")
		return
	}
	respond.JSON(w, http.StatusOK, "package created successfully", created)
}

func (h *PackageHandler) handleList(w http.ResponseWriter, r *http.Request) {
	agentID, ok := auth.AgentID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	pkgs, err := h.packages.ListPackagesByAgent(r.Context(), agentID)
	if err != nil {
		slog.Error("list packages failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to list packages")
		return
	}
	if pkgs == nil {
		pkgs = []models.Package{}
	}
	respond.JSON(w, http.StatusOK, "ok", pkgs)
}

func (h *PackageHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	agentID, ok := auth.AgentID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	from, err := parseDateParam(r.URL.Query().Get("from"), 0)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return
	}
	// The upper bound is exclusive midnight of the following day, so "to"
	// covers the whole named day.
	to, err := parseDateParam(r.URL.Query().Get("to"), 24*time.Hour)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
		return
	}

	pkgs, err := h.packages.ListDelivered(r.Context(), agentID, from, to)
	if err != nil {
		slog.Error("list delivery history failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to list delivery history")
		return
	}
	if pkgs == nil {
		pkgs = []models.Package{}
	}
	respond.JSON(w, http.StatusOK, "ok", pkgs)
}

func (h *PackageHandler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	agentID, ok := auth.AgentID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	packageID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid package id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDeliverBodyBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "photo exceeds the 10 MiB limit")
			return
		}
		respond.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	lat, err := strconv.ParseFloat(r.FormValue("lat"), 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "lat is required and must be numeric")
		return
	}
	lng, err := strconv.ParseFloat(r.FormValue("lng"), 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "lng is required and must be numeric")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()
	// Read one byte past the cap so an oversized photo is detected and
	// rejected instead of being confirmed with a truncated proof.
	photoBytes, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "failed to read photo")
		return
	}
	if len(photoBytes) > maxPhotoBytes {
		respond.Error(w, http.StatusRequestEntityTooLarge, "photo exceeds the 10 MiB limit")
		return
	}

	pkg, err := h.workflow.Confirm(r.Context(), packageID, agentID, lat, lng, photoBytes, delivery.RequestMeta{
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			respond.Error(w, http.StatusNotFound, "package not found")
		case errors.Is(err, delivery.ErrForbidden):
			respond.Error(w, http.StatusForbidden, "you cannot deliver this package")
		default:
			slog.Error("confirm delivery failed", "package_id", packageID, "error", err)
			respond.Error(w, http.StatusInternalServerError, "failed to confirm delivery")
		}
		return
	}
	respond.JSON(w, http.StatusOK, "package delivered", pkg)
}

func parseDateParam(value string, offset time.Duration) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	bound := day.Add(offset)
	return &bound, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
