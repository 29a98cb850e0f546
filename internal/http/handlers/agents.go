package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/paqtrack/paqtrack-be/internal/auth"
	"github.com/paqtrack/paqtrack-be/internal/http/respond"
	"github.com/paqtrack/paqtrack-be/internal/models"
	"github.com/paqtrack/paqtrack-be/internal/models/dto"
	"github.com/paqtrack/paqtrack-be/internal/storage"
)

// AgentHandler exposes agent listing and registration.
type AgentHandler struct {
	agents storage.AgentStore
}

// NewAgentHandler constructs the handler.
func NewAgentHandler(agents storage.AgentStore) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// Register attaches agent routes to the mux.
func (h *AgentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /agents", h.handleList)
	mux.HandleFunc("POST /agents", h.handleCreate)
}

func (h *AgentHandler) handleList(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.ListAgents(r.Context())
	if err != nil {
		slog.Error("list agents failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to list agents")
		return
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	respond.JSON(w, http.StatusOK, "ok", agents)
}

func (h *AgentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validateAgent(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("hash password failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	created, err := h.agents.CreateAgent(r.Context(), models.Agent{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: passwordHash,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrAlreadyExists):
			respond.Error(w, http.StatusConflict, "agent already exists")
		default:
			slog.Error("create agent failed", "error", err)
			respond.Error(w, http.StatusInternalServerError, "failed to create agent")
		}
		return
	}

	respond.JSON(w, http.StatusOK, "agent created successfully", created)
}

func validateAgent(req dto.CreateAgentRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return errors.New("name and email are required")
	}
	if len(req.Password) < 8 || !utf8.ValidString(req.Password) {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
