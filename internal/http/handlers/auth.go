package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/paqtrack/paqtrack-be/internal/auth"
	"github.com/paqtrack/paqtrack-be/internal/http/respond"
	"github.com/paqtrack/paqtrack-be/internal/models/dto"
	"github.com/paqtrack/paqtrack-be/internal/storage"
)

// AuthHandler owns the login and identity endpoints.
type AuthHandler struct {
	agents storage.AgentStore
	tokens *auth.TokenManager
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(agents storage.AgentStore, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{agents: agents, tokens: tokens}
}

// Register attaches the public login route to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /login", h.handleLogin)
}

// RegisterProtected attaches agent-scoped routes behind the bearer guard.
func (h *AuthHandler) RegisterProtected(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	mux.Handle("GET /me", guard(http.HandlerFunc(h.handleMe)))
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	agent, err := h.agents.FindAgentByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Same rejection as a wrong password; no user enumeration.
			respond.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		slog.Error("login: fetch agent failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch agent")
		return
	}
	if !auth.VerifyPassword(req.Password, agent.PasswordHash) {
		respond.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := h.tokens.Issue(agent.ID)
	if err != nil {
		slog.Error("login: issue token failed", "error", err)
		respond.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	respond.JSON(w, http.StatusOK, "login successful", dto.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		AgentID:     agent.ID,
		Name:        agent.Name,
	})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	agentID, ok := auth.AgentID(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", map[string]int64{"agent_id": agentID})
}
