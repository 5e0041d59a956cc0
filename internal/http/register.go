package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/buildstream-io/buildstream/internal/domain"
	"github.com/buildstream-io/buildstream/internal/service"
	"github.com/buildstream-io/buildstream/internal/store"
	"github.com/buildstream-io/buildstream/pkg/httpx"
	"github.com/buildstream-io/buildstream/pkg/slogx"
)

// RegisterRequest is the JSON body accepted by POST /auth/register.
type RegisterRequest struct {
	ClientName  string   `json:"client_name"`
	Description string   `json:"description,omitempty"`
	Scopes      []string `json:"allowed_scopes,omitempty"`
}

// RegisterResponse carries the freshly minted credentials. The client_secret
// field is returned exactly once and is never retrievable afterwards.
type RegisterResponse struct {
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret"`
	ClientName    string   `json:"client_name"`
	AllowedScopes []string `json:"allowed_scopes"`
	CreatedAt     string   `json:"created_at"`
	ExpiresAt     *string  `json:"expires_at"`
}

// RegisterHandler serves POST /auth/register. The endpoint is gated by HTTP
// Basic auth against the admin registration credential held in the vault.
type RegisterHandler struct {
	RegistrationService *service.RegistrationService
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	username, password, ok := r.BasicAuth()
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="client registration"`)
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_client", "Basic authentication required")
		return
	}

	if err := h.RegistrationService.VerifyRegistrationCredentials(ctx, username, password); err != nil {
		if errors.Is(err, service.ErrServiceUnavailable) {
			httpx.WriteError(w, http.StatusServiceUnavailable,
				"temporarily_unavailable", "Registration service is unavailable")
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="client registration"`)
		httpx.WriteError(w, http.StatusUnauthorized,
			"invalid_client", "Invalid registration credentials")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "Invalid JSON in request body")
		return
	}

	if msg := validateRegisterRequest(&req); msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	client, err := h.RegistrationService.RegisterClient(ctx, req.ClientName, req.Description, req.Scopes)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrClientExists):
			httpx.WriteError(w, http.StatusConflict,
				"client_exists", "A client with this name is already registered")
		case errors.Is(err, store.ErrMaxClientsReached):
			httpx.WriteError(w, http.StatusConflict,
				"max_clients_reached", "The maximum number of active clients has been reached")
		case errors.Is(err, store.ErrLockTimeout):
			httpx.WriteError(w, http.StatusServiceUnavailable,
				"temporarily_unavailable", "The credential store is busy, try again")
		default:
			log.Error("failed to register client", "error", err, "client_name", req.ClientName)
			httpx.WriteError(w, http.StatusInternalServerError,
				"server_error", "Failed to register client")
		}
		return
	}

	var expiresAt *string
	if client.ExpiresAt != nil {
		s := client.ExpiresAt.Format(time.RFC3339)
		expiresAt = &s
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, RegisterResponse{
		ClientID:      client.ClientID,
		ClientSecret:  client.ClientSecret,
		ClientName:    client.ClientName,
		AllowedScopes: client.AllowedScopes,
		CreatedAt:     client.CreatedAt.Format(time.RFC3339),
		ExpiresAt:     expiresAt,
	})
}

func validateRegisterRequest(req *RegisterRequest) string {
	req.ClientName = strings.TrimSpace(req.ClientName)
	if req.ClientName == "" {
		return "client_name is required"
	}
	if !domain.ValidClientName(req.ClientName) {
		return "client_name must start with a letter or digit and contain only letters, digits, underscores and hyphens (max 64 characters)"
	}
	if len(req.Description) > domain.MaxDescriptionLength {
		return "description must be at most 256 characters"
	}
	for _, scope := range req.Scopes {
		if !domain.ValidScopes[scope] {
			return "unknown scope: " + scope
		}
	}
	return ""
}
