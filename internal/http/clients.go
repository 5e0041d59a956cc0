package http

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/buildstream-io/buildstream/internal/service"
	"github.com/buildstream-io/buildstream/pkg/httpx"
	"github.com/buildstream-io/buildstream/pkg/slogx"
)

// ClientInfo is the public view of a registered client. Secret hashes are
// never exposed.
type ClientInfo struct {
	ClientID      string   `json:"client_id"`
	ClientName    string   `json:"client_name"`
	Description   string   `json:"description,omitempty"`
	AllowedScopes []string `json:"allowed_scopes"`
	CreatedAt     string   `json:"created_at"`
	IsActive      bool     `json:"is_active"`
}

// ListClientsResponse wraps the client listing.
type ListClientsResponse struct {
	Clients []ClientInfo `json:"clients"`
}

// ClientsHandler serves GET /auth/clients, gated by the same Basic auth as
// registration.
type ClientsHandler struct {
	RegistrationService *service.RegistrationService
}

func (h *ClientsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	clients, err := h.RegistrationService.ListClients(ctx)
	if err != nil {
		log.Error("failed to list clients", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "Failed to list clients")
		return
	}

	infos := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, ClientInfo{
			ClientID:      c.ClientID,
			ClientName:    c.ClientName,
			Description:   c.Description,
			AllowedScopes: c.AllowedScopes,
			CreatedAt:     c.CreatedAt.Format(time.RFC3339),
			IsActive:      c.IsActive,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ClientName < infos[j].ClientName })

	httpx.WriteJSON(w, http.StatusOK, ListClientsResponse{Clients: infos})
}
