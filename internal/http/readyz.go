package http

import (
	"net/http"
	"time"

	"github.com/buildstream-io/buildstream/internal/store"
	"github.com/buildstream-io/buildstream/pkg/httpx"
)

// ReadyzHandler verifies the vault can be opened before reporting ready.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{Vault: "ok"}
		overallStatus := "ok"
		statusCode := http.StatusOK

		// Check that the credential vault is decryptable
		if err := st.Ping(r.Context()); err != nil {
			checks.Vault = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
