package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// TokenResponse carries an access token handed out by the token service.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Health endpoints

// handleHealth returns a liveness signal.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports readiness of the backing stores.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion returns the running version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Install flow

// handleBeginInstall starts an installation flow and redirects the browser
// to the platform installer.
func (s *Server) handleBeginInstall(w http.ResponseWriter, r *http.Request) {
	resp, err := s.installService.BeginInstall(r.Context(), driving.BeginInstallRequest{
		TenantID:  r.URL.Query().Get("tenant_id"),
		ReturnURL: r.URL.Query().Get("return_url"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start install")
		return
	}

	http.Redirect(w, r, resp.InstallerURL, http.StatusFound)
}

// handleInstallCallback consumes the platform's installation callback,
// registers the connection, and sends the browser back where it came from.
func (s *Server) handleInstallCallback(w http.ResponseWriter, r *http.Request) {
	resp, err := s.installService.CompleteInstall(r.Context(), driving.CompleteInstallRequest{
		Token:      r.URL.Query().Get("state"),
		InstanceID: r.URL.Query().Get("instance_id"),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPendingInstallInvalid):
			writeError(w, http.StatusBadRequest, "install state is invalid or expired")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "missing instance_id")
		default:
			writeError(w, http.StatusInternalServerError, "failed to complete install")
		}
		return
	}

	if resp.ReturnURL != "" {
		http.Redirect(w, r, resp.ReturnURL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Connection management

// handleListConnections lists all connections as summaries.
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.connectionService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list connections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": summaries})
}

// handleGetConnection returns one connection summary.
func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	summary, err := s.connectionService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "connection not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get connection")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleDeleteConnection removes a connection.
func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.connectionService.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "connection not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete connection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleTestConnection forces a token fetch to verify the installation.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if err := s.connectionService.TestConnection(r.Context(), r.PathValue("id")); err != nil {
		writeTokenError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetAccessToken hands out a currently-valid access token.
func (s *Server) handleGetAccessToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.tokenService.GetValidAccessToken(r.Context(), r.PathValue("id"))
	if err != nil {
		writeTokenError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token})
}

// writeTokenError maps token lifecycle error kinds to HTTP statuses.
func writeTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "connection not found")
	case errors.Is(err, domain.ErrReauthorizationRequired):
		writeError(w, http.StatusConflict, "reauthorization required: re-run the install flow")
	case errors.Is(err, domain.ErrTokenExchangeFailed):
		writeError(w, http.StatusBadGateway, "token exchange failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
