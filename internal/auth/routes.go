package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the admin login and session endpoints under
// /api/admin. It returns the guard used for the protected routes so callers
// can mount further admin-only routes with the same middleware.
func RegisterRoutes(r chi.Router, svc *Service) func(http.Handler) http.Handler {
	guard := RequireAdmin(svc)

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/login", handleLogin(svc))

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Get("/verify", handleVerify())
			r.Post("/logout", handleLogout(svc))
			r.Get("/session", handleSession())
			r.Put("/session/editing", handleSetEditing(svc))
		})
	})
	return guard
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func handleLogin(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in credentials
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			json.NewDecoder(r.Body).Decode(&in)
		} else {
			in.Email, in.Password = r.FormValue("email"), r.FormValue("password")
		}
		if strings.TrimSpace(in.Email) == "" || in.Password == "" {
			writeError(w, http.StatusBadRequest, "Please provide email and password")
			return
		}

		res, err := svc.Login(r.Context(), in.Email, in.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		if err != nil {
			zap.L().Error("admin login failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Server error during login")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Login successful",
			"token":   res.Token,
			"admin":   res.Admin,
		})
	}
}

func handleVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"admin":   Admin{ID: sess.AdminID, Email: sess.Email, Name: sess.Name},
		})
	}
}

func handleLogout(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		if err := svc.Logout(r.Context(), *sess); err != nil {
			zap.L().Error("admin logout failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Server error during logout")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
	}
}

func handleSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": sess})
	}
}

func handleSetEditing(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			ServiceID string `json:"service_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "Request body must be JSON")
			return
		}

		sess, _ := SessionFromContext(r.Context())
		updated, err := svc.SetEditing(r.Context(), sess.ID, strings.TrimSpace(in.ServiceID))
		if errors.Is(err, ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token. Please login again.")
			return
		}
		if err != nil {
			zap.L().Error("updating admin session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": updated})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
