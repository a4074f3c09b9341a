package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSessionTTL = 8 * time.Hour
	minPasswordLength = 6
)

type AuthHandler struct {
	store  storage.Store
	secret string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(store storage.Store, secret string, ttl time.Duration, logger *slog.Logger) *AuthHandler {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthHandler{store: store, secret: secret, ttl: ttl, logger: logger, now: time.Now}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	admin, err := h.store.GetAdmin(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusBadRequest, "admin user not found")
			return
		}
		writeAppErr(w, r, h.logger, "login", apperr.Storage("load admin", err))
		return
	}
	if !verifyPassword(admin.PasswordHash, req.Password) {
		h.logger.Warn("admin login rejected", "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusBadRequest, "incorrect password")
		return
	}

	token, err := auth.SignHS256(auth.NewClaims(admin.ID, auth.RoleAdmin, h.now(), h.ttl), h.secret)
	if err != nil {
		writeAppErr(w, r, h.logger, "login", apperr.Storage("sign token", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, "new password must be at least 6 characters")
		return
	}

	admin, err := h.store.GetAdmin(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "admin user not found")
			return
		}
		writeAppErr(w, r, h.logger, "change password", apperr.Storage("load admin", err))
		return
	}
	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeAppErr(w, r, h.logger, "change password", apperr.Storage("hash password", err))
		return
	}
	if err := h.store.UpdateAdminPassword(r.Context(), admin.ID, hash); err != nil {
		writeAppErr(w, r, h.logger, "change password", apperr.Storage("update password", err))
		return
	}
	actor := ""
	if claims, ok := AdminClaimsFromContext(r.Context()); ok {
		actor = claims.Subject
	}
	h.logger.Info("admin password changed", "admin_id", admin.ID, "actor", actor)
	httpx.WriteJSON(w, http.StatusOK, msgResponse{Msg: "password changed"})
}

// SeedAdmin creates the administrator with password when none exists yet.
func SeedAdmin(ctx context.Context, store storage.Store, password string, logger *slog.Logger) error {
	_, err := store.GetAdmin(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if len(password) < minPasswordLength {
		return errors.New("DEFAULT_ADMIN_PASSWORD must be at least 6 characters")
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	admin, err := store.CreateAdmin(ctx, hash)
	if err != nil {
		return err
	}
	logger.Info("admin user seeded", "admin_id", admin.ID)
	return nil
}

type claimsKey struct{}

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "missing token")
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token format")
				return
			}
			claims, err := auth.ParseAndVerifyHS256(strings.TrimSpace(token), secret)
			if err != nil || claims.Role != auth.RoleAdmin {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func AdminClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
