package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"mollik/internal/middleware"
	"mollik/internal/models"
	"mollik/internal/session"
)

// totpIssuer labels the account in authenticator apps.
const totpIssuer = "Mollik"

const minPasswordLen = 8

// Users is the account store used by the auth handlers.
type Users interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, email, password, displayName string, role models.Role) (*models.User, error)
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
	CheckPassword(user *models.User, password string) bool
}

// Sessions creates and mutates cookie sessions.
type Sessions interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	Update(ctx context.Context, r *http.Request, data *session.Data) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Auth groups the registration, login and two-factor handlers.
type Auth struct {
	sessions Sessions
	users    Users
}

// NewAuth creates a new Auth handler group.
func NewAuth(sessions Sessions, users Users) *Auth {
	return &Auth{sessions: sessions, users: users}
}

// Two-factor states reported after login.
const (
	twoFactorNone   = "none"
	twoFactorSetup  = "setup"
	twoFactorVerify = "verify"
)

type authResponse struct {
	User      *models.User `json:"user"`
	TwoFactor string       `json:"two_factor"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Register serves POST /api/auth/register. New accounts are readers and
// are signed in immediately.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validateRegistration(req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.Create(r.Context(), req.Email, req.Password, req.DisplayName, models.RoleReader)
	if errors.Is(err, models.ErrConflict) {
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: "email already registered"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	slog.Info("user registered", "user_id", user.ID)

	if err := a.startSession(r.Context(), w, user); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, authResponse{User: user, TwoFactor: twoFactorNone})
}

func validateRegistration(req registerRequest) error {
	if req.Email == "" || !strings.Contains(req.Email, "@") || len(req.Email) > 254 {
		return fmt.Errorf("a valid email is required: %w", models.ErrInvalidInput)
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLen, models.ErrInvalidInput)
	}
	if req.DisplayName == "" || utf8.RuneCountInString(req.DisplayName) > 100 {
		return fmt.Errorf("display name must be 1-100 characters: %w", models.ErrInvalidInput)
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login serves POST /api/auth/login. Staff sessions start untrusted and
// must pass the TOTP step before reaching the admin API.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.FindByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		writeError(w, r, err)
		return
	}
	if user == nil || !a.users.CheckPassword(user, req.Password) {
		writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "invalid email or password", LoginRequired: true})
		return
	}

	if err := a.startSession(r.Context(), w, user); err != nil {
		writeError(w, r, err)
		return
	}

	state := twoFactorNone
	switch {
	case user.Needs2FASetup():
		state = twoFactorSetup
	case user.Needs2FA():
		state = twoFactorVerify
	}
	slog.Info("user logged in", "user_id", user.ID, "two_factor", state)
	writeJSON(w, r, http.StatusOK, authResponse{User: user, TwoFactor: state})
}

func (a *Auth) startSession(ctx context.Context, w http.ResponseWriter, user *models.User) error {
	_, err := a.sessions.Create(ctx, w, &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		TwoFADone:   !user.Needs2FA(),
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// Logout serves POST /api/auth/logout.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me serves GET /api/auth/me.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		writeError(w, r, models.ErrUnauthenticated)
		return
	}
	writeJSON(w, r, http.StatusOK, sess)
}

type setupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
	QRCode string `json:"qr_png_base64"`
}

// TwoFASetup serves POST /api/auth/2fa/setup. It issues a fresh TOTP
// secret for a staff account that has not enrolled yet.
func (a *Auth) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		writeError(w, r, models.ErrUnauthenticated)
		return
	}
	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !user.Needs2FA() {
		writeError(w, r, fmt.Errorf("2fa setup: %w", models.ErrUnauthorized))
		return
	}
	if user.TOTPEnabled {
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: "two-factor already enabled"})
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: totpIssuer, AccountName: user.Email})
	if err != nil {
		writeError(w, r, fmt.Errorf("totp generate: %w", err))
		return
	}
	if err := a.users.SetTOTPSecret(r.Context(), user.ID, key.Secret()); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := enrollment(key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func enrollment(key *otp.Key) (setupResponse, error) {
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		return setupResponse{}, fmt.Errorf("qr encode: %w", err)
	}
	return setupResponse{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: base64.StdEncoding.EncodeToString(png),
	}, nil
}

type verifyRequest struct {
	Code string `json:"code"`
}

// TwoFAVerify serves POST /api/auth/2fa/verify. A valid code enables
// TOTP on first use and marks the session as trusted.
func (a *Auth) TwoFAVerify(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		writeError(w, r, models.ErrUnauthenticated)
		return
	}
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if user.TOTPSecret == nil {
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: "two-factor setup required"})
		return
	}
	if !totp.Validate(strings.TrimSpace(req.Code), *user.TOTPSecret) {
		writeError(w, r, fmt.Errorf("invalid code: %w", models.ErrInvalidInput))
		return
	}

	if !user.TOTPEnabled {
		if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
			writeError(w, r, err)
			return
		}
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		writeError(w, r, fmt.Errorf("2fa verify: %w", err))
		return
	}
	slog.Info("two-factor verified", "user_id", user.ID)
	writeJSON(w, r, http.StatusOK, sess)
}
