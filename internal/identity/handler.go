package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lablink/lablink/internal/platform/httpx"
	"github.com/lablink/lablink/internal/shared"
	"github.com/lablink/lablink/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/callback", h.handleCallback)
	r.Post("/complete-profile", h.handleCompleteProfile)
	r.Post("/verify-email", h.handleVerifyEmail)
	r.Post("/password-strength", h.handlePasswordStrength)
	r.Get("/me", h.handleMe)
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"first_name" validate:"required,min=2,max=50"`
	LastName    string `json:"last_name" validate:"required,min=2,max=50"`
	Role        string `json:"role" validate:"required"`
	Department  string `json:"department"`
	EmployeeID  string `json:"employee_id" validate:"omitempty,min=3,max=20"`
	StudentID   string `json:"student_id" validate:"omitempty,min=3,max=20"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type principalRequest struct {
	ID            string            `json:"id" validate:"required"`
	Email         string            `json:"email" validate:"required,email"`
	Provider      string            `json:"provider"`
	EmailVerified bool              `json:"email_verified"`
	Metadata      map[string]string `json:"metadata"`
}

type completeProfileRequest struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=50"`
	LastName    string `json:"last_name" validate:"required,min=2,max=50"`
	Role        string `json:"role" validate:"required"`
	Department  string `json:"department"`
	EmployeeID  string `json:"employee_id" validate:"omitempty,min=3,max=20"`
	StudentID   string `json:"student_id" validate:"omitempty,min=3,max=20"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

type profileResponse struct {
	Profile Profile     `json:"profile"`
	Access  AccessState `json:"access"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msg)
		return
	}
	role, ok := users.ParseRole(req.Role)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role")
		return
	}

	profile, err := h.service.Register(r.Context(), RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        role,
		Department:  req.Department,
		EmployeeID:  req.EmployeeID,
		StudentID:   req.StudentID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		if errors.Is(err, ErrWeakPassword) || errors.Is(err, ErrRoleIdentifierMissing) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("register failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, profileResponse{Profile: profile, Access: AccessFor(&profile)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msg)
		return
	}

	profile, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetUser(profile.ID)
	}
	httpx.JSON(w, http.StatusOK, profileResponse{Profile: profile, Access: AccessFor(&profile)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// handleCallback accepts the authenticated principal relayed after an OAuth
// handshake and reconciles it into an application profile.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	var req principalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msg)
		return
	}

	profile, err := h.service.EnsureProfile(r.Context(), Principal{
		ID:            req.ID,
		Email:         req.Email,
		Provider:      req.Provider,
		EmailVerified: req.EmailVerified,
		Metadata:      req.Metadata,
	})
	if err != nil {
		h.logger.Error("oauth callback failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetUser(profile.ID)
	}
	httpx.JSON(w, http.StatusOK, profileResponse{Profile: profile, Access: AccessFor(&profile)})
}

func (h *Handler) handleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in first")
		return
	}

	var req completeProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msg)
		return
	}
	role, ok := users.ParseRole(req.Role)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role")
		return
	}

	err := h.service.CompleteProfile(r.Context(), sess.User(), ProfileCompletion{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        role,
		Department:  req.Department,
		EmployeeID:  req.EmployeeID,
		StudentID:   req.StudentID,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		if errors.Is(err, ErrRoleIdentifierMissing) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("complete profile failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	profile, err := h.service.ProfileByID(r.Context(), sess.User())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profileResponse{Profile: profile, Access: AccessFor(&profile)})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in first")
		return
	}
	if err := h.service.VerifyEmail(r.Context(), sess.User()); err != nil {
		h.logger.Error("verify email failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *Handler) handlePasswordStrength(w http.ResponseWriter, r *http.Request) {
	var req passwordStrengthRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	report := PasswordStrength(req.Password)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"score":    report.Score,
		"label":    StrengthLabel(report.Score),
		"feedback": report.Feedback,
		"valid":    report.Valid,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"profile": nil,
			"access":  AccessFor(nil),
		})
		return
	}
	profile, err := h.service.ProfileByID(r.Context(), sess.User())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profileResponse{Profile: profile, Access: AccessFor(&profile)})
}

func (h *Handler) validate(form any) (string, bool) {
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldErrs[0].Error(), false
		}
		return "invalid request", false
	}
	return "", true
}
