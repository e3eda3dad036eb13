package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/lablink/lablink/internal/platform/httpx"
	"github.com/lablink/lablink/internal/shared"
)

// maxImportSize bounds uploaded CSV files.
const maxImportSize = 5 << 20

// RoleDirectory resolves the role of the signed-in account for the
// authorization gate.
type RoleDirectory interface {
	RoleFor(ctx context.Context, id string) (Role, error)
}

// Handler manages user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	directory RoleDirectory
	validator *validator.Validate
	exports   singleflight.Group
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, directory RoleDirectory) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		directory: directory,
		validator: validator.New(),
	}
}

// MountRoutes registers user administration routes. Everything is gated to
// administrator roles.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.requireAdmin)
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)
	r.Get("/stats", h.stats)
	r.Get("/export", h.exportUsers)
	r.Get("/template", h.downloadTemplate)
	r.Post("/import", h.importUsers)
	r.Get("/{id}", h.getUser)
	r.Put("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
	r.Post("/{id}/activate", h.setActive(true))
	r.Post("/{id}/deactivate", h.setActive(false))
	r.Post("/{id}/approve", h.approveUser)
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in first")
			return
		}
		role, err := h.directory.RoleFor(r.Context(), sess.User())
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "unknown account")
			return
		}
		if role != RoleAdmin && role != RoleSuperAdmin {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "user management requires an administrator role")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userPayload struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	Role                  string     `json:"role"`
	Department            string     `json:"department,omitempty"`
	EmployeeID            string     `json:"employee_id,omitempty"`
	StudentID             string     `json:"student_id,omitempty"`
	PhoneNumber           string     `json:"phone_number,omitempty"`
	IsActive              bool       `json:"is_active"`
	EmailVerified         bool       `json:"email_verified"`
	RegistrationCompleted bool       `json:"registration_completed"`
	PendingApproval       bool       `json:"pending_approval"`
	CreatedAt             string     `json:"created_at"`
	LastLogin             *string    `json:"last_login"`
}

type createUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"first_name" validate:"required,min=2,max=50"`
	LastName    string `json:"last_name" validate:"required,min=2,max=50"`
	Role        string `json:"role" validate:"required"`
	Department  string `json:"department"`
	EmployeeID  string `json:"employee_id" validate:"omitempty,min=3,max=20"`
	StudentID   string `json:"student_id" validate:"omitempty,min=3,max=20"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
	IsActive    *bool  `json:"is_active"`
}

type updateUserRequest struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=50"`
	LastName    string `json:"last_name" validate:"required,min=2,max=50"`
	Role        string `json:"role" validate:"required"`
	Department  string `json:"department"`
	EmployeeID  string `json:"employee_id" validate:"omitempty,min=3,max=20"`
	StudentID   string `json:"student_id" validate:"omitempty,min=3,max=20"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,e164"`
	IsActive    bool   `json:"is_active"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	payloads := make([]userPayload, 0, len(page.Users))
	for _, u := range page.Users {
		payloads = append(payloads, h.toPayload(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users":      payloads,
		"pagination": page.Pagination,
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toPayload(*user))
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msg)
		return
	}
	role, ok := ParseRole(req.Role)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	user, err := h.service.Create(r.Context(), User{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        role,
		Department:  req.Department,
		EmployeeID:  req.EmployeeID,
		StudentID:   req.StudentID,
		PhoneNumber: req.PhoneNumber,
		IsActive:    active,
	})
	if err != nil {
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", rowErr.Error())
			return
		}
		h.logger.Error("create user failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toPayload(user))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req updateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if msg, ok := h.validate(req); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", msg)
		return
	}
	role, ok := ParseRole(req.Role)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role")
		return
	}

	err = h.service.Update(r.Context(), User{
		ID:          id,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Role:        role,
		Department:  req.Department,
		EmployeeID:  req.EmployeeID,
		StudentID:   req.StudentID,
		PhoneNumber: req.PhoneNumber,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.logger.Error("update user failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
			return
		}
		if err := h.service.SetActive(r.Context(), id, active); err != nil {
			httpx.RespondError(w, err)
			return
		}
		status := "deactivated"
		if active {
			status = "activated"
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

func (h *Handler) approveUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	if err := h.service.Approve(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotPendingApproval) {
			httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// importUsers accepts a CSV upload, either as a multipart "file" part or as
// a raw text/csv body.
func (h *Handler) importUsers(w http.ResponseWriter, r *http.Request) {
	csvText, err := readImportBody(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	summary, err := h.service.ImportCSV(r.Context(), csvText)
	if err != nil {
		var headerErr *HeaderError
		var rowErr *RowError
		switch {
		case errors.As(err, &headerErr), errors.As(err, &rowErr), errors.Is(err, ErrEmptyBatch):
			httpx.Problem(w, http.StatusBadRequest, "Import Failed", err.Error())
		default:
			h.logger.Error("import users failed", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// exportUsers streams the filtered listing as a CSV download. Concurrent
// identical requests are collapsed into one build.
func (h *Handler) exportUsers(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)
	key := fmt.Sprintf("%s|%s|%s|%s", filter.Search, filter.Role, filter.Status, filter.Department)

	// The build runs detached from the winning request so a cancelled
	// caller cannot feed context.Canceled to the collapsed followers.
	resultChan := h.exports.DoChan(key, func() (any, error) {
		return h.service.ExportCSV(context.WithoutCancel(r.Context()), filter)
	})

	select {
	case <-r.Context().Done():
		return
	case res := <-resultChan:
		if res.Err != nil {
			h.logger.Error("export users failed", slog.Any("error", res.Err))
			httpx.RespondError(w, res.Err)
			return
		}
		filename := "users-export-" + h.service.now().Format("2006-01-02") + ".csv"
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		_, _ = io.WriteString(w, res.Val.(string))
	}
}

func (h *Handler) downloadTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="user-import-template.csv"`)
	_, _ = io.WriteString(w, h.service.Template())
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("user stats failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) toPayload(u User) userPayload {
	payload := userPayload{
		ID:                    u.ID.String(),
		Email:                 u.Email,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		Role:                  string(u.Role),
		Department:            u.Department,
		EmployeeID:            u.EmployeeID,
		StudentID:             u.StudentID,
		PhoneNumber:           u.PhoneNumber,
		IsActive:              u.IsActive,
		EmailVerified:         u.EmailVerified,
		RegistrationCompleted: u.RegistrationCompleted,
		PendingApproval:       NeedsApproval(u, h.service.now()),
		CreatedAt:             u.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if u.LastLogin != nil {
		formatted := u.LastLogin.Format("2006-01-02T15:04:05Z07:00")
		payload.LastLogin = &formatted
	}
	return payload
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

func filterFromQuery(r *http.Request) ListFilter {
	q := r.URL.Query()
	filter := ListFilter{
		Search:     q.Get("q"),
		Status:     q.Get("status"),
		Department: q.Get("department"),
	}
	if role, ok := ParseRole(q.Get("role")); ok {
		filter.Role = role
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(q.Get("per_page")); err == nil {
		filter.PerPage = perPage
	}
	return filter
}

func readImportBody(r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxImportSize)
	mediaType := r.Header.Get("Content-Type")
	if len(mediaType) >= 19 && mediaType[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			return "", errors.New("invalid multipart upload")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", errors.New(`multipart upload requires a "file" part`)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", errors.New("failed to read uploaded file")
		}
		return string(data), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", errors.New("failed to read request body")
	}
	return string(data), nil
}
