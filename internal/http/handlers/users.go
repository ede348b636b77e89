package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// UserService is the slice of the authentication service the HTTP layer needs.
type UserService interface {
	Register(ctx context.Context, req user.CreateUserRequest) (user.PublicView, error)
	Login(ctx context.Context, req user.LoginRequest) (user.AuthResponse, error)
	GetByID(ctx context.Context, id string) (user.PublicView, error)
	GetAll(ctx context.Context) ([]user.PublicView, error)
	SetActive(ctx context.Context, id string, active bool) (user.PublicView, error)
}

type UsersHandler struct {
	svc UserService
	log *slog.Logger
}

func NewUsersHandler(svc UserService, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{svc: svc, log: log}
}

// POST /api/users/register
func (h *UsersHandler) Register(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	created, err := h.svc.Register(ctx.Request.Context(), req)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	RespondOK(ctx, http.StatusCreated, created)
}

// POST /api/users/login
func (h *UsersHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	resp, err := h.svc.Login(ctx.Request.Context(), req)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	RespondOK(ctx, http.StatusOK, resp)
}

// GET /api/users/profile
func (h *UsersHandler) Profile(ctx *gin.Context) {
	current, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Unauthorized")
		return
	}

	view, err := h.svc.GetByID(ctx.Request.Context(), current.ID)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	RespondOKWithETag(ctx, view)
}

// GET /api/users/:id
func (h *UsersHandler) GetUser(ctx *gin.Context) {
	id, ok := h.authorizeTarget(ctx)
	if !ok {
		return
	}

	view, err := h.svc.GetByID(ctx.Request.Context(), id)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	RespondOKWithETag(ctx, view)
}

// PATCH /api/users/:id/block
func (h *UsersHandler) Block(ctx *gin.Context) {
	id, ok := h.authorizeTarget(ctx)
	if !ok {
		return
	}

	view, err := h.svc.SetActive(ctx.Request.Context(), id, false)
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	RespondOK(ctx, http.StatusOK, view)
}

// GET /api/users
func (h *UsersHandler) List(ctx *gin.Context) {
	list, err := h.svc.GetAll(ctx.Request.Context())
	if err != nil {
		RespondServiceError(ctx, h.log, err)
		return
	}

	RespondOKWithETag(ctx, list)
}

// authorizeTarget applies the self-or-admin rule before any lookup so a
// non-admin cannot probe which ids exist.
func (h *UsersHandler) authorizeTarget(ctx *gin.Context) (string, bool) {
	current, ok := middlewares.CurrentUser(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Unauthorized")
		return "", false
	}

	id := ctx.Param("id")
	if !user.CanAccess(current, id) {
		RespondForbidden(ctx, "Forbidden")
		return "", false
	}

	return id, true
}
