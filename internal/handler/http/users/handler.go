package users_http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/skv43r/transaction-service/internal/app/users"
	"github.com/skv43r/transaction-service/internal/auth"
	"github.com/skv43r/transaction-service/internal/domain"
	"github.com/skv43r/transaction-service/internal/handler/http/httpx"
)

type UserHandler struct {
	service users.UserService
	logger  *zap.Logger
}

func NewUserHandler(s users.UserService, l *zap.Logger) *UserHandler {
	return &UserHandler{service: s, logger: l}
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	Username    string `json:"username" validate:"required"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type UserResponse struct {
	ID       int64           `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Balance  decimal.Decimal `json:"balance"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func toUserResponse(a *domain.Account) UserResponse {
	return UserResponse{ID: a.ID, Username: a.Username, Email: a.Email, Balance: a.Balance}
}

func (h *UserHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.service.Register(r.Context(), users.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUsernameTaken), errors.Is(err, domain.ErrEmailTaken):
			httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		default:
			h.writeUnexpected(w, "Failed to register user", err)
		}
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, toUserResponse(account))
}

func (h *UserHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			httpx.WriteError(w, "Incorrect username or password", http.StatusUnauthorized)
			return
		}
		h.writeUnexpected(w, "Failed to log in", err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, TokenResponse{AccessToken: token, TokenType: auth.TokenType})
}

func (h *UserHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := h.service.ChangePassword(r.Context(), users.ChangePasswordRequest{
		Username:    req.Username,
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			httpx.WriteError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidCredentials):
			httpx.WriteError(w, "Incorrect old password", http.StatusUnauthorized)
		default:
			h.writeUnexpected(w, "Failed to change password", err)
		}
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, MessageResponse{Message: "Password changed successfully"})
}

func (h *UserHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := httpx.ParsePage(r)
	if err != nil {
		httpx.WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	accounts, err := h.service.ListUsers(r.Context(), skip, limit)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPage) {
			httpx.WriteError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeUnexpected(w, "Failed to list users", err)
		return
	}

	resp := make([]UserResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, toUserResponse(&accounts[i]))
	}
	httpx.WriteJSON(w, h.logger, http.StatusOK, resp)
}

func (h *UserHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.logger.Warn("Invalid user id", zap.String("user_id_str", idStr), zap.Error(err))
		httpx.WriteError(w, "Invalid user id format", http.StatusBadRequest)
		return
	}

	account, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			httpx.WriteError(w, "User not found", http.StatusNotFound)
			return
		}
		h.writeUnexpected(w, "Failed to get user", err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, toUserResponse(account))
}

func (h *UserHandler) writeUnexpected(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, domain.ErrStoreUnavailable) || errors.Is(err, domain.ErrConcurrencyConflict) {
		h.logger.Warn(msg, zap.Error(err))
		httpx.WriteUnavailable(w, "Service temporarily unavailable", 1)
		return
	}
	h.logger.Error(msg, zap.Error(err))
	httpx.WriteError(w, "Internal server error", http.StatusInternalServerError)
}
