package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/authcore/internal/auth"
	"github.com/charlesng35/authcore/internal/middleware"
	"github.com/charlesng35/authcore/pkg/errors"
	"github.com/charlesng35/authcore/pkg/response"
)

// AuthHandler exposes the account lifecycle: registration, login, refresh, logout,
// email verification and password reset.
type AuthHandler struct {
	svc *iauth.Service
}

func NewAuthHandler(svc *iauth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type tokenResponse struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	TokenType    string            `json:"token_type"`
	ExpiresIn    int64             `json:"expires_in"`
	User         *iauth.PublicUser `json:"user,omitempty"`
}

func newTokenResponse(pair iauth.TokenPair, user *iauth.PublicUser) tokenResponse {
	return tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
		User:         user,
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req iauth.RegisterInput
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.Register(requestContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, "User registered successfully.", user)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req iauth.LoginInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Login(requestContext(c), req, clientMeta(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Raw(c, http.StatusOK, newTokenResponse(result.Tokens, &result.User))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		response.Error(c, errors.NewValidation(map[string][]string{
			"refresh_token": {"The refresh token field is required."},
		}))
		return
	}

	pair, err := h.svc.Refresh(requestContext(c), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Raw(c, http.StatusOK, newTokenResponse(pair, nil))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.CtxAccessTokenKey)
	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.svc.Logout(requestContext(c), token); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Successfully logged out.", nil)
}

// GET|POST /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.CurrentUser(requestContext(c), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Authenticated user.", user)
}

// GET /api/auth/email/verify/:id/:hash
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	if err := h.svc.VerifyEmail(requestContext(c), c.Param("id"), c.Param("hash")); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Email verified successfully.", nil)
}

// POST /api/auth/email/resend
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	if err := h.svc.ResendVerification(requestContext(c), currentUserID(c)); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Verification link sent.", nil)
}

// POST /api/auth/password/forgot
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req iauth.ForgotPasswordInput
	if !bindJSON(c, &req) {
		return
	}

	if err := h.svc.ForgotPassword(requestContext(c), req); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "If the email is registered, a password reset link has been sent.", nil)
}

// POST /api/auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req iauth.ResetPasswordInput
	if !bindJSON(c, &req) {
		return
	}

	if err := h.svc.ResetPassword(requestContext(c), req); err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, "Password has been reset successfully.", nil)
}
