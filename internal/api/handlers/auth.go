package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/api/middleware"
	"github.com/ledgermail/core/internal/apperrors"
	"github.com/ledgermail/core/internal/database/models"
	"github.com/ledgermail/core/internal/services"
	"github.com/ledgermail/core/internal/session"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthHandler handles authentication related requests
type AuthHandler struct {
	userService *services.UserService
	jwtManager  *middleware.JWTManager
	sessions    session.Store
	logService  *services.LogService
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService *services.UserService, jwtManager *middleware.JWTManager, sessions session.Store, logService *services.LogService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtManager:  jwtManager,
		sessions:    sessions,
		logService:  logService,
	}
}

// startSession opens a session for the user and sets the session cookie
func (h *AuthHandler) startSession(c *gin.Context, user *models.User) (string, error) {
	sess, err := h.sessions.Create(c.Request.Context(), user.ID, user.Username, user.Email)
	if err != nil {
		return "", err
	}

	token, err := h.jwtManager.GenerateToken(sess)
	if err != nil {
		h.sessions.Delete(c.Request.Context(), sess.ID)
		return "", err
	}

	middleware.SetSessionCookie(c, token, sess.ExpiresAt)
	return token, nil
}

// Login handles user login requests
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid request body", err.Error())
		return
	}

	user, err := h.userService.VerifyPassword(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if apperrors.Is(err, apperrors.KindAuthentication) {
			h.logService.LogLogin("", req.Username, c.ClientIP(), false, err)
		}
		respondError(c, err, "Login failed")
		return
	}

	token, err := h.startSession(c, user)
	if err != nil {
		respondError(c, apperrors.Storage("failed to start session", err), "Login failed")
		return
	}

	h.logService.LogLogin(user.ID, user.Username, c.ClientIP(), true, nil)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    UserResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		"token":   token,
	})
}

// Register handles user registration requests
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "Invalid user data", err.Error())
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Registration failed")
		return
	}

	token, err := h.startSession(c, user)
	if err != nil {
		respondError(c, apperrors.Storage("failed to start session", err), "Registration failed")
		return
	}

	h.logService.LogRegister(user.ID, user.Username, c.ClientIP())

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    UserResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		"token":   token,
	})
}

// Logout ends the current session, if any
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if sess, ok := middleware.GetSessionFromContext(c); ok {
		if err := h.sessions.Delete(c.Request.Context(), sess.ID); err != nil {
			respondError(c, apperrors.Storage("failed to end session", err), "Logout failed")
			return
		}
		h.logService.LogLogout(sess.UserID)
	}

	middleware.ClearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetCurrentUser returns the user of the current session
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	sess, ok := middleware.GetSessionFromContext(c)
	if !ok {
		respondError(c, apperrors.Authentication("Not authenticated"), "")
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), sess.UserID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			respondError(c, apperrors.Authentication("Not authenticated"), "")
			return
		}
		respondError(c, err, "Failed to load user")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": UserResponse{ID: user.ID, Username: user.Username, Email: user.Email},
	})
}
