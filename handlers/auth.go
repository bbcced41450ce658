package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/middleware"
	"github.com/Topaz-Oz/Lience-Plate-Detect/models"
	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users       store.UserStore
	authService *services.AuthService
}

func NewAuthHandler(users store.UserStore, authService *services.AuthService) *AuthHandler {
	return &AuthHandler{users: users, authService: authService}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func invalidCredentials() *services.Error {
	return &services.Error{Kind: services.KindAuthentication, Err: errors.New("invalid credentials")}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "%v", err)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	user := models.User{Email: req.Email, Password: hash, Name: req.Name}
	if err := h.users.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(c, &services.Error{Kind: services.KindConflict, Err: errors.New("email already registered")})
			return
		}
		respondError(c, services.PersistenceError(err))
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "%v", err)
		return
	}

	user, err := h.users.FindUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, invalidCredentials())
			return
		}
		respondError(c, services.PersistenceError(err))
		return
	}

	if !user.IsActive || !h.authService.CheckPassword(user.Password, req.Password) {
		respondError(c, invalidCredentials())
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	if err := h.users.TouchLogin(c.Request.Context(), user.ID, now); err != nil {
		log.Printf("record last login for user %d: %v", user.ID, err)
	} else {
		user.LastLogin = &now
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: *user})
}

// Logout stamps last_login as the end of the session. Tokens are stateless,
// so the client discards its own.
func (h *AuthHandler) Logout(c *gin.Context) {
	id := middleware.CurrentUserID(c)
	if err := h.users.TouchLogin(c.Request.Context(), id, time.Now()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the caller's profile; a valid token for a deleted user is 404.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.FindUserByID(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, services.NotFoundError("user not found"))
			return
		}
		respondError(c, services.PersistenceError(err))
		return
	}
	c.JSON(http.StatusOK, user)
}
