package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Topaz-Oz/Lience-Plate-Detect/middleware"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/gin-gonic/gin"
)

var assignableRoles = map[string]bool{"user": true, "admin": true}

type UsersHandler struct {
	users store.UserStore
}

func NewUsersHandler(users store.UserStore) *UsersHandler {
	return &UsersHandler{users: users}
}

type RoleRequest struct {
	Role string `json:"role"`
}

// UpdateProfile applies PATCH /users/me. Only name, phoneNumber and address
// may change; any other key rejects the whole request.
func (h *UsersHandler) UpdateProfile(c *gin.Context) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}

	var p store.ProfileUpdate
	for key, val := range raw {
		var dst **string
		switch key {
		case "name":
			dst = &p.Name
		case "phoneNumber":
			dst = &p.PhoneNumber
		case "address":
			dst = &p.Address
		default:
			badRequest(c, "Invalid updates")
			return
		}
		var s string
		if err := json.Unmarshal(val, &s); err != nil {
			badRequest(c, "%s must be a string", key)
			return
		}
		*dst = &s
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UsersHandler) List(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UsersHandler) UpdateRole(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: %v", err)
		return
	}
	if !assignableRoles[req.Role] {
		badRequest(c, "Invalid role")
		return
	}

	user, err := h.users.SetRole(c.Request.Context(), uint(id), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ToggleStatus flips is_active. A deactivated user can no longer log in or
// open the realtime channel.
func (h *UsersHandler) ToggleStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid user id")
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.FindUserByID(ctx, uint(id))
	if err != nil {
		respondError(c, err)
		return
	}
	if user, err = h.users.SetActive(ctx, user.ID, !user.IsActive); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UsersHandler) Stats(c *gin.Context) {
	st, err := h.users.UserStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
