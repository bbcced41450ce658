package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/services"
	"github.com/Topaz-Oz/Lience-Plate-Detect/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	errMissingToken = errors.New("missing token query parameter")
	errUnknownUser  = errors.New("user not found or deactivated")
)

type welcomeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type RealtimeHandler struct {
	registry     *services.Registry
	authService  *services.AuthService
	users        store.UserStore
	pingInterval time.Duration
	sendBuffer   int
}

func NewRealtimeHandler(registry *services.Registry, authService *services.AuthService, users store.UserStore, pingInterval time.Duration, sendBuffer int) *RealtimeHandler {
	return &RealtimeHandler{registry: registry, authService: authService, users: users, pingInterval: pingInterval, sendBuffer: sendBuffer}
}

// Serve upgrades GET /ws?token=... and keeps the user's channel registered
// until the peer disconnects. The token's user must still exist and be active.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		respondError(c, &services.Error{Kind: services.KindAuthentication, Err: errMissingToken})
		return
	}

	claims, err := h.authService.ValidateToken(tokenStr)
	if err != nil {
		respondError(c, err)
		return
	}
	user, err := h.users.FindUserByID(c.Request.Context(), claims.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound) || (err == nil && !user.IsActive):
		respondError(c, &services.Error{Kind: services.KindAuthentication, Reason: services.ReasonTokenInvalid, Err: errUnknownUser})
		return
	case err != nil:
		respondError(c, services.PersistenceError(err))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	wc := services.NewWSConn(conn, h.sendBuffer, h.pingInterval)
	h.registry.Register(claims.UserID, wc)
	log.Printf("ws: user %d connected", claims.UserID)

	welcome, _ := json.Marshal(welcomeMessage{Type: services.MsgConnection, Message: "Connected to detection service"})
	wc.Enqueue(welcome)

	wc.ReadLoop(func(data []byte) {
		h.handleMessage(claims.UserID, wc, data)
	})

	h.registry.Release(claims.UserID, wc)
	log.Printf("ws: user %d disconnected", claims.UserID)
}

func (h *RealtimeHandler) handleMessage(userID uint, wc *services.WSConn, data []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("ws: user %d sent invalid message: %v", userID, err)
		return
	}

	switch msg.Type {
	case services.MsgPing:
		pong, _ := json.Marshal(services.NewPong(time.Now()))
		wc.Enqueue(pong)
	default:
		log.Printf("ws: user %d sent unknown message type %q", userID, msg.Type)
	}
}
