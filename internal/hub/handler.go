package hub

import (
	"net/http"
	"strconv"

	"collaborative-workspace/internal/errors"
	"collaborative-workspace/internal/presence"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(h *Hub) *Handler {
	allowed := make(map[string]struct{}, len(h.opts.AllowedOrigins))
	for _, o := range h.opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// ServeWS upgrades an authenticated request to a channel connection.
func (h *Handler) ServeWS(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.Error(errors.Unauthorized("Authorization is not found!", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.hub.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.hub.newClient(conn, user).Serve()
}

// ShowPresence returns who is in a workspace and where.
func (h *Handler) ShowPresence(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Snapshot(c.Param("workspaceId")))
}

func currentUser(c *gin.Context) (presence.User, bool) {
	id, ok := c.Get("user_id")
	if !ok {
		return presence.User{}, false
	}
	userID, ok := id.(uint64)
	if !ok {
		return presence.User{}, false
	}
	return presence.User{
		ID:    strconv.FormatUint(userID, 10),
		Name:  c.GetString("user_name"),
		Email: c.GetString("user_email"),
	}, true
}
