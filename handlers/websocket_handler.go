package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/leaguehub/roster-service/notify"
)

type WebSocketHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler accepts upgrades from the given origins; "*" allows any.
func NewWebSocketHandler(hub *notify.Hub, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// ServeTeam подключает клиента к комнате команды: /ws/teams/{teamID}
func (h *WebSocketHandler) ServeTeam(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.serve(w, r, notify.TeamRoom(teamID))
}

// ServePlayer connects a player to their own room. Admins may watch any player.
func (h *WebSocketHandler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() && actor.ID != playerID {
		errorResponse(w, r, http.StatusForbidden, "cannot subscribe to another player's events")
		return
	}
	h.serve(w, r, notify.PlayerRoom(playerID))
}

func (h *WebSocketHandler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, notify.AdminRoom)
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader.Upgrade сам отправляет HTTP ошибку клиенту
		h.logger.Warn("failed to upgrade websocket connection", slog.String("room", room), slog.Any("error", err))
		return
	}
	h.logger.Debug("websocket connection upgraded", slog.String("room", room), slog.String("remote", r.RemoteAddr))

	client := notify.NewClient(h.hub, conn, room)
	if !h.hub.Attach(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
