package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"grocery-sync/auth"
	"grocery-sync/services"
	"grocery-sync/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// sendLocationPayload is the part of a sendlocation payload the presence
// cache understands. The payload itself is relayed untouched.
type sendLocationPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// WSHandler groups dependencies for websocket flows
type WSHandler struct {
	mgr       *ws.Manager
	processor *services.LocationProcessor
}

func NewWSHandler(mgr *ws.Manager, processor *services.LocationProcessor) *WSHandler {
	return &WSHandler{mgr: mgr, processor: processor}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// HandleWS upgrades to websocket, gates the session on its token and relays
// peer events to every other live connection.
// GET /ws?token=<token>
func (h *WSHandler) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = auth.TokenFromHeader(c.GetHeader("Authorization"))
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	session, err := h.mgr.Connect(conn, token)
	if err != nil {
		log.WithError(err).WithField("remote", c.ClientIP()).Info("realtime handshake rejected")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ws.WriteWait))
		_ = conn.Close()
		return
	}
	defer h.mgr.Disconnect(session)

	conn.SetReadLimit(ws.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).WithField("conn", session.ID).Warn("realtime read failed")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var env ws.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.WithError(err).WithField("conn", session.ID).Debug("invalid realtime frame")
			continue
		}

		relay, ok := ws.RelayName[env.Event]
		if !ok {
			log.WithFields(log.Fields{"conn": session.ID, "event": env.Event}).Debug("unknown realtime event")
			continue
		}
		if env.Event == ws.EventSendLocation {
			h.recordLocation(session, env.Data)
		}
		h.mgr.RelayExcludingSender(session, relay, env.Data)
	}
}

func (h *WSHandler) recordLocation(session *ws.Conn, data json.RawMessage) {
	if h.processor == nil || len(data) == 0 {
		return
	}
	var p sendLocationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Latitude == nil || p.Longitude == nil {
		return
	}
	if *p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180 {
		return
	}
	h.processor.AddLocation(session.Identity.UserID, *p.Latitude, *p.Longitude)
}

// GetConnections GET /v1/realtime/connections
func (h *WSHandler) GetConnections(c *gin.Context) {
	ids := h.mgr.Identities()
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"msg":         "Connections found!",
		"connections": ids,
		"count":       len(ids),
	})
}
