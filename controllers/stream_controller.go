package controllers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"studyhub/store"
	"studyhub/utils"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second
)

// StreamController pushes live tree snapshots over a websocket. Clients get
// the current value of the subscribed path immediately and a fresh snapshot
// after every write that touches it.
type StreamController struct {
	store     store.TreeStore
	jwtSecret string
	upgrader  websocket.Upgrader
}

func NewStreamController(st store.TreeStore, jwtSecret string, allowedOrigins []string) *StreamController {
	return &StreamController{
		store:     st,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

type streamFrame struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Value  any    `json:"value,omitempty"`
}

// Stream upgrades the connection and relays snapshots for the requested
// path. The public colleges subtree is open to everyone; a users subtree
// requires a token for that same user.
func (sc *StreamController) Stream(c *gin.Context) {
	path := strings.Trim(c.Query("path"), "/")
	if path == "" {
		path = "colleges"
	}

	if !sc.pathAllowed(c, path) {
		utils.UnauthorizedResponse(c, "Not allowed to stream this path")
		return
	}

	sub, err := sc.store.Subscribe(c.Request.Context(), path)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid stream path", err.Error())
		return
	}

	conn, err := sc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		log.Printf("[STREAM] upgrade failed: %v", err)
		return
	}

	go sc.readLoop(conn, sub)
	sc.writeLoop(conn, sub)
}

// pathAllowed restricts streaming to the public catalog and the caller's own
// subtree.
func (sc *StreamController) pathAllowed(c *gin.Context, path string) bool {
	if path == "colleges" || strings.HasPrefix(path, "colleges/") {
		return true
	}

	rest, ok := strings.CutPrefix(path, "users/")
	if !ok {
		return false
	}
	userID := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		userID = rest[:i]
	}

	token := c.Query("token")
	if token == "" {
		return false
	}
	claims, err := utils.VerifyJWTToken(token, sc.jwtSecret)
	if err != nil {
		return false
	}
	return claims.UserID == userID
}

// readLoop drains client frames so pongs are processed, and tears the
// subscription down when the client goes away.
func (sc *StreamController) readLoop(conn *websocket.Conn, sub *store.Subscription) {
	defer sub.Close()

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (sc *StreamController) writeLoop(conn *websocket.Conn, sub *store.Subscription) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case snap, ok := <-sub.Snapshots():
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			frame := streamFrame{Path: snap.Path, Exists: snap.Exists(), Value: snap.Value}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
