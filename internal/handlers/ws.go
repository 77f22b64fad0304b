// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/durak/internal/auth"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/jason-s-yu/durak/internal/middleware"
	"github.com/jason-s-yu/durak/internal/models"
	"github.com/jason-s-yu/durak/internal/presence"
	"github.com/sirupsen/logrus"
)

const (
	wsSubprotocol = "durak"
	outBuffer     = 32
	pingInterval  = 30 * time.Second
	writeTimeout  = 5 * time.Second
	intentTimeout = 10 * time.Second
)

// Reason codes owned by the gateway rather than the engine.
const (
	codeInvalidToken     = "invalid_token"
	codeNotAuthenticated = "not_authenticated"
	codeSessionTakenOver = "session_taken_over"
	codeServerError      = "server_error"
)

var (
	errInvalidToken     = &game.Rejection{Code: codeInvalidToken}
	errNotAuthenticated = &game.Rejection{Code: codeNotAuthenticated}
)

// inbound is every intent a client can send. Fields an intent does not use are ignored.
type inbound struct {
	Type       string       `json:"type"`
	RoomID     string       `json:"roomId"`
	PlayerID   string       `json:"playerId"`
	PlayerName string       `json:"playerName"`
	Language   string       `json:"language"`
	Role       string       `json:"role"`
	Card       *models.Card `json:"card"`
	Message    string       `json:"message"`
	Token      string       `json:"token"`
}

// Gateway serves the websocket session protocol. It turns client intents into
// Engine calls and keeps the presence registry in step with live connections.
type Gateway struct {
	engine   *game.Engine
	registry *presence.Registry
	logger   logrus.FieldLogger
}

func NewGateway(engine *game.Engine, registry *presence.Registry, logger logrus.FieldLogger) *Gateway {
	return &Gateway{engine: engine, registry: registry, logger: logger}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocol},
		OriginPatterns: []string{"*"}, // Adjust in production
	})
	if err != nil {
		g.logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != wsSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the durak subprotocol")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	conn := newWSConn(c, cancel)
	log := g.logger.WithField("conn", conn.id)
	middleware.LogWebSocketConnect(log, r.RemoteAddr, r.URL.Path)

	go conn.writePump(ctx, log)
	err = g.readPump(ctx, conn, log)

	conn.stop()
	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), intentTimeout)
	g.release(releaseCtx, conn, log)
	releaseCancel()
	middleware.LogWebSocketDisconnect(log, r.RemoteAddr, r.URL.Path, err)
}

// readPump dispatches inbound messages until the connection closes. It returns
// nil for orderly closes.
func (g *Gateway) readPump(ctx context.Context, conn *wsConn, log logrus.FieldLogger) error {
	for {
		typ, data, err := conn.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			_, shut := conn.closeCode()
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) || shut {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debugf("invalid json: %v", err)
			conn.Send(game.ErrorEvent(game.ErrInvalidInput.Code))
			continue
		}
		g.handle(ctx, conn, msg, log)
	}
}

// handle runs one intent. Engine work is detached from the connection context
// so a client hanging up mid-intent cannot abort a commit halfway.
func (g *Gateway) handle(ctx context.Context, conn *wsConn, msg inbound, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), intentTimeout)
	defer cancel()
	log = log.WithField("action", msg.Type)

	var err error
	switch msg.Type {
	case "createRoom":
		err = g.join(ctx, conn, "", msg, log)
	case "joinRoom":
		roomID := sanitizeInput(msg.RoomID)
		if roomID == "" {
			err = game.ErrInvalidInput
			break
		}
		err = g.join(ctx, conn, roomID, msg, log)
	case "reconnectPlayer":
		err = g.reconnect(ctx, conn, msg, log)
	case "requestPlayerUpdate":
		roomID := sanitizeInput(msg.RoomID)
		if roomID == "" {
			roomID = conn.roomID
		}
		if roomID == "" {
			err = game.ErrInvalidInput
			break
		}
		err = g.engine.RequestPlayerUpdate(ctx, roomID)
	case "ready", "playCard", "takeCards", "endTurn", "leaveRoom", "leaveGame",
		"tempDisconnect", "changeLanguage", "chat":
		err = g.act(ctx, conn, msg, log)
	default:
		log.Debugf("unknown intent %q", msg.Type)
		err = game.ErrInvalidInput
	}
	if err != nil {
		g.reply(conn, err, log)
	}
}

// act runs intents that need a seat bound to this connection.
func (g *Gateway) act(ctx context.Context, conn *wsConn, msg inbound, log logrus.FieldLogger) error {
	playerID, roomID, err := g.session(conn, msg)
	if err != nil {
		return err
	}
	switch msg.Type {
	case "ready":
		return g.engine.Ready(ctx, roomID, playerID)
	case "playCard":
		return g.play(ctx, roomID, playerID, msg)
	case "takeCards":
		return g.engine.TakeCards(ctx, roomID, playerID)
	case "endTurn":
		return g.engine.EndTurn(ctx, roomID, playerID)
	case "leaveRoom":
		if err := g.engine.LeaveRoom(ctx, roomID, playerID); err != nil {
			return err
		}
		g.release(ctx, conn, log)
		return nil
	case "leaveGame":
		if err := g.engine.LeaveGame(ctx, roomID, playerID); err != nil {
			return err
		}
		g.release(ctx, conn, log)
		return nil
	case "tempDisconnect":
		return g.engine.Disconnect(ctx, roomID, playerID)
	case "changeLanguage":
		return g.engine.ChangeLanguage(ctx, playerID, sanitizeLanguage(msg.Language))
	case "chat":
		text := sanitizeChat(msg.Message)
		if text == "" {
			return game.ErrInvalidInput
		}
		return g.engine.Chat(ctx, roomID, playerID, text)
	}
	return game.ErrInvalidInput
}

// session resolves which seat the connection speaks for. A claimed playerId
// must be the one this connection attached as.
func (g *Gateway) session(conn *wsConn, msg inbound) (playerID, roomID string, err error) {
	if conn.playerID == "" || !g.registry.IsAttached(conn.playerID, conn.id) {
		return "", "", errNotAuthenticated
	}
	if claimed := sanitizeInput(msg.PlayerID); claimed != "" && claimed != conn.playerID {
		return "", "", errNotAuthenticated
	}
	roomID = conn.roomID
	if r := sanitizeInput(msg.RoomID); r != "" {
		roomID = r
	}
	return conn.playerID, roomID, nil
}

func (g *Gateway) play(ctx context.Context, roomID, playerID string, msg inbound) error {
	if msg.Card == nil {
		return game.ErrInvalidCard
	}
	switch strings.ToLower(msg.Role) {
	case "attacker", "attack":
		return g.engine.Play(ctx, roomID, playerID, game.Attack{Card: *msg.Card})
	case "defender", "defend":
		return g.engine.Play(ctx, roomID, playerID, game.Defend{Card: *msg.Card})
	}
	return game.ErrInvalidInput
}

// join seats the caller through CreateRoom (empty roomID) or JoinRoom, binds
// the connection to the seat and hands out a session token.
func (g *Gateway) join(ctx context.Context, conn *wsConn, roomID string, msg inbound, log logrus.FieldLogger) error {
	req := game.JoinRequest{
		Name:     sanitizeInput(msg.PlayerName),
		PlayerID: sanitizeInput(msg.PlayerID),
		Language: sanitizeLanguage(msg.Language),
	}

	var (
		res     game.JoinResult
		err     error
		evtType = game.EventRoomJoined
	)
	if roomID == "" {
		res, err = g.engine.CreateRoom(ctx, req)
		evtType = game.EventRoomCreated
	} else {
		res, err = g.engine.JoinRoom(ctx, roomID, req)
	}
	if err != nil {
		return err
	}

	g.bind(ctx, conn, res.PlayerID, res.RoomID, log)

	token, err := auth.CreateJWT(res.PlayerID)
	if err != nil {
		log.WithError(err).Error("failed to issue session token")
	}
	if res.Reissued {
		conn.Send(game.Event{Type: game.EventSetPlayerID, Data: game.SetPlayerIDPayload{PlayerID: res.PlayerID}})
	}
	conn.Send(game.Event{Type: evtType, Data: game.JoinedPayload{
		RoomID:   res.RoomID,
		PlayerID: res.PlayerID,
		Name:     res.Name,
		Language: res.Language,
		Token:    token,
	}})
	return g.engine.SyncPlayer(ctx, res.RoomID, res.PlayerID)
}

// reconnect restores a seat for a client presenting the token it was issued.
func (g *Gateway) reconnect(ctx context.Context, conn *wsConn, msg inbound, log logrus.FieldLogger) error {
	if msg.Token == "" {
		return errNotAuthenticated
	}
	playerID, err := auth.AuthenticateJWT(msg.Token)
	if err != nil {
		log.Debugf("rejecting session token: %v", err)
		return errInvalidToken
	}
	if claimed := sanitizeInput(msg.PlayerID); claimed != "" && claimed != playerID {
		return errInvalidToken
	}
	roomID := sanitizeInput(msg.RoomID)
	if roomID == "" {
		return game.ErrInvalidInput
	}
	if err := g.engine.Reconnect(ctx, roomID, playerID, sanitizeInput(msg.PlayerName)); err != nil {
		return err
	}
	g.bind(ctx, conn, playerID, roomID, log)
	return g.engine.SyncPlayer(ctx, roomID, playerID)
}

// bind attaches conn to playerID, letting go of any seat it spoke for before.
func (g *Gateway) bind(ctx context.Context, conn *wsConn, playerID, roomID string, log logrus.FieldLogger) {
	if conn.playerID != "" && conn.playerID != playerID {
		g.release(ctx, conn, log)
	}
	conn.playerID, conn.roomID = playerID, roomID
	g.registry.Attach(playerID, conn)
}

// release detaches conn from its seat. If that was the player's last connection
// and it was not superseded, the seat is marked disconnected.
func (g *Gateway) release(ctx context.Context, conn *wsConn, log logrus.FieldLogger) {
	playerID, roomID := conn.playerID, conn.roomID
	if playerID == "" {
		return
	}
	conn.playerID, conn.roomID = "", ""

	last, _ := g.registry.Detach(playerID, conn)
	if !last || conn.wasEvicted() {
		return
	}
	err := g.engine.Disconnect(ctx, roomID, playerID)
	if err != nil && !errors.Is(err, game.ErrRoomNotFound) && !errors.Is(err, game.ErrPlayerNotFound) {
		log.WithFields(logrus.Fields{"room": roomID, "player": playerID}).WithError(err).Warn("failed to mark player disconnected")
	}
}

// reply maps an intent error onto an error notice for the caller.
func (g *Gateway) reply(conn *wsConn, err error, log logrus.FieldLogger) {
	var rej *game.Rejection
	if errors.As(err, &rej) {
		log.WithField("code", rej.Code).Debug("intent rejected")
		conn.Send(game.ErrorEvent(rej.Code))
		return
	}
	log.WithError(err).Error("intent failed")
	conn.Send(game.ErrorEvent(codeServerError))
}

// wsConn is one websocket connection. It implements presence.Conn.
// playerID and roomID are owned by the read loop.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	out    chan any
	cancel context.CancelFunc
	closed atomic.Bool

	shutOnce sync.Once
	shut     chan struct{}
	code     websocket.StatusCode
	reason   string

	playerID string
	roomID   string
}

func newWSConn(ws *websocket.Conn, cancel context.CancelFunc) *wsConn {
	return &wsConn{
		id:      uuid.NewString(),
		ws:      ws,
		out:     make(chan any, outBuffer),
		cancel:  cancel,
		shut:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Alive() bool { return !c.closed.Load() }

// Send queues msg for the write pump. A client that lets the queue fill up is
// closed with SlowConsumerError.
func (c *wsConn) Send(msg any) bool {
	if !c.Alive() {
		return false
	}
	select {
	case c.out <- msg:
		return true
	default:
		c.shutdown(SlowConsumerError, "outbound queue full")
		return false
	}
}

// Evict tells the write pump to deliver a takeover notice and close.
func (c *wsConn) Evict(reason string) {
	c.shutdown(SessionTakenOverError, reason)
}

// shutdown stops further sends and asks the write pump to close with code.
// Only the first call counts.
func (c *wsConn) shutdown(code websocket.StatusCode, reason string) {
	c.shutOnce.Do(func() {
		c.code, c.reason = code, reason
		c.closed.Store(true)
		close(c.shut)
	})
}

func (c *wsConn) closeCode() (websocket.StatusCode, bool) {
	select {
	case <-c.shut:
		return c.code, true
	default:
		return 0, false
	}
}

func (c *wsConn) wasEvicted() bool {
	code, ok := c.closeCode()
	return ok && code == SessionTakenOverError
}

func (c *wsConn) stop() {
	c.closed.Store(true)
	c.cancel()
}

// writePump drains the outbound queue and keeps the connection alive with pings.
func (c *wsConn) writePump(ctx context.Context, log logrus.FieldLogger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shut:
			if c.code == SessionTakenOverError {
				if err := c.write(ctx, game.ErrorEvent(codeSessionTakenOver)); err != nil {
					log.Debugf("failed to deliver takeover notice: %v", err)
				}
			} else {
				log.WithField("code", int(c.code)).Warnf("closing connection: %s", c.reason)
			}
			_ = c.ws.Close(c.code, c.reason)
			return
		case msg := <-c.out:
			if err := c.write(ctx, msg); err != nil {
				log.Warnf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Warnf("failed to send ping: %v. Assuming disconnect.", err)
				return
			}
		}
	}
}

func (c *wsConn) write(ctx context.Context, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.ws.Write(writeCtx, websocket.MessageText, data)
}
