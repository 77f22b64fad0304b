package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/durak/internal/auth"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/jason-s-yu/durak/internal/presence"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	engine *game.Engine
	srv    *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require.NoError(t, auth.Init(0))
	logger, _ := test.NewNullLogger()
	registry := presence.NewRegistry(logger)
	engine := game.NewEngine(game.NewMemoryStore(), registry, game.WithLogger(logger))
	t.Cleanup(engine.Close)

	mux := http.NewServeMux()
	mux.Handle("/ws", NewGateway(engine, registry, logger))
	mux.HandleFunc("GET /room/{roomId}", RoomHandler(engine, logger))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testServer{engine: engine, srv: srv}
}

func (ts *testServer) dial(t *testing.T, subprotocols ...string) *websocket.Conn {
	t.Helper()
	if subprotocols == nil {
		subprotocols = []string{wsSubprotocol}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: subprotocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func send(t *testing.T, c *websocket.Conn, msg map[string]any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, msg))
}

// readUntil reads until an event matching typ (and match, when given) arrives.
func readUntil(t *testing.T, c *websocket.Conn, typ string, match func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var env envelope
		if err := wsjson.Read(ctx, c, &env); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if env.Type == typ && (match == nil || match(env.Data)) {
			return env.Data
		}
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

// seat creates a room (roomID empty) or joins one and returns the join payload.
func seat(t *testing.T, c *websocket.Conn, roomID, name string) game.JoinedPayload {
	t.Helper()
	if roomID == "" {
		send(t, c, map[string]any{"type": "createRoom", "playerName": name, "language": "ru"})
		return decode[game.JoinedPayload](t, readUntil(t, c, string(game.EventRoomCreated), nil))
	}
	send(t, c, map[string]any{"type": "joinRoom", "roomId": roomID, "playerName": name})
	return decode[game.JoinedPayload](t, readUntil(t, c, string(game.EventRoomJoined), nil))
}

func TestCreateAndJoinRoom(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	bob := ts.dial(t)

	created := seat(t, alice, "", "Alice")
	assert.Len(t, created.RoomID, 4)
	assert.NotEmpty(t, created.PlayerID)
	assert.NotEmpty(t, created.Token)
	assert.Equal(t, "ru", created.Language)
	state := decode[game.RoomState](t, readUntil(t, alice, string(game.EventRoomStateUpdate), nil))
	assert.Equal(t, 1, state.TotalCount)

	joined := seat(t, bob, created.RoomID, "Bob")
	assert.Equal(t, created.RoomID, joined.RoomID)
	assert.Equal(t, "en", joined.Language)

	state = decode[game.RoomState](t, readUntil(t, alice, string(game.EventRoomStateUpdate), nil))
	assert.Equal(t, 2, state.TotalCount)
	assert.Equal(t, 0, state.ReadyCount)
}

func TestReadyStartsGameAndHidesOpponentHands(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	bob := ts.dial(t)
	a := seat(t, alice, "", "Alice")
	b := seat(t, bob, a.RoomID, "Bob")

	send(t, alice, map[string]any{"type": "ready"})
	send(t, bob, map[string]any{"type": "ready"})

	start := decode[game.StartGamePayload](t, readUntil(t, alice, string(game.EventStartGame), nil))
	assert.ElementsMatch(t, []string{a.PlayerID, b.PlayerID}, []string{start.CurrentAttacker, start.CurrentDefender})
	gs := decode[game.GameState](t, readUntil(t, alice, string(game.EventGameStateUpdate), nil))
	require.Len(t, gs.Players, 2)
	assert.Equal(t, 24, gs.DeckCount)
	for _, p := range gs.Players {
		assert.Equal(t, 6, p.HandSize)
		if p.ID == a.PlayerID {
			assert.Len(t, p.Hand, 6)
		} else {
			assert.Empty(t, p.Hand, "opponent hand must not be sent")
		}
	}

	timer := decode[game.StartTimerPayload](t, readUntil(t, alice, string(game.EventStartTimer), nil))
	assert.Equal(t, int64(30000), timer.DurationMs)
}

func TestPlayCardOverWebsocket(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	bob := ts.dial(t)
	a := seat(t, alice, "", "Alice")
	b := seat(t, bob, a.RoomID, "Bob")
	send(t, alice, map[string]any{"type": "ready"})
	send(t, bob, map[string]any{"type": "ready"})

	start := decode[game.StartGamePayload](t, readUntil(t, alice, string(game.EventStartGame), nil))
	attacker := alice
	if start.CurrentAttacker == b.PlayerID {
		attacker = bob
	}
	gs := decode[game.GameState](t, readUntil(t, attacker, string(game.EventGameStateUpdate), nil))
	var hand []json.RawMessage
	for _, p := range gs.Players {
		if p.ID == start.CurrentAttacker {
			for _, c := range p.Hand {
				raw, err := json.Marshal(c)
				require.NoError(t, err)
				hand = append(hand, raw)
			}
		}
	}
	require.NotEmpty(t, hand)

	// defending out of turn is rejected
	send(t, attacker, map[string]any{"type": "playCard", "role": "defender", "card": hand[0]})
	errPayload := decode[game.ErrorPayload](t, readUntil(t, attacker, string(game.EventError), nil))
	assert.Equal(t, game.ErrNotYourTurn.Code, errPayload.Code)

	send(t, attacker, map[string]any{"type": "playCard", "role": "attacker", "card": hand[0]})
	gs = decode[game.GameState](t, readUntil(t, attacker, string(game.EventGameStateUpdate), func(raw json.RawMessage) bool {
		return len(decode[game.GameState](t, raw).Table) == 1
	}))
	assert.Nil(t, gs.Table[0].Defense)
	assert.True(t, gs.CanTakeCards)
}

func TestIntentWithoutSeatIsRejected(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)

	send(t, c, map[string]any{"type": "ready", "roomId": "1234"})
	payload := decode[game.ErrorPayload](t, readUntil(t, c, string(game.EventError), nil))
	assert.Equal(t, codeNotAuthenticated, payload.Code)
}

func TestMalformedMessages(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("not json")))
	payload := decode[game.ErrorPayload](t, readUntil(t, c, string(game.EventError), nil))
	assert.Equal(t, game.ErrInvalidInput.Code, payload.Code)

	send(t, c, map[string]any{"type": "dance"})
	payload = decode[game.ErrorPayload](t, readUntil(t, c, string(game.EventError), nil))
	assert.Equal(t, game.ErrInvalidInput.Code, payload.Code)

	send(t, c, map[string]any{"type": "joinRoom", "roomId": "0000", "playerName": "Zed"})
	payload = decode[game.ErrorPayload](t, readUntil(t, c, string(game.EventError), nil))
	assert.Equal(t, game.ErrRoomNotFound.Code, payload.Code)
}

func TestBadSubprotocolIsClosed(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t, "chat")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
}

func TestSecondSessionTakesOver(t *testing.T) {
	ts := newTestServer(t)
	first := ts.dial(t)
	a := seat(t, first, "", "Alice")

	second := ts.dial(t)
	send(t, second, map[string]any{"type": "joinRoom", "roomId": a.RoomID, "playerId": a.PlayerID, "playerName": "Alice"})
	rejoined := decode[game.JoinedPayload](t, readUntil(t, second, string(game.EventRoomJoined), nil))
	assert.Equal(t, a.PlayerID, rejoined.PlayerID)

	payload := decode[game.ErrorPayload](t, readUntil(t, first, string(game.EventError), nil))
	assert.Equal(t, codeSessionTakenOver, payload.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		_, _, err := first.Read(ctx)
		if err != nil {
			assert.Equal(t, SessionTakenOverError, websocket.CloseStatus(err))
			break
		}
	}

	// the evicted connection must not mark the seat disconnected
	assert.Never(t, func() bool {
		snap, err := ts.engine.Snapshot(context.Background(), a.RoomID, "")
		return err != nil || snap.Players[0].Disconnected
	}, 200*time.Millisecond, 20*time.Millisecond)

	send(t, second, map[string]any{"type": "chat", "message": "still here"})
	chat := decode[game.ChatPayload](t, readUntil(t, second, string(game.EventChat), nil))
	assert.Equal(t, "still here", chat.Text)
}

func TestFullQueueMarksSlowConsumer(t *testing.T) {
	conn := newWSConn(nil, func() {})
	for i := 0; i < outBuffer; i++ {
		require.True(t, conn.Send(game.ErrorEvent("queued")))
	}
	assert.False(t, conn.Send(game.ErrorEvent("overflow")))
	assert.False(t, conn.Alive())
	assert.False(t, conn.Send(game.ErrorEvent("late")))

	code, shut := conn.closeCode()
	require.True(t, shut)
	assert.Equal(t, SlowConsumerError, code)
	assert.False(t, conn.wasEvicted(), "a slow consumer still counts as a disconnect")

	// a later takeover does not change why the connection is closing
	conn.Evict(presence.ReasonTakeover)
	code, _ = conn.closeCode()
	assert.Equal(t, SlowConsumerError, code)
}

func TestSlowConsumerIsClosed(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx, cancel := context.WithCancel(r.Context())
		conn := newWSConn(ws, cancel)
		for conn.Send(game.ErrorEvent("flood")) {
		}
		conn.writePump(ctx, logger)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer c.CloseNow()

	for {
		_, _, err := c.Read(ctx)
		if err != nil {
			assert.Equal(t, SlowConsumerError, websocket.CloseStatus(err))
			break
		}
	}
}

func TestCloseMarksDisconnectedAndTokenReconnects(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.dial(t)
	bob := ts.dial(t)
	a := seat(t, alice, "", "Alice")
	b := seat(t, bob, a.RoomID, "Bob")

	require.NoError(t, bob.Close(websocket.StatusNormalClosure, "bye"))
	status := decode[game.PlayerStatusPayload](t, readUntil(t, alice, string(game.EventPlayerStatus), func(raw json.RawMessage) bool {
		return decode[game.PlayerStatusPayload](t, raw).PlayerID == b.PlayerID
	}))
	assert.True(t, status.Disconnected)

	again := ts.dial(t)
	send(t, again, map[string]any{"type": "reconnectPlayer", "roomId": a.RoomID, "playerId": b.PlayerID, "token": "garbage"})
	payload := decode[game.ErrorPayload](t, readUntil(t, again, string(game.EventError), nil))
	assert.Equal(t, codeInvalidToken, payload.Code)

	send(t, again, map[string]any{"type": "reconnectPlayer", "roomId": a.RoomID, "playerId": b.PlayerID, "playerName": "Bob", "token": b.Token})
	state := decode[game.RoomState](t, readUntil(t, again, string(game.EventRoomStateUpdate), nil))
	for _, p := range state.Players {
		assert.False(t, p.Disconnected, "player %s", p.Name)
	}
	reconnected := decode[game.PlayerReconnectedPayload](t, readUntil(t, alice, string(game.EventPlayerReconnected), nil))
	assert.Equal(t, "Bob", reconnected.Name)
}

func TestChangeLanguageReachesEveryConnection(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	seat(t, c, "", "Alice")

	send(t, c, map[string]any{"type": "changeLanguage", "language": "uk"})
	payload := decode[game.LanguageChangedPayload](t, readUntil(t, c, string(game.EventLanguageChanged), nil))
	assert.Equal(t, "uk", payload.Language)

	send(t, c, map[string]any{"type": "changeLanguage", "language": "xx"})
	payload = decode[game.LanguageChangedPayload](t, readUntil(t, c, string(game.EventLanguageChanged), nil))
	assert.Equal(t, "en", payload.Language)
}

func TestLeaveRoomDeletesEmptyLobby(t *testing.T) {
	ts := newTestServer(t)
	c := ts.dial(t)
	a := seat(t, c, "", "Alice")

	send(t, c, map[string]any{"type": "leaveRoom"})
	send(t, c, map[string]any{"type": "ready"})
	payload := decode[game.ErrorPayload](t, readUntil(t, c, string(game.EventError), nil))
	assert.Equal(t, codeNotAuthenticated, payload.Code)

	_, err := ts.engine.Snapshot(context.Background(), a.RoomID, "")
	assert.ErrorIs(t, err, game.ErrRoomNotFound)
}
