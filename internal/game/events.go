// internal/game/events.go
package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/durak/internal/models"
)

// EventType names an outbound message. The value is the "type" field on the wire.
type EventType string

const (
	EventRoomCreated       EventType = "roomCreated"
	EventRoomJoined        EventType = "roomJoined"
	EventSetPlayerID       EventType = "setPlayerId"
	EventPlayerStatus      EventType = "playerStatus"
	EventRoomStateUpdate   EventType = "roomStateUpdate"
	EventGameStateUpdate   EventType = "gameStateUpdate"
	EventStartGame         EventType = "startGame"
	EventStartTimer        EventType = "startTimer"
	EventTurnTimeout       EventType = "turnTimeout"
	EventGameOver          EventType = "gameOver"
	EventRoomDeleted       EventType = "roomDeleted"
	EventError             EventType = "error"
	EventPlayerReconnected EventType = "playerReconnected"
	EventLanguageChanged   EventType = "languageChanged"
	EventChat              EventType = "chat"
)

// Event is the envelope every outbound message travels in.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// Notifier delivers an event to every live connection of one player and reports
// whether the player has any live connection. presence.Registry is the
// production implementation.
type Notifier interface {
	BroadcastTo(playerID string, msg any)
	Online(playerID string) bool
}

// ActionRecorder receives every accepted transition for the audit trail.
// Implementations must not block; a nil recorder disables recording.
type ActionRecorder interface {
	Record(ctx context.Context, action Action)
}

// Action is one accepted transition as written to the audit trail.
type Action struct {
	RoomID   string         `json:"room_id"`
	Index    int            `json:"action_index"`
	PlayerID string         `json:"player_id,omitempty"`
	Type     string         `json:"action_type"`
	Payload  map[string]any `json:"action_payload,omitempty"`
	At       time.Time      `json:"timestamp"`
}

// --- payloads ---

type JoinedPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"playerName"`
	Language string `json:"language"`
	Token    string `json:"token,omitempty"`
}

type SetPlayerIDPayload struct {
	PlayerID string `json:"playerId"`
}

type PlayerStatusPayload struct {
	PlayerID     string `json:"playerId"`
	Ready        bool   `json:"ready"`
	Disconnected bool   `json:"isDisconnected"`
}

type StartGamePayload struct {
	Trump           models.Trump `json:"trump"`
	CurrentAttacker string       `json:"currentAttacker"`
	CurrentDefender string       `json:"currentDefender"`
}

type StartTimerPayload struct {
	DurationMs int64 `json:"duration"`
}

// TurnTimeoutPayload names the defender whose turn ran out.
type TurnTimeoutPayload struct {
	PlayerID string `json:"playerId"`
}

type GameOverPayload struct {
	Winners []string `json:"winners"`
}

type RoomDeletedPayload struct {
	RoomID string `json:"roomId"`
}

type ErrorPayload struct {
	Code string `json:"code"`
}

type PlayerReconnectedPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"playerName"`
}

type LanguageChangedPayload struct {
	Language string `json:"language"`
}

type ChatPayload struct {
	RoomID string    `json:"roomId"`
	Name   string    `json:"playerName"`
	Text   string    `json:"message"`
	SentAt time.Time `json:"sentAt"`
}

// ErrorEvent wraps a reason code in an error notice.
func ErrorEvent(code string) Event {
	return Event{Type: EventError, Data: ErrorPayload{Code: code}}
}
