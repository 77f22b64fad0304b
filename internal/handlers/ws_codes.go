// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Custom WebSocket close codes used by the session gateway.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client connected with an unsupported subprotocol.
	SessionTakenOverError websocket.StatusCode = 3004 // A newer connection claimed the same playerId.
	SlowConsumerError     websocket.StatusCode = 3005 // Outbound queue filled up; the client is not reading.
)
