// internal/handlers/room.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/jason-s-yu/durak/internal/auth"
	"github.com/jason-s-yu/durak/internal/game"
	"github.com/sirupsen/logrus"
)

// RoomHandler serves GET /room/{roomId} for polling clients. Hands stay hidden
// unless the request carries a session token, which reveals the caller's own.
func RoomHandler(engine *game.Engine, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := sanitizeInput(r.PathValue("roomId"))
		if roomID == "" {
			writeJSON(w, http.StatusBadRequest, game.ErrorPayload{Code: game.ErrInvalidInput.Code})
			return
		}

		var viewer string
		if token := requestToken(r); token != "" {
			playerID, err := auth.AuthenticateJWT(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, game.ErrorPayload{Code: codeInvalidToken})
				return
			}
			viewer = playerID
		}

		snap, err := engine.Snapshot(r.Context(), roomID, viewer)
		if errors.Is(err, game.ErrRoomNotFound) {
			writeJSON(w, http.StatusNotFound, game.ErrorPayload{Code: game.ErrRoomNotFound.Code})
			return
		}
		if err != nil {
			logger.WithField("room", roomID).WithError(err).Error("failed to read room snapshot")
			writeJSON(w, http.StatusInternalServerError, game.ErrorPayload{Code: codeServerError})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// HealthHandler reports liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
