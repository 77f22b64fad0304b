// internal/game/sync_state.go
package game

import "github.com/jason-s-yu/durak/internal/models"

// PlayerView is one seat as seen by a particular viewer. Hand is only filled in
// for the viewer's own seat; everyone else gets HandSize.
type PlayerView struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Ready        bool          `json:"ready"`
	Disconnected bool          `json:"isDisconnected"`
	HandSize     int           `json:"handSize"`
	Hand         []models.Card `json:"hand,omitempty"`
}

// RoomState is the lobby-facing projection.
type RoomState struct {
	RoomID     string       `json:"roomId"`
	Players    []PlayerView `json:"players"`
	ReadyCount int          `json:"readyCount"`
	TotalCount int          `json:"totalCount"`
}

// GameState is the game-facing projection for one viewer.
type GameState struct {
	RoomID          string             `json:"roomId"`
	Players         []PlayerView       `json:"players"`
	Trump           *models.Trump      `json:"trump"`
	DeckCount       int                `json:"deckCount"`
	DiscardCount    int                `json:"discardCount"`
	Table           []models.TablePair `json:"table"`
	CurrentAttacker string             `json:"currentAttacker"`
	CurrentDefender string             `json:"currentDefender"`
	CanTakeCards    bool               `json:"canTakeCards"`
}

// Snapshot merges both projections for polling clients.
type Snapshot struct {
	RoomID          string             `json:"roomId"`
	Players         []PlayerView       `json:"players"`
	ReadyCount      int                `json:"readyCount"`
	TotalCount      int                `json:"totalCount"`
	Trump           *models.Trump      `json:"trump"`
	DeckCount       int                `json:"deckCount"`
	Table           []models.TablePair `json:"table"`
	CurrentAttacker string             `json:"currentAttacker"`
	CurrentDefender string             `json:"currentDefender"`
	CanTakeCards    bool               `json:"canTakeCards"`
}

func playerViews(room *models.Room, viewerID string) []PlayerView {
	views := make([]PlayerView, 0, len(room.Players))
	for _, p := range room.Players {
		v := PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			Ready:        p.Ready,
			Disconnected: p.Disconnected,
			HandSize:     len(p.Hand),
		}
		if viewerID != "" && p.ID == viewerID {
			v.Hand = append([]models.Card(nil), p.Hand...)
		}
		views = append(views, v)
	}
	return views
}

// ProjectRoom builds the lobby projection. TotalCount counts connected seats,
// the same population that must be ready before a game starts.
func ProjectRoom(room *models.Room) RoomState {
	return RoomState{
		RoomID:     room.ID,
		Players:    playerViews(room, ""),
		ReadyCount: room.ReadyCount(),
		TotalCount: len(room.ConnectedPlayers()),
	}
}

// ProjectGame builds the game projection for viewerID. An empty viewerID hides every hand.
func ProjectGame(room *models.Room, viewerID string) GameState {
	table := make([]models.TablePair, len(room.Table))
	copy(table, room.Table)
	return GameState{
		RoomID:          room.ID,
		Players:         playerViews(room, viewerID),
		Trump:           room.Trump,
		DeckCount:       len(room.Deck),
		DiscardCount:    len(room.Discard),
		Table:           table,
		CurrentAttacker: room.CurrentAttacker,
		CurrentDefender: room.CurrentDefender,
		CanTakeCards:    room.Active() && room.HasUndefended(),
	}
}

// ProjectSnapshot builds the polling projection for viewerID.
func ProjectSnapshot(room *models.Room, viewerID string) Snapshot {
	rs := ProjectRoom(room)
	gs := ProjectGame(room, viewerID)
	return Snapshot{
		RoomID:          room.ID,
		Players:         gs.Players,
		ReadyCount:      rs.ReadyCount,
		TotalCount:      rs.TotalCount,
		Trump:           gs.Trump,
		DeckCount:       gs.DeckCount,
		Table:           gs.Table,
		CurrentAttacker: gs.CurrentAttacker,
		CurrentDefender: gs.CurrentDefender,
		CanTakeCards:    gs.CanTakeCards,
	}
}
