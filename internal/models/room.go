// internal/models/room.go
package models

import "time"

// Room is the durable record of one game room. Players are kept in seating order.
//
// Lifecycle: a room is in the lobby while Trump is nil, active once Trump is set,
// and ended once GameEnded is true (ended rooms are deleted right away).
type Room struct {
	ID              string      `json:"roomId"`
	Trump           *Trump      `json:"trump"`
	Deck            []Card      `json:"deck"`
	Table           []TablePair `json:"table"`
	Discard         []Card      `json:"discard"`
	CurrentAttacker string      `json:"currentAttacker,omitempty"`
	CurrentDefender string      `json:"currentDefender,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	LastActivityAt  time.Time   `json:"lastActivityAt"`
	GameEnded       bool        `json:"gameEnded"`
	ActionSeq       int         `json:"actionSeq"`
	Players         []*Player   `json:"players"`
}

// InLobby reports whether the game has not been dealt yet.
func (r *Room) InLobby() bool {
	return r.Trump == nil && !r.GameEnded
}

// Active reports whether a game is in progress.
func (r *Room) Active() bool {
	return r.Trump != nil && !r.GameEnded
}

// Player returns the seated player with the given id, or nil.
func (r *Room) Player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PlayersByName returns every seated player using name.
func (r *Room) PlayersByName(name string) []*Player {
	var out []*Player
	for _, p := range r.Players {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// RemovePlayer unseats the player with the given id.
func (r *Room) RemovePlayer(id string) bool {
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// ConnectedPlayers returns the connected players in seating order.
func (r *Room) ConnectedPlayers() []*Player {
	out := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Connected() {
			out = append(out, p)
		}
	}
	return out
}

// ReadyCount counts connected seats flagged ready.
func (r *Room) ReadyCount() int {
	n := 0
	for _, p := range r.ConnectedPlayers() {
		if p.Ready {
			n++
		}
	}
	return n
}

// HasUndefended reports whether any attack on the table is still open.
func (r *Room) HasUndefended() bool {
	for _, pair := range r.Table {
		if !pair.Defended() {
			return true
		}
	}
	return false
}

// TableCards flattens the table into the cards lying on it.
func (r *Room) TableCards() []Card {
	out := make([]Card, 0, len(r.Table)*2)
	for _, pair := range r.Table {
		out = append(out, pair.Attack)
		if pair.Defense != nil {
			out = append(out, *pair.Defense)
		}
	}
	return out
}

// Clone returns a deep copy so callers never share slices with a store.
func (r *Room) Clone() *Room {
	cp := *r
	if r.Trump != nil {
		t := *r.Trump
		cp.Trump = &t
	}
	cp.Deck = append([]Card(nil), r.Deck...)
	cp.Discard = append([]Card(nil), r.Discard...)
	cp.Table = make([]TablePair, len(r.Table))
	for i, pair := range r.Table {
		cp.Table[i] = TablePair{Attack: pair.Attack}
		if pair.Defense != nil {
			d := *pair.Defense
			cp.Table[i].Defense = &d
		}
	}
	cp.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		cp.Players[i] = p.Clone()
	}
	return &cp
}
