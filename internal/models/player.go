// internal/models/player.go
package models

import "time"

// Player is a seat in a room. ID is the durable identity a client keeps across
// reconnects; live connections are tracked by the presence registry, not here.
type Player struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Hand               []Card     `json:"hand"`
	Ready              bool       `json:"ready"`
	Disconnected       bool       `json:"isDisconnected"`
	LastDisconnectedAt *time.Time `json:"lastDisconnectedAt,omitempty"`
	Language           string     `json:"language"`
	JoinedAt           time.Time  `json:"joinedAt"`
}

// Connected is the inverse of Disconnected.
func (p *Player) Connected() bool {
	return !p.Disconnected
}

// HasCard reports whether c is in the player's hand.
func (p *Player) HasCard(c Card) bool {
	return p.cardIndex(c) >= 0
}

// RemoveCard takes c out of the hand and reports whether it was there.
func (p *Player) RemoveCard(c Card) bool {
	idx := p.cardIndex(c)
	if idx < 0 {
		return false
	}
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	return true
}

func (p *Player) cardIndex(c Card) int {
	for i, h := range p.Hand {
		if h == c {
			return i
		}
	}
	return -1
}

// MarkDisconnected flags the player offline at the given time.
func (p *Player) MarkDisconnected(at time.Time) {
	p.Disconnected = true
	t := at
	p.LastDisconnectedAt = &t
}

// MarkConnected clears the offline flag.
func (p *Player) MarkConnected() {
	p.Disconnected = false
	p.LastDisconnectedAt = nil
}

// Clone returns a deep copy.
func (p *Player) Clone() *Player {
	cp := *p
	cp.Hand = append([]Card(nil), p.Hand...)
	if p.LastDisconnectedAt != nil {
		t := *p.LastDisconnectedAt
		cp.LastDisconnectedAt = &t
	}
	return &cp
}
