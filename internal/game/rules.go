// internal/game/rules.go
package game

import (
	"time"

	"github.com/jason-s-yu/durak/internal/models"
)

// HouseRules holds the table policy a room is played under.
type HouseRules struct {
	MaxPlayers  int           `json:"maxPlayers"`  // seats per room
	HandSize    int           `json:"handSize"`    // cards dealt and topped up to
	TableLimit  int           `json:"tableLimit"`  // max attack pairs on the table per round
	TurnTimeout time.Duration `json:"turnTimeout"` // defender is forced to take after this long; 0 disables the timer

	// SkipOnFailedDefense makes an EndTurn with open attacks behave exactly like
	// TakeCards. When false the defender still takes the table but play moves
	// forward from the current attacker.
	SkipOnFailedDefense bool `json:"skipOnFailedDefense"`
}

// DefaultHouseRules returns the standard policy: 6 seats, 6-card hands,
// 12 pairs on the table, a 30 second turn, skip on failed defense.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		MaxPlayers:          6,
		HandSize:            6,
		TableLimit:          12,
		TurnTimeout:         30 * time.Second,
		SkipOnFailedDefense: true,
	}
}

// IsLegalAttack reports whether card may be added to the table: always on an
// empty table, otherwise only if its rank already lies on the table.
func IsLegalAttack(card models.Card, table []models.TablePair) bool {
	if len(table) == 0 {
		return true
	}
	for _, pair := range table {
		if pair.Attack.Rank == card.Rank {
			return true
		}
		if pair.Defense != nil && pair.Defense.Rank == card.Rank {
			return true
		}
	}
	return false
}

// IsLegalDefense reports whether defense beats attack: a higher card of the same
// suit, or any trump against a non-trump.
func IsLegalDefense(defense, attack models.Card, trump models.Suit) bool {
	if defense.Suit == attack.Suit {
		return defense.Rank > attack.Rank
	}
	return defense.Suit == trump && attack.Suit != trump
}

// lowestTrump scans players in order and returns the id of the one holding the
// lowest trump. The first player scanned keeps priority on equal ranks.
func lowestTrump(players []*models.Player, trump models.Suit) (string, bool) {
	var (
		holder string
		lowest models.Rank
		found  bool
	)
	for _, p := range players {
		for _, c := range p.Hand {
			if c.Suit != trump {
				continue
			}
			if !found || c.Rank < lowest {
				holder, lowest, found = p.ID, c.Rank, true
			}
		}
	}
	return holder, found
}

// nextAfter walks seats from id and returns the connected seat steps places
// on, wrapping around. Disconnected seats are skipped, but id itself may be
// disconnected. If id is not seated, counting starts just before the first seat.
func nextAfter(seats []*models.Player, id string, steps int) *models.Player {
	if steps < 1 || !anyConnected(seats) {
		return nil
	}
	idx := -1
	for i, p := range seats {
		if p.ID == id {
			idx = i
			break
		}
	}
	for i := idx + 1; ; i++ {
		p := seats[i%len(seats)]
		if p.Disconnected {
			continue
		}
		if steps--; steps == 0 {
			return p
		}
	}
}

func anyConnected(seats []*models.Player) bool {
	for _, p := range seats {
		if !p.Disconnected {
			return true
		}
	}
	return false
}
