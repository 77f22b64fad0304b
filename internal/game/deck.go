// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/jason-s-yu/durak/internal/models"
)

// DeckSize is the number of cards in a Durak pack (ranks 6 through Ace).
const DeckSize = 36

// NewDeck returns the 36-card pack in suit-major order.
func NewDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, suit := range models.Suits {
		for _, rank := range models.Ranks {
			deck = append(deck, models.Card{Rank: rank, Suit: suit})
		}
	}
	return deck
}

// NewShuffledDeck builds the pack and applies a Fisher-Yates shuffle driven by r.
func NewShuffledDeck(r *rand.Rand) []models.Card {
	deck := NewDeck()
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}

// SelectTrump picks a card uniformly at random, moves it to the bottom of the
// deck so it is dealt last, and returns it as the trump. The input slice is not modified.
func SelectTrump(deck []models.Card, r *rand.Rand) (models.Trump, []models.Card) {
	out := append([]models.Card(nil), deck...)
	if len(out) == 0 {
		return models.Trump{}, out
	}
	idx := r.Intn(len(out))
	card := out[idx]
	out = append(out[:idx], out[idx+1:]...)
	out = append(out, card)
	return models.Trump{Card: card, Suit: card.Suit}, out
}

// draw tops hand up to size from the front of deck and returns both.
func draw(hand, deck []models.Card, size int) ([]models.Card, []models.Card) {
	for len(hand) < size && len(deck) > 0 {
		hand = append(hand, deck[0])
		deck = deck[1:]
	}
	return hand, deck
}
