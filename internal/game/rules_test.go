// internal/game/rules_test.go
package game

import (
	"testing"

	"github.com/jason-s-yu/durak/internal/models"
	"github.com/stretchr/testify/assert"
)

func c(rank models.Rank, suit models.Suit) models.Card {
	return models.Card{Rank: rank, Suit: suit}
}

func TestIsLegalAttack(t *testing.T) {
	sixHearts := c(models.Six, models.Hearts)
	assert.True(t, IsLegalAttack(sixHearts, nil), "anything opens an empty table")

	table := []models.TablePair{{Attack: c(models.Six, models.Spades)}}
	assert.True(t, IsLegalAttack(sixHearts, table))
	assert.False(t, IsLegalAttack(c(models.Seven, models.Spades), table))

	def := c(models.Nine, models.Spades)
	table[0].Defense = &def
	assert.True(t, IsLegalAttack(c(models.Nine, models.Diamonds), table), "defense ranks count too")
}

func TestIsLegalDefense(t *testing.T) {
	tests := []struct {
		name    string
		defense models.Card
		attack  models.Card
		want    bool
	}{
		{"same suit higher", c(models.Eight, models.Hearts), c(models.Six, models.Hearts), true},
		{"same suit lower", c(models.Six, models.Hearts), c(models.Eight, models.Hearts), false},
		{"same suit equal", c(models.Six, models.Hearts), c(models.Six, models.Hearts), false},
		{"trump beats non-trump", c(models.Six, models.Spades), c(models.Six, models.Hearts), true},
		{"trump beats ace", c(models.Six, models.Spades), c(models.Ace, models.Hearts), true},
		{"other non-trump suit", c(models.Seven, models.Diamonds), c(models.Six, models.Hearts), false},
		{"non-trump vs trump", c(models.Ace, models.Hearts), c(models.Six, models.Spades), false},
		{"higher trump vs trump", c(models.Seven, models.Spades), c(models.Six, models.Spades), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLegalDefense(tt.defense, tt.attack, models.Spades))
		})
	}
}

func TestLowestTrumpOnlyHolderWins(t *testing.T) {
	players := []*models.Player{
		{ID: "a", Hand: []models.Card{c(models.Ace, models.Hearts), c(models.King, models.Clubs)}},
		{ID: "b", Hand: []models.Card{c(models.Seven, models.Diamonds)}},
		{ID: "c", Hand: []models.Card{c(models.Six, models.Spades)}},
	}
	id, ok := lowestTrump(players, models.Spades)
	assert.True(t, ok)
	assert.Equal(t, "c", id)
}

func TestLowestTrumpPicksLowestRank(t *testing.T) {
	players := []*models.Player{
		{ID: "a", Hand: []models.Card{c(models.Queen, models.Clubs)}},
		{ID: "b", Hand: []models.Card{c(models.Seven, models.Clubs), c(models.Ace, models.Clubs)}},
		{ID: "c", Hand: []models.Card{c(models.Nine, models.Clubs)}},
	}
	id, ok := lowestTrump(players, models.Clubs)
	assert.True(t, ok)
	assert.Equal(t, "b", id)

	_, ok = lowestTrump(players, models.Hearts)
	assert.False(t, ok)
}

func TestNextAfterWraps(t *testing.T) {
	order := []*models.Player{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	assert.Equal(t, "b", nextAfter(order, "a", 1).ID)
	assert.Equal(t, "a", nextAfter(order, "c", 1).ID)
	assert.Equal(t, "b", nextAfter(order, "c", 2).ID)
	assert.Equal(t, "a", nextAfter(order, "missing", 1).ID)
	assert.Nil(t, nextAfter(nil, "a", 1))
}

func TestNextAfterSkipsDisconnectedSeats(t *testing.T) {
	seats := []*models.Player{{ID: "a"}, {ID: "b"}, {ID: "c", Disconnected: true}, {ID: "d"}}
	assert.Equal(t, "d", nextAfter(seats, "b", 1).ID)
	assert.Equal(t, "a", nextAfter(seats, "b", 2).ID)
	assert.Equal(t, "d", nextAfter(seats, "c", 1).ID, "a disconnected anchor keeps its place")
	assert.Equal(t, "a", nextAfter(seats, "c", 2).ID)
	assert.Equal(t, "b", nextAfter(seats, "a", 4).ID, "wraps more than once")

	gone := []*models.Player{{ID: "a", Disconnected: true}}
	assert.Nil(t, nextAfter(gone, "a", 1))
}

func TestDefaultHouseRules(t *testing.T) {
	r := DefaultHouseRules()
	assert.Equal(t, 6, r.MaxPlayers)
	assert.Equal(t, 6, r.HandSize)
	assert.Equal(t, 12, r.TableLimit)
	assert.True(t, r.SkipOnFailedDefense)
	assert.Equal(t, int64(30000), r.TurnTimeout.Milliseconds())
}
