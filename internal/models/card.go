// internal/models/card.go
package models

import (
	"fmt"
	"strings"
)

// Suit is one of the four French suits.
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// Suits lists every suit in deck construction order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

var suitNames = [...]string{"Spades", "Hearts", "Diamonds", "Clubs"}

func (s Suit) String() string {
	if s < Spades || s > Clubs {
		return fmt.Sprintf("Suit(%d)", int(s))
	}
	return suitNames[s]
}

// Valid reports whether s is one of the four suits.
func (s Suit) Valid() bool {
	return s >= Spades && s <= Clubs
}

// MarshalText encodes the suit by name, e.g. "Hearts".
func (s Suit) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid suit %d", int(s))
	}
	return []byte(suitNames[s]), nil
}

// UnmarshalText accepts the suit name case-insensitively, or its symbol.
func (s *Suit) UnmarshalText(b []byte) error {
	v, err := ParseSuit(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSuit converts a name ("hearts") or symbol ("♥") into a Suit.
func ParseSuit(v string) (Suit, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "spades", "♠":
		return Spades, nil
	case "hearts", "♥":
		return Hearts, nil
	case "diamonds", "♦":
		return Diamonds, nil
	case "clubs", "♣":
		return Clubs, nil
	}
	return 0, fmt.Errorf("unknown suit %q", v)
}

// Rank is a card rank of the 36-card pack. The numeric value is the rank order,
// so Six < Seven < ... < Ace compares directly.
type Rank int

const (
	Six Rank = iota + 6
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Ranks lists every rank from lowest to highest.
var Ranks = []Rank{Six, Seven, Eight, Nine, Ten, Jack, Queen, King, Ace}

var rankNames = map[Rank]string{
	Six: "6", Seven: "7", Eight: "8", Nine: "9", Ten: "10",
	Jack: "Jack", Queen: "Queen", King: "King", Ace: "Ace",
}

func (r Rank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Rank(%d)", int(r))
}

// Valid reports whether r is a rank of the 36-card pack.
func (r Rank) Valid() bool {
	return r >= Six && r <= Ace
}

// MarshalText encodes the rank the way clients display it: "6".."10", "Jack".."Ace".
func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rank %d", int(r))
	}
	return []byte(rankNames[r]), nil
}

// UnmarshalText accepts "6".."10", full face names or their initials.
func (r *Rank) UnmarshalText(b []byte) error {
	v, err := ParseRank(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRank converts a textual rank into a Rank.
func ParseRank(v string) (Rank, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "6":
		return Six, nil
	case "7":
		return Seven, nil
	case "8":
		return Eight, nil
	case "9":
		return Nine, nil
	case "10", "t":
		return Ten, nil
	case "jack", "j":
		return Jack, nil
	case "queen", "q":
		return Queen, nil
	case "king", "k":
		return King, nil
	case "ace", "a":
		return Ace, nil
	}
	return 0, fmt.Errorf("unknown rank %q", v)
}

// Card is an immutable playing card. Two cards are equal iff rank and suit match.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) String() string {
	return c.Rank.String() + " of " + c.Suit.String()
}

// Valid reports whether both rank and suit are in range.
func (c Card) Valid() bool {
	return c.Rank.Valid() && c.Suit.Valid()
}

// Trump is the card turned at game start and the suit it fixes for the whole game.
type Trump struct {
	Card Card `json:"card"`
	Suit Suit `json:"suit"`
}

// TablePair is one attack on the table and its defense, if any.
type TablePair struct {
	Attack  Card  `json:"attack"`
	Defense *Card `json:"defense"`
}

// Defended reports whether the attack has been beaten.
func (p TablePair) Defended() bool {
	return p.Defense != nil
}
