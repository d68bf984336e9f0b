package models

import (
	"fmt"
	"strings"
)

// Identity is the (last name, first name) pair that uniquely identifies a
// participant within one draw.
type Identity struct {
	LastName  string `json:"lastName"`
	FirstName string `json:"firstName"`
}

func (id Identity) String() string {
	return fmt.Sprintf("%s %s", id.FirstName, id.LastName)
}

// Participant represents a person entering the draw.
// An empty Category is the "unset" category: two participants without a
// category compare as the same category and are never paired together.
type Participant struct {
	LastName  string `json:"lastName" binding:"required" validate:"required"`
	FirstName string `json:"firstName" binding:"required" validate:"required"`
	Category  string `json:"category"`
	Email     string `json:"email" binding:"omitempty,email" validate:"omitempty,email"`
}

// Identity returns the participant's identity key.
func (p Participant) Identity() Identity {
	return Identity{LastName: p.LastName, FirstName: p.FirstName}
}

// Trimmed returns p with surrounding whitespace removed from every field, so
// a blank category is the unset category.
func (p Participant) Trimmed() Participant {
	return Participant{
		LastName:  strings.TrimSpace(p.LastName),
		FirstName: strings.TrimSpace(p.FirstName),
		Category:  strings.TrimSpace(p.Category),
		Email:     strings.TrimSpace(p.Email),
	}
}

// Pair links a giver to the receiver they must offer a gift to.
type Pair struct {
	Giver    Participant `json:"giver"`
	Receiver Participant `json:"receiver"`
}

// Assignment is the result of a successful draw. Its order carries no meaning.
type Assignment []Pair

// ReceiverOf returns the receiver assigned to the given giver.
func (a Assignment) ReceiverOf(giver Identity) (Participant, bool) {
	for _, p := range a {
		if p.Giver.Identity() == giver {
			return p.Receiver, true
		}
	}
	return Participant{}, false
}

// DrawResult stores the outcome of a draw for one tenant.
type DrawResult struct {
	ID         string     `json:"id"`
	Attempts   int        `json:"attempts"`
	Assignment Assignment `json:"assignment"`
}
