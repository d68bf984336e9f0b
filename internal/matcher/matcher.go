// Package matcher draws a random constrained assignment of givers to
// receivers.
//
// A pair (giver, receiver) is valid when both sides are different people
// and belong to different categories. Draw shuffles every valid pair and
// commits them first-fit, without backtracking: it may fail on an input that
// admits a valid assignment, in which case the caller can draw again.
package matcher

import (
	"errors"

	"santa/internal/models"
)

// ErrDrawInfeasible is returned when the greedy scan could not match every
// participant.
var ErrDrawInfeasible = errors.New("matcher: unable to build a valid draw with the current constraints")

// Shuffler is the random source consumed by Draw. *rand.Rand from math/rand
// and math/rand/v2 both satisfy it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type candidate struct {
	giver, receiver int
}

func validCandidates(participants []models.Participant) []candidate {
	var pairs []candidate
	for i, giver := range participants {
		for j, receiver := range participants {
			if giver.Identity() == receiver.Identity() || giver.Category == receiver.Category {
				continue
			}
			pairs = append(pairs, candidate{giver: i, receiver: j})
		}
	}
	return pairs
}

// GenerateValidPairs returns every ordered (giver, receiver) pair allowed by
// the identity and category rules.
func GenerateValidPairs(participants []models.Participant) []models.Pair {
	candidates := validCandidates(participants)
	pairs := make([]models.Pair, 0, len(candidates))
	for _, c := range candidates {
		pairs = append(pairs, models.Pair{Giver: participants[c.giver], Receiver: participants[c.receiver]})
	}
	return pairs
}

// Draw assigns a receiver to every participant. On failure no partial
// assignment is returned.
func Draw(participants []models.Participant, rng Shuffler) (models.Assignment, error) {
	candidates := validCandidates(participants)
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	n := len(participants)
	receiverOf := make(map[int]int, n)
	taken := make(map[int]bool, n)
	for _, c := range candidates {
		if len(receiverOf) == n {
			break
		}
		if _, ok := receiverOf[c.giver]; ok || taken[c.receiver] {
			continue
		}
		receiverOf[c.giver] = c.receiver
		taken[c.receiver] = true
	}

	if len(receiverOf) != n {
		return nil, ErrDrawInfeasible
	}

	assignment := make(models.Assignment, 0, n)
	for giver := range participants {
		assignment = append(assignment, models.Pair{
			Giver:    participants[giver],
			Receiver: participants[receiverOf[giver]],
		})
	}
	return assignment, nil
}
