package domain

import (
	"errors"
	"fmt"
)

// Tiers in ascending strength. The index doubles as the coarse score component.
var Tiers = []string{
	"UNRANKED", "IRON", "BRONZE", "SILVER", "GOLD",
	"PLATINUM", "DIAMOND", "MASTER", "GRANDMASTER", "CHALLENGER",
}

// Divisions in ascending strength within a tier (IV is the weakest).
var Divisions = []string{"IV", "III", "II", "I"}

// MASTER and above carry no meaningful division.
const apexTier = "MASTER"

var (
	ErrUnknownTier     = errors.New("unknown tier")
	ErrUnknownDivision = errors.New("unknown division")
)

// RankEntry is one queue's ranked standing for a summoner, as fetched from
// the remote service.
type RankEntry struct {
	Queue        QueueType `json:"queueType"`
	Tier         string    `json:"tier"`
	Division     string    `json:"rank"`
	LeaguePoints int       `json:"leaguePoints"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
}

// Text renders the entry the way it appears on a leaderboard row.
func (e RankEntry) Text() string {
	return fmt.Sprintf("%s %s %d LP", e.Tier, e.Division, e.LeaguePoints)
}

func tierIndex(tier string) int {
	for i, t := range Tiers {
		if t == tier {
			return i
		}
	}
	return -1
}

func divisionIndex(division string) int {
	for i, d := range Divisions {
		if d == division {
			return i
		}
	}
	return -1
}

// Score collapses (tier, division, points) into a single comparable value.
// Any tier beats any division/points of a lower tier, and any division beats
// any points of a lower division within the same tier. Tiers from MASTER up
// have no division concept, so an unrecognized division there scores as 0
// rather than failing.
func Score(tier, division string, leaguePoints int) (int, error) {
	ti := tierIndex(tier)
	if ti < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	di := divisionIndex(division)
	if di < 0 {
		if ti >= tierIndex(apexTier) {
			di = 0
		} else {
			return 0, fmt.Errorf("%w: %q", ErrUnknownDivision, division)
		}
	}
	return ti*100000 + di*10000 + leaguePoints, nil
}
