package domain

import (
	"sort"

	"github.com/rs/zerolog/log"
)

// Movement marks how a row moved relative to the previous leaderboard.
type Movement int

const (
	MoveNone Movement = iota
	MoveUp
	MoveDown
)

// Row is one rendered leaderboard line. Position is 1-based and assigned
// per queue, after filtering; Movement/Delta are only set by ApplyMovement.
type Row struct {
	Position int       `json:"position"`
	Name     string    `json:"name"`
	Queue    QueueType `json:"queue"`
	Score    int       `json:"score"`
	RankText string    `json:"rankText"`
	Wins     int       `json:"wins"`
	Losses   int       `json:"losses"`

	Movement Movement `json:"-"`
	Delta    int      `json:"-"`
}

// BuildLeaderboard flattens the roster into a single ordered sequence of
// rows across all queues, strongest first. Summoners without an entry for a
// queue only appear there when includeUnranked is set, as a zero-score
// "Unranked" row. Entries with tiers or divisions outside the known
// orderings are skipped with a warning rather than aborting the build.
// The sort is stable, so exact score ties keep roster order.
func BuildLeaderboard(roster []*Summoner, includeUnranked bool) []Row {
	var rows []Row
	for _, s := range roster {
		for _, q := range Queues {
			entry, ok := s.Entries[q]
			if !ok {
				if includeUnranked {
					rows = append(rows, Row{
						Name:     s.ShownName(),
						Queue:    q,
						RankText: "Unranked",
					})
				}
				continue
			}
			score, err := Score(entry.Tier, entry.Division, entry.LeaguePoints)
			if err != nil {
				log.Warn().
					Str("summoner", s.Name).
					Str("queue", string(q)).
					Err(err).
					Msg("Skipping entry with unrecognized tier or division")
				continue
			}
			rows = append(rows, Row{
				Name:     s.ShownName(),
				Queue:    q,
				Score:    score,
				RankText: entry.Text(),
				Wins:     entry.Wins,
				Losses:   entry.Losses,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	return rows
}

// ForQueue filters a combined leaderboard down to one queue and assigns
// 1-based positions.
func ForQueue(rows []Row, queue QueueType) []Row {
	var out []Row
	for _, r := range rows {
		if r.Queue != queue {
			continue
		}
		r.Position = len(out) + 1
		out = append(out, r)
	}
	return out
}

// ApplyMovement annotates cur with up/down indicators by locating each row's
// name in prev, the last leaderboard computed for the same queue. Rows absent
// from prev are new entrants and stay unannotated. Inputs are not modified.
func ApplyMovement(prev, cur []Row) []Row {
	out := make([]Row, len(cur))
	copy(out, cur)
	for i := range out {
		prevPos := -1
		for j := range prev {
			if prev[j].Name == out[i].Name {
				prevPos = j
				break
			}
		}
		if prevPos < 0 {
			continue
		}
		switch {
		case i < prevPos:
			out[i].Movement = MoveUp
			out[i].Delta = prevPos - i
		case i > prevPos:
			out[i].Movement = MoveDown
			out[i].Delta = i - prevPos
		}
	}
	return out
}
