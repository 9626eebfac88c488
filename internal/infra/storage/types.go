package storage

import (
	"errors"

	"github.com/tiax/rankboard/internal/domain"
)

// ErrCorrupt wraps parse failures so callers can tell a damaged state file
// apart from a missing one (missing files are simply zero state).
var ErrCorrupt = errors.New("corrupt state file")

// Settings is the per-guild configuration block, persisted alongside the
// roster but as its own tagged section, never mixed into the roster map.
type Settings struct {
	ShowUnranked          bool   `json:"showUnranked"`
	SendUpdates           bool   `json:"sendUpdates"`
	UpdatesChannel        string `json:"updatesChannel,omitempty"`
	UpdateIntervalSeconds int    `json:"updateIntervalSeconds"`
	DropAfterFailures     int    `json:"dropAfterFailures,omitempty"`
}

// GuildState is the on-disk snapshot of one guild: the roster keyed by the
// user-supplied summoner name, the last computed leaderboard per queue
// (kept only for the next movement comparison), and the settings block.
type GuildState struct {
	GuildID   string                            `json:"guildId"`
	Roster    map[string]*domain.Summoner       `json:"roster"`
	LastRanks map[domain.QueueType][]domain.Row `json:"lastRanks,omitempty"`
	Settings  Settings                          `json:"settings"`
}

// EmptyGuildState returns a usable zero state for a guild with no file yet.
func EmptyGuildState(guildID string) *GuildState {
	return &GuildState{
		GuildID:   guildID,
		Roster:    make(map[string]*domain.Summoner),
		LastRanks: make(map[domain.QueueType][]domain.Row),
	}
}
