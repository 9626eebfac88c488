package service

import (
	"context"

	"github.com/tiax/rankboard/internal/domain"
	"github.com/tiax/rankboard/internal/infra/storage"
)

// Implemented by internal/adapters/riot.Client.
type RankingAPI interface {
	SummonerByName(ctx context.Context, name string) (*domain.Account, error)
	LeagueEntries(ctx context.Context, summonerID string) ([]domain.RankEntry, error)
}

// Implemented by internal/infra/storage.FileStore.
type StateStore interface {
	LoadGuild(guildID string) (*storage.GuildState, error)
	SaveGuild(st *storage.GuildState) error
	LoadGuildIDs() ([]string, error)
	SaveGuildIDs(ids []string) error
}

// Implemented by internal/adapters/discord.Notifier. Delivery failures are
// logged by the caller, never retried.
type Notifier interface {
	Deliver(ctx context.Context, guildID, channelID string, queue domain.QueueType, rows []domain.Row) error
}
