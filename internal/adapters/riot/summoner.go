package riot

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tiax/rankboard/internal/domain"
)

type summonerDTO struct {
	ID            string `json:"id"`
	AccountID     string `json:"accountId"`
	PUUID         string `json:"puuid"`
	Name          string `json:"name"`
	SummonerLevel int    `json:"summonerLevel"`
}

type leagueEntryDTO struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// SummonerByName resolves a summoner by display name via Summoner-V4.
func (c *Client) SummonerByName(ctx context.Context, name string) (*domain.Account, error) {
	var dto summonerDTO
	path := fmt.Sprintf("/lol/summoner/v4/summoners/by-name/%s", url.PathEscape(name))
	if err := c.doJSON(ctx, "GET", path, nil, &dto); err != nil {
		return nil, err
	}
	return &domain.Account{
		ID:    dto.ID,
		PUUID: dto.PUUID,
		Name:  dto.Name,
		Level: dto.SummonerLevel,
	}, nil
}

// LeagueEntries fetches the current ranked entries for a resolved summoner
// id via League-V4. Entries for queues outside the tracked set are dropped.
func (c *Client) LeagueEntries(ctx context.Context, summonerID string) ([]domain.RankEntry, error) {
	var dtos []leagueEntryDTO
	path := fmt.Sprintf("/lol/league/v4/entries/by-summoner/%s", url.PathEscape(summonerID))
	if err := c.doJSON(ctx, "GET", path, nil, &dtos); err != nil {
		return nil, err
	}

	entries := make([]domain.RankEntry, 0, len(dtos))
	for _, d := range dtos {
		q := domain.QueueType(d.QueueType)
		if !q.Valid() {
			continue
		}
		entries = append(entries, domain.RankEntry{
			Queue:        q,
			Tier:         d.Tier,
			Division:     d.Rank,
			LeaguePoints: d.LeaguePoints,
			Wins:         d.Wins,
			Losses:       d.Losses,
		})
	}
	return entries, nil
}
