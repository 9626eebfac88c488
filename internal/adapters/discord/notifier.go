// Package discord delivers rendered leaderboards to configured channels.
package discord

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/tiax/rankboard/internal/domain"
)

// Notifier pushes leaderboard embeds through a shared Discord session.
type Notifier struct {
	s *discordgo.Session
}

func NewNotifier(s *discordgo.Session) *Notifier {
	return &Notifier{s: s}
}

// Deliver renders the rows as a monospace table and sends them to the
// guild's configured updates channel.
func (n *Notifier) Deliver(ctx context.Context, guildID, channelID string, queue domain.QueueType, rows []domain.Row) error {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("Leaderboard %s", queue.DisplayName()),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "⠀",
				Value: "```\n" + RenderTable(rows) + "```",
			},
		},
	}
	if _, err := n.s.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send leaderboard: %w", err)
	}
	log.Debug().Str("guild", guildID).Str("channel", channelID).Int("rows", len(rows)).
		Msg("Leaderboard update sent")
	return nil
}

// RenderTable formats rows into an aligned text table with movement markers.
func RenderTable(rows []domain.Row) string {
	if len(rows) == 0 {
		return "No ranked players yet.\n"
	}
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Spot\tName\tRank\tWins\tLosses")
	for _, r := range rows {
		spot := fmt.Sprintf("%d", r.Position)
		switch r.Movement {
		case domain.MoveUp:
			spot = fmt.Sprintf("▲%d %d", r.Delta, r.Position)
		case domain.MoveDown:
			spot = fmt.Sprintf("▼%d %d", r.Delta, r.Position)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", spot, r.Name, r.RankText, r.Wins, r.Losses)
	}
	w.Flush()
	return sb.String()
}
