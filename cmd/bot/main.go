package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	discordnotify "github.com/tiax/rankboard/internal/adapters/discord"
	"github.com/tiax/rankboard/internal/adapters/riot"
	"github.com/tiax/rankboard/internal/app/service"
	"github.com/tiax/rankboard/internal/infra/config"
	"github.com/tiax/rankboard/internal/infra/logging"
	"github.com/tiax/rankboard/internal/infra/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not open data directory")
	}

	riotOpts := []riot.Option{}
	if cfg.RiotBaseURL != "" {
		riotOpts = append(riotOpts, riot.WithBaseURL(cfg.RiotBaseURL))
	}
	rc := riot.New(cfg.RiotAPIKey, riotOpts...)

	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(auth)), "bot ") {
		auth = "Bot " + strings.TrimSpace(auth)
	}
	s, err := discordgo.New(auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create Discord session")
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	if err := s.Open(); err != nil {
		log.Fatal().Err(err).Msg("Could not connect to Discord")
	}
	defer s.Close()
	log.Info().Str("user", s.State.User.Username).Str("id", s.State.User.ID).Msg("Connected to Discord")

	registry := service.NewSessionRegistry(rc, store, discordnotify.NewNotifier(s), service.SessionConfig{
		RequestDelay:    cfg.RequestDelay,
		DefaultInterval: cfg.UpdateInterval,
		MinInterval:     cfg.MinUpdateInterval,
	})
	if err := registry.LoadKnown(); err != nil {
		log.Error().Err(err).Msg("Could not restore known guilds")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop

	log.Info().Msg("Shutting down")
	registry.Close()
	if err := registry.SaveAll(); err != nil {
		log.Error().Err(err).Msg("Could not save guild registry")
	}
}
