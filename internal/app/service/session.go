package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tiax/rankboard/internal/domain"
	"github.com/tiax/rankboard/internal/infra/storage"
)

// DefaultQueue is the queue rendered for scheduled update pushes.
const DefaultQueue = domain.QueueSoloDuo

// SessionConfig carries the process-wide defaults a session starts from.
// Per-guild settings loaded from storage take precedence once present.
type SessionConfig struct {
	Clock quartz.Clock

	// RequestDelay is the pause between the resolve and entries calls for
	// one summoner. A tenth of it separates successive summoners. These are
	// a deliberate self-imposed rate limit; do not zero them in production.
	RequestDelay time.Duration

	DefaultInterval time.Duration
	MinInterval     time.Duration

	// DropAfterFailures is how many consecutive failed resolutions remove a
	// summoner from the roster. 1 drops on the first failure.
	DropAfterFailures int
}

func (c *SessionConfig) fill() {
	if c.Clock == nil {
		c.Clock = quartz.NewReal()
	}
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = time.Hour
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 15 * time.Minute
	}
	if c.DropAfterFailures <= 0 {
		c.DropAfterFailures = 1
	}
}

// GuildSession owns one guild's roster, cached rank data, last computed
// leaderboards, and update settings, and drives the periodic refresh cycle
// through its own heartbeat. All state access is serialized on one mutex;
// the session processes one refresh or mutating command at a time. Sessions
// for different guilds run fully independently.
type GuildSession struct {
	guildID  string
	api      RankingAPI
	store    StateStore
	notifier Notifier
	cfg      SessionConfig
	logger   zerolog.Logger

	mu    sync.Mutex
	state *storage.GuildState

	ctl sync.Mutex // serializes heartbeat stop/start sequences
	hb  *Heartbeat
}

// NewGuildSession loads the guild's persisted state (falling back to empty
// on a malformed file) and starts the refresh heartbeat.
func NewGuildSession(guildID string, api RankingAPI, store StateStore, notifier Notifier, cfg SessionConfig) *GuildSession {
	cfg.fill()
	logger := log.With().Str("component", "session").Str("guild", guildID).Logger()

	st, err := store.LoadGuild(guildID)
	if err != nil {
		logger.Error().Err(err).Msg("Could not load guild state, starting empty")
		st = storage.EmptyGuildState(guildID)
	}
	if st.Settings.UpdateIntervalSeconds <= 0 {
		st.Settings.UpdateIntervalSeconds = int(cfg.DefaultInterval / time.Second)
	}
	if st.Settings.DropAfterFailures <= 0 {
		st.Settings.DropAfterFailures = cfg.DropAfterFailures
	}

	g := &GuildSession{
		guildID:  guildID,
		api:      api,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		state:    st,
	}
	g.hb = NewHeartbeat(cfg.Clock, g.interval(), g.heartbeatAction, logger)
	g.hb.Start()
	return g
}

func (g *GuildSession) GuildID() string { return g.guildID }

// Close stops the heartbeat. An in-flight refresh completes first.
func (g *GuildSession) Close() { g.hb.Stop() }

func (g *GuildSession) interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Duration(g.state.Settings.UpdateIntervalSeconds) * time.Second
}

// Settings returns a copy of the current settings block.
func (g *GuildSession) Settings() storage.Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Settings
}

func (g *GuildSession) heartbeatAction(ctx context.Context) error {
	ok, failed, err := g.Refresh(ctx)
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Warn().Strs("failed", failed).Msg("Some summoners could not be refreshed")
	}
	return nil
}

// rosterNamesLocked returns roster keys in deterministic order. Go maps do
// not preserve insertion order, so name order stands in for it.
func (g *GuildSession) rosterNamesLocked() []string {
	names := make([]string, 0, len(g.state.Roster))
	for name := range g.state.Roster {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *GuildSession) rosterLocked() []*domain.Summoner {
	names := g.rosterNamesLocked()
	roster := make([]*domain.Summoner, 0, len(names))
	for _, name := range names {
		roster = append(roster, g.state.Roster[name])
	}
	return roster
}

// pause waits d on the session clock, honoring cancellation.
func (g *GuildSession) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := g.cfg.Clock.NewTimer(d, "pause")
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh re-fetches ranking data for every roster member, merges the
// results, recomputes the stored leaderboards, persists, and pushes a
// scheduled update when configured. Individual summoner failures never fail
// the cycle; they come back in the failed list. Only a persistence failure
// is returned as an error, and the in-memory state stays applied even then.
func (g *GuildSession) Refresh(ctx context.Context) (ok bool, failed []string, err error) {
	g.mu.Lock()
	ok, failed, notify, err := g.refreshLocked(ctx)
	g.mu.Unlock()
	if notify != nil {
		notify(ctx)
	}
	return ok, failed, err
}

func (g *GuildSession) refreshLocked(ctx context.Context) (bool, []string, func(context.Context), error) {
	var failed []string

	for i, name := range g.rosterNamesLocked() {
		if i > 0 {
			if err := g.pause(ctx, g.cfg.RequestDelay/10); err != nil {
				return false, failed, nil, err
			}
		}
		s := g.state.Roster[name]

		if !s.Resolved() {
			acct, err := g.api.SummonerByName(ctx, name)
			if err != nil {
				s.Failures++
				failed = append(failed, name)
				g.logger.Warn().Str("summoner", name).Int("failures", s.Failures).Err(err).
					Msg("Summoner resolution failed")
				continue
			}
			s.ID = acct.ID
			s.DisplayName = acct.Name
			if err := g.pause(ctx, g.cfg.RequestDelay); err != nil {
				return false, failed, nil, err
			}
		}
		s.Failures = 0

		entries, err := g.api.LeagueEntries(ctx, s.ID)
		if err != nil {
			// Keep the previous snapshot for this summoner.
			failed = append(failed, name)
			g.logger.Warn().Str("summoner", name).Err(err).Msg("Rank fetch failed, keeping old data")
			continue
		}
		m := make(map[domain.QueueType]domain.RankEntry, len(entries))
		for _, e := range entries {
			m[e.Queue] = e
		}
		s.Entries = m
	}

	// Drop summoners whose resolution keeps failing. With the threshold at
	// 1 this matches the original behavior of removing on the first failed
	// lookup; a higher threshold tolerates transient outages.
	for name, s := range g.state.Roster {
		if !s.Resolved() && s.Failures >= g.state.Settings.DropAfterFailures {
			delete(g.state.Roster, name)
			g.logger.Info().Str("summoner", name).Int("failures", s.Failures).
				Msg("Dropping summoner after repeated failed resolutions")
		}
	}

	// Recompute and store the per-queue leaderboards. Refresh is the only
	// operation that overwrites them; on-demand views never do.
	combined := domain.BuildLeaderboard(g.rosterLocked(), g.state.Settings.ShowUnranked)
	prevDefault := g.state.LastRanks[DefaultQueue]
	ranks := make(map[domain.QueueType][]domain.Row, len(domain.Queues))
	for _, q := range domain.Queues {
		ranks[q] = domain.ForQueue(combined, q)
	}
	g.state.LastRanks = ranks

	saveErr := g.store.SaveGuild(g.state)
	if saveErr != nil {
		g.logger.Error().Err(saveErr).Msg("Persisting guild state failed")
	}

	var notify func(context.Context)
	if saveErr == nil && g.state.Settings.SendUpdates && g.state.Settings.UpdatesChannel != "" {
		channel := g.state.Settings.UpdatesChannel
		rows := domain.ApplyMovement(prevDefault, ranks[DefaultQueue])
		notify = func(ctx context.Context) {
			if err := g.notifier.Deliver(ctx, g.guildID, channel, DefaultQueue, rows); err != nil {
				g.logger.Warn().Err(err).Str("channel", channel).Msg("Leaderboard update delivery failed")
			}
		}
	}

	return len(failed) == 0, failed, notify, saveErr
}

// Leaderboard renders the current leaderboard for one queue from cached
// data. With withDeltas set, rows carry movement against the last ranks
// stored by a refresh; the stored ranks are never overwritten here.
func (g *GuildSession) Leaderboard(queue domain.QueueType, withDeltas bool) []domain.Row {
	g.mu.Lock()
	defer g.mu.Unlock()

	combined := domain.BuildLeaderboard(g.rosterLocked(), g.state.Settings.ShowUnranked)
	rows := domain.ForQueue(combined, queue)
	if withDeltas {
		rows = domain.ApplyMovement(g.state.LastRanks[queue], rows)
	}
	return rows
}

// AddSummoner puts a name on the roster and refreshes the whole guild so
// the new member resolves immediately.
func (g *GuildSession) AddSummoner(ctx context.Context, name string) (failed []string, err error) {
	return g.AddSummoners(ctx, []string{name})
}

// AddSummoners bulk-adds names to the roster, then refreshes. Names that
// cannot be resolved come back in the failed list and are subject to the
// usual drop policy.
func (g *GuildSession) AddSummoners(ctx context.Context, names []string) (failed []string, err error) {
	g.mu.Lock()
	for _, name := range names {
		if _, exists := g.state.Roster[name]; !exists {
			g.state.Roster[name] = &domain.Summoner{Name: name}
		}
	}
	_, failed, notify, err := g.refreshLocked(ctx)
	g.mu.Unlock()
	if notify != nil {
		notify(ctx)
	}
	return failed, err
}

// RemoveSummoner deletes a name from the roster. It reports whether the
// name was present.
func (g *GuildSession) RemoveSummoner(name string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.state.Roster[name]; !ok {
		return false, nil
	}
	delete(g.state.Roster, name)
	return true, g.saveLocked()
}

// Wipe clears the roster and the stored leaderboards.
func (g *GuildSession) Wipe() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Roster = make(map[string]*domain.Summoner)
	g.state.LastRanks = make(map[domain.QueueType][]domain.Row)
	return g.saveLocked()
}

// ExportRoster returns the roster names, sorted.
func (g *GuildSession) ExportRoster() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rosterNamesLocked()
}

// SetShowUnranked toggles synthetic rows for summoners without a ranked
// entry. The in-memory change stays applied even if persisting fails.
func (g *GuildSession) SetShowUnranked(show bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.Settings.ShowUnranked = show
	return g.saveLocked()
}

// SetUpdates configures scheduled update pushes and reschedules the
// heartbeat. The interval is clamped to the configured floor.
func (g *GuildSession) SetUpdates(enabled bool, channelID string, interval time.Duration) error {
	interval = g.clamp(interval)

	g.mu.Lock()
	g.state.Settings.SendUpdates = enabled
	g.state.Settings.UpdatesChannel = channelID
	g.state.Settings.UpdateIntervalSeconds = int(interval / time.Second)
	err := g.saveLocked()
	g.mu.Unlock()

	g.reschedule(interval)
	return err
}

// ChangeInterval reschedules the heartbeat. Safe while a refresh is in
// flight: the running cycle completes, only future scheduling changes.
func (g *GuildSession) ChangeInterval(interval time.Duration) error {
	interval = g.clamp(interval)

	g.mu.Lock()
	g.state.Settings.UpdateIntervalSeconds = int(interval / time.Second)
	err := g.saveLocked()
	g.mu.Unlock()

	g.reschedule(interval)
	return err
}

func (g *GuildSession) clamp(interval time.Duration) time.Duration {
	if interval < g.cfg.MinInterval {
		return g.cfg.MinInterval
	}
	return interval
}

func (g *GuildSession) reschedule(interval time.Duration) {
	g.ctl.Lock()
	defer g.ctl.Unlock()
	g.hb.Stop()
	g.hb.SetInterval(interval)
	g.hb.Start()
}

func (g *GuildSession) saveLocked() error {
	if err := g.store.SaveGuild(g.state); err != nil {
		g.logger.Error().Err(err).Msg("Persisting guild state failed")
		return err
	}
	return nil
}
