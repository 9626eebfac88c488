package service

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// SessionRegistry owns every guild session for the process lifetime, keyed
// by guild id. Sessions are constructed lazily on first reference and never
// evicted. The registry persists only the membership list; each session
// persists its own state.
type SessionRegistry struct {
	api      RankingAPI
	store    StateStore
	notifier Notifier
	cfg      SessionConfig

	mu       sync.Mutex
	sessions map[string]*GuildSession
}

func NewSessionRegistry(api RankingAPI, store StateStore, notifier Notifier, cfg SessionConfig) *SessionRegistry {
	cfg.fill()
	return &SessionRegistry{
		api:      api,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		sessions: make(map[string]*GuildSession),
	}
}

// Get returns the session for a guild, constructing it on first use. A new
// session loads its persisted state and starts its heartbeat.
func (r *SessionRegistry) Get(guildID string) *GuildSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s
	}
	s := NewGuildSession(guildID, r.api, r.store, r.notifier, r.cfg)
	r.sessions[guildID] = s
	return s
}

// LoadKnown constructs sessions for every guild id in the persisted
// membership list. Called once at process start.
func (r *SessionRegistry) LoadKnown() error {
	ids, err := r.store.LoadGuildIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		r.Get(id)
	}
	log.Info().Int("guilds", len(ids)).Msg("Guild sessions restored")
	return nil
}

// SaveAll persists the membership list.
func (r *SessionRegistry) SaveAll() error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return r.store.SaveGuildIDs(ids)
}

// Close stops every session's heartbeat. In-flight refreshes complete.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := make([]*GuildSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
