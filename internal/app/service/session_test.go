package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiax/rankboard/internal/domain"
	"github.com/tiax/rankboard/internal/infra/storage"
)

type fakeAPI struct {
	mu         sync.Mutex
	accounts   map[string]*domain.Account
	entries    map[string][]domain.RankEntry
	resolveErr map[string]error
	entriesErr map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		accounts:   make(map[string]*domain.Account),
		entries:    make(map[string][]domain.RankEntry),
		resolveErr: make(map[string]error),
		entriesErr: make(map[string]error),
	}
}

func (f *fakeAPI) addPlayer(name, tier, div string, lp int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "id-" + name
	f.accounts[name] = &domain.Account{ID: id, Name: name}
	f.entries[id] = []domain.RankEntry{{
		Queue: domain.QueueSoloDuo, Tier: tier, Division: div, LeaguePoints: lp, Wins: 1, Losses: 1,
	}}
}

func (f *fakeAPI) SummonerByName(_ context.Context, name string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.resolveErr[name]; err != nil {
		return nil, err
	}
	if a, ok := f.accounts[name]; ok {
		return a, nil
	}
	return nil, assert.AnError
}

func (f *fakeAPI) LeagueEntries(_ context.Context, summonerID string) ([]domain.RankEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.entriesErr[summonerID]; err != nil {
		return nil, err
	}
	return f.entries[summonerID], nil
}

// fakeStore keeps serialized state in memory; going through JSON keeps its
// behavior honest about what actually persists.
type fakeStore struct {
	mu       sync.Mutex
	guilds   map[string][]byte
	ids      []byte
	saves    int
	saveErr  error
	loadErrs map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{guilds: make(map[string][]byte), loadErrs: make(map[string]error)}
}

func (f *fakeStore) LoadGuild(guildID string) (*storage.GuildState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadErrs[guildID]; err != nil {
		return nil, err
	}
	data, ok := f.guilds[guildID]
	if !ok {
		return storage.EmptyGuildState(guildID), nil
	}
	var st storage.GuildState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.Roster == nil {
		st.Roster = make(map[string]*domain.Summoner)
	}
	if st.LastRanks == nil {
		st.LastRanks = make(map[domain.QueueType][]domain.Row)
	}
	return &st, nil
}

func (f *fakeStore) SaveGuild(st *storage.GuildState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	f.guilds[st.GuildID] = data
	return nil
}

func (f *fakeStore) LoadGuildIDs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ids == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(f.ids, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (f *fakeStore) SaveGuildIDs(ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	f.ids = data
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type delivery struct {
	guildID, channelID string
	queue              domain.QueueType
	rows               []domain.Row
}

type fakeNotifier struct {
	mu         sync.Mutex
	deliveries []delivery
	err        error
}

func (f *fakeNotifier) Deliver(_ context.Context, guildID, channelID string, queue domain.QueueType, rows []domain.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, delivery{guildID, channelID, queue, rows})
	return f.err
}

func (f *fakeNotifier) all() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.deliveries...)
}

func newTestSession(t *testing.T, api RankingAPI, store StateStore, notifier Notifier) *GuildSession {
	t.Helper()
	g := NewGuildSession("g1", api, store, notifier, SessionConfig{
		RequestDelay: 0, // tests must not slow down on the self throttle
	})
	t.Cleanup(g.Close)
	return g
}

func TestRefreshPartialResolutionFailure(t *testing.T) {
	api := newFakeAPI()
	api.addPlayer("Alice", "GOLD", "II", 40)
	api.addPlayer("Carol", "SILVER", "I", 99)
	api.resolveErr["Bob"] = assert.AnError

	store := newFakeStore()
	g := newTestSession(t, api, store, &fakeNotifier{})

	failed, err := g.AddSummoners(context.Background(), []string{"Alice", "Bob", "Carol"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, failed)

	// Bob was dropped; the others resolved and got rank data.
	assert.Equal(t, []string{"Alice", "Carol"}, g.ExportRoster())
	rows := g.Leaderboard(domain.QueueSoloDuo, false)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0].Name)
	assert.Equal(t, "GOLD II 40 LP", rows[0].RankText)
	assert.Equal(t, "Carol", rows[1].Name)

	// Dropping survives persistence.
	st, err := store.LoadGuild("g1")
	require.NoError(t, err)
	assert.NotContains(t, st.Roster, "Bob")
}

func TestRefreshRankFetchFailureKeepsOldData(t *testing.T) {
	api := newFakeAPI()
	api.addPlayer("Alice", "GOLD", "II", 40)

	store := newFakeStore()
	g := newTestSession(t, api, store, &fakeNotifier{})

	_, err := g.AddSummoner(context.Background(), "Alice")
	require.NoError(t, err)

	// Later cycles fail only the rank fetch: the summoner stays on the
	// roster and keeps the previous snapshot.
	api.mu.Lock()
	api.entriesErr["id-Alice"] = assert.AnError
	api.mu.Unlock()

	ok, failed, err := g.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"Alice"}, failed)
	assert.Equal(t, []string{"Alice"}, g.ExportRoster())

	rows := g.Leaderboard(domain.QueueSoloDuo, false)
	require.Len(t, rows, 1)
	assert.Equal(t, "GOLD II 40 LP", rows[0].RankText)
}

func TestRefreshDropAfterFailuresThreshold(t *testing.T) {
	api := newFakeAPI()
	api.resolveErr["Flaky"] = assert.AnError

	store := newFakeStore()
	g := NewGuildSession("g1", api, store, &fakeNotifier{}, SessionConfig{
		DropAfterFailures: 2,
	})
	t.Cleanup(g.Close)

	failed, err := g.AddSummoner(context.Background(), "Flaky")
	require.NoError(t, err)
	assert.Equal(t, []string{"Flaky"}, failed)
	// One failure is below the threshold.
	assert.Equal(t, []string{"Flaky"}, g.ExportRoster())

	_, _, err = g.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, g.ExportRoster())
}

func TestRefreshSendsUpdate(t *testing.T) {
	api := newFakeAPI()
	api.addPlayer("Alice", "GOLD", "II", 40)

	store := newFakeStore()
	notifier := &fakeNotifier{}
	g := newTestSession(t, api, store, notifier)

	require.NoError(t, g.SetUpdates(true, "chan-9", time.Hour))

	_, err := g.AddSummoner(context.Background(), "Alice")
	require.NoError(t, err)

	deliveries := notifier.all()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "g1", deliveries[0].guildID)
	assert.Equal(t, "chan-9", deliveries[0].channelID)
	assert.Equal(t, DefaultQueue, deliveries[0].queue)
	require.Len(t, deliveries[0].rows, 1)
	assert.Equal(t, "Alice", deliveries[0].rows[0].Name)
}

func TestRefreshNoUpdateWithoutChannel(t *testing.T) {
	api := newFakeAPI()
	api.addPlayer("Alice", "GOLD", "II", 40)

	notifier := &fakeNotifier{}
	g := newTestSession(t, api, newFakeStore(), notifier)

	_, err := g.AddSummoner(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Empty(t, notifier.all())
}

func TestRefreshComputesMovement(t *testing.T) {
	api := newFakeAPI()
	api.addPlayer("Alice", "GOLD", "II", 40)
	api.addPlayer("Bob", "SILVER", "I", 10)

	notifier := &fakeNotifier{}
	g := newTestSession(t, api, newFakeStore(), notifier)
	require.NoError(t, g.SetUpdates(true, "chan", time.Hour))

	_, err := g.AddSummoners(context.Background(), []string{"Alice", "Bob"})
	require.NoError(t, err)

	// Bob overtakes Alice before the next cycle.
	api.addPlayer("Bob", "PLATINUM", "IV", 1)

	_, _, err = g.Refresh(context.Background())
	require.NoError(t, err)

	deliveries := notifier.all()
	require.Len(t, deliveries, 2)
	rows := deliveries[1].rows
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob", rows[0].Name)
	assert.Equal(t, domain.MoveUp, rows[0].Movement)
	assert.Equal(t, 1, rows[0].Delta)
	assert.Equal(t, "Alice", rows[1].Name)
	assert.Equal(t, domain.MoveDown, rows[1].Movement)
}

func TestLeaderboardViewDoesNotOverwriteLastRanks(t *testing.T) {
	api := newFakeAPI()
	api.addPlayer("Alice", "GOLD", "II", 40)

	store := newFakeStore()
	g := newTestSession(t, api, store, &fakeNotifier{})

	_, err := g.AddSummoner(context.Background(), "Alice")
	require.NoError(t, err)

	saves := store.saveCount()
	g.Leaderboard(domain.QueueSoloDuo, true)
	g.Leaderboard(domain.QueueFlex, false)
	assert.Equal(t, saves, store.saveCount(), "on-demand views must not persist anything")
}

func TestPersistenceFailureSurfacedButStateApplied(t *testing.T) {
	api := newFakeAPI()
	api.addPlayer("Alice", "GOLD", "II", 40)

	store := newFakeStore()
	store.saveErr = assert.AnError
	g := newTestSession(t, api, store, &fakeNotifier{})

	_, err := g.AddSummoner(context.Background(), "Alice")
	assert.ErrorIs(t, err, assert.AnError)
	// The in-memory mutation stays applied.
	assert.Equal(t, []string{"Alice"}, g.ExportRoster())
}

func TestSetUpdatesClampsInterval(t *testing.T) {
	g := newTestSession(t, newFakeAPI(), newFakeStore(), &fakeNotifier{})

	require.NoError(t, g.SetUpdates(true, "chan", time.Second))
	s := g.Settings()
	assert.Equal(t, int((15*time.Minute)/time.Second), s.UpdateIntervalSeconds)
	assert.True(t, s.SendUpdates)
	assert.Equal(t, "chan", s.UpdatesChannel)
}

func TestChangeIntervalReschedules(t *testing.T) {
	g := newTestSession(t, newFakeAPI(), newFakeStore(), &fakeNotifier{})

	require.NoError(t, g.ChangeInterval(30*time.Minute))
	assert.Equal(t, int((30*time.Minute)/time.Second), g.Settings().UpdateIntervalSeconds)
	assert.Equal(t, 30*time.Minute, g.hb.Interval())
	assert.True(t, g.hb.Running())
}

func TestRemoveAndWipe(t *testing.T) {
	api := newFakeAPI()
	api.addPlayer("Alice", "GOLD", "II", 40)
	api.addPlayer("Bob", "SILVER", "I", 10)

	g := newTestSession(t, api, newFakeStore(), &fakeNotifier{})
	_, err := g.AddSummoners(context.Background(), []string{"Alice", "Bob"})
	require.NoError(t, err)

	removed, err := g.RemoveSummoner("Alice")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = g.RemoveSummoner("Nobody")
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, g.Wipe())
	assert.Empty(t, g.ExportRoster())
	assert.Empty(t, g.Leaderboard(domain.QueueSoloDuo, true))
}

func TestShowUnranked(t *testing.T) {
	api := newFakeAPI()
	api.mu.Lock()
	api.accounts["NoRank"] = &domain.Account{ID: "id-NoRank", Name: "NoRank"}
	api.mu.Unlock()

	g := newTestSession(t, api, newFakeStore(), &fakeNotifier{})
	_, err := g.AddSummoner(context.Background(), "NoRank")
	require.NoError(t, err)

	assert.Empty(t, g.Leaderboard(domain.QueueSoloDuo, false))

	require.NoError(t, g.SetShowUnranked(true))
	rows := g.Leaderboard(domain.QueueSoloDuo, false)
	require.Len(t, rows, 1)
	assert.Equal(t, "Unranked", rows[0].RankText)
}

func TestSessionLoadsPersistedState(t *testing.T) {
	store := newFakeStore()
	st := storage.EmptyGuildState("g1")
	st.Roster["Alice"] = &domain.Summoner{
		Name: "Alice", ID: "id-Alice",
		Entries: map[domain.QueueType]domain.RankEntry{
			domain.QueueSoloDuo: {Queue: domain.QueueSoloDuo, Tier: "DIAMOND", Division: "I", LeaguePoints: 75},
		},
	}
	st.Settings.UpdateIntervalSeconds = 1800
	require.NoError(t, store.SaveGuild(st))

	g := newTestSession(t, newFakeAPI(), store, &fakeNotifier{})
	rows := g.Leaderboard(domain.QueueSoloDuo, false)
	require.Len(t, rows, 1)
	assert.Equal(t, "DIAMOND I 75 LP", rows[0].RankText)
	assert.Equal(t, 1800, g.Settings().UpdateIntervalSeconds)
}

func TestSessionFallsBackOnCorruptState(t *testing.T) {
	store := newFakeStore()
	store.loadErrs["g1"] = storage.ErrCorrupt

	g := newTestSession(t, newFakeAPI(), store, &fakeNotifier{})
	assert.Empty(t, g.ExportRoster())
}
