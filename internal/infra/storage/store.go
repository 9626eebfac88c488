package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tiax/rankboard/internal/domain"
)

// FileStore persists guild state and the registry membership list as JSON
// files under a single data directory. Writes go through a tmp file and a
// rename so a crash mid-write never leaves a truncated state file.
type FileStore struct {
	mu      sync.Mutex
	dataDir string
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (f *FileStore) guildFile(guildID string) string {
	return filepath.Join(f.dataDir, guildID+"-accounts.json")
}

func (f *FileStore) registryFile() string {
	return filepath.Join(f.dataDir, "guilds.json")
}

func (f *FileStore) writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// LoadGuild reads one guild's state. A missing file is not an error; it
// yields the empty state. A file that exists but cannot be parsed is
// reported as ErrCorrupt so the caller can decide whether to fall back.
func (f *FileStore) LoadGuild(guildID string) (*GuildState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.guildFile(guildID))
	if err != nil {
		if os.IsNotExist(err) {
			return EmptyGuildState(guildID), nil
		}
		return nil, fmt.Errorf("read guild state: %w", err)
	}

	var st GuildState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: guild %s: %v", ErrCorrupt, guildID, err)
	}
	st.GuildID = guildID
	if st.Roster == nil {
		st.Roster = make(map[string]*domain.Summoner)
	}
	if st.LastRanks == nil {
		st.LastRanks = make(map[domain.QueueType][]domain.Row)
	}
	// Roster keys are authoritative; keep the embedded name in sync.
	for name, s := range st.Roster {
		if s == nil {
			st.Roster[name] = &domain.Summoner{Name: name}
		} else if s.Name == "" {
			s.Name = name
		}
	}
	return &st, nil
}

// SaveGuild persists one guild's state atomically.
func (f *FileStore) SaveGuild(st *GuildState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode guild state: %w", err)
	}
	if err := f.writeFile(f.guildFile(st.GuildID), data); err != nil {
		return fmt.Errorf("write guild state: %w", err)
	}
	log.Debug().Str("guild", st.GuildID).Int("roster", len(st.Roster)).Msg("Guild state saved")
	return nil
}

// LoadGuildIDs reads the registry membership list: which guilds exist,
// independent of what each one contains.
func (f *FileStore) LoadGuildIDs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.registryFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: registry: %v", ErrCorrupt, err)
	}
	return ids, nil
}

// SaveGuildIDs persists the registry membership list.
func (f *FileStore) SaveGuildIDs(ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := f.writeFile(f.registryFile(), data); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
