package domain

// Summoner is one tracked roster member. Name is the user-supplied key
// (case-sensitive); ID and DisplayName are filled in once the account has
// been resolved against the remote service.
type Summoner struct {
	Name        string                  `json:"name"`
	ID          string                  `json:"id,omitempty"`
	DisplayName string                  `json:"displayName,omitempty"`
	Entries     map[QueueType]RankEntry `json:"entries,omitempty"`

	// Failures counts consecutive failed resolutions. It resets on any
	// successful resolve and is not persisted.
	Failures int `json:"-"`
}

// Resolved reports whether the summoner has a cached service id, meaning
// a refresh can skip the by-name lookup.
func (s *Summoner) Resolved() bool {
	return s.ID != ""
}

// ShownName prefers the service-side display name over the roster key.
func (s *Summoner) ShownName() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}
