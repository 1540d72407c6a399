package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AccountState is the persisted per-account configuration: which templates
// rotate through the mailing loop and where the rotation left off.
type AccountState struct {
	ProfileID    string    `json:"profile_id"`
	Templates    []string  `json:"templates"`
	NextTemplate int       `json:"next_template"`
	MailingEvery int       `json:"mailing_every_sec"`
	LastMailing  time.Time `json:"last_mailing,omitempty"`
}

// State is the agent's local JSON state file.
type State struct {
	BotID    string                   `json:"bot_id"`
	Accounts map[string]*AccountState `json:"accounts"`

	mu   sync.Mutex
	path string
}

// LoadState reads the state file, creating an empty state when it does not
// exist yet.
func LoadState(path string) (*State, error) {
	st := &State{Accounts: map[string]*AccountState{}, path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	if st.Accounts == nil {
		st.Accounts = map[string]*AccountState{}
	}
	st.path = path
	return st, nil
}

// Save writes the state atomically via a temp file rename.
func (s *State) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Account returns the state for a profile, creating it on first use.
func (s *State) Account(profileID string) *AccountState {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.Accounts[profileID]
	if !ok {
		acc = &AccountState{ProfileID: profileID, MailingEvery: 60}
		s.Accounts[profileID] = acc
	}
	return acc
}

// PopTemplate returns the next template in rotation, or "" when none are
// configured.
func (a *AccountState) PopTemplate() string {
	if len(a.Templates) == 0 {
		return ""
	}
	t := a.Templates[a.NextTemplate%len(a.Templates)]
	a.NextTemplate = (a.NextTemplate + 1) % len(a.Templates)
	return t
}
