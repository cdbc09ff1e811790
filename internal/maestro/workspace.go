package maestro

import (
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"maestro/config/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WorkspaceKey is the store key of the persisted threat model.
const WorkspaceKey = "threat-model"

// State is the user's working threat model.
type State struct {
	SystemDescription string   `json:"systemDescription"`
	Threats           []Threat `json:"threats"`
}

// SeedState is the content of a new workspace.
func SeedState() State {
	return State{SystemDescription: DefaultSystemDescription, Threats: InitialThreats()}
}

// Workspace persists the threat model in a store.
type Workspace struct {
	mu    sync.Mutex
	store storage.Store
	log   *logrus.Entry
}

// NewWorkspace creates a Workspace over store.
func NewWorkspace(store storage.Store, log *logrus.Entry) *Workspace {
	if log == nil {
		log = logrus.WithField("component", "workspace")
	}
	return &Workspace{store: store, log: log}
}

// Load returns the stored state, or the seed when nothing usable is stored.
func (w *Workspace) Load() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.load()
}

func (w *Workspace) load() State {
	raw, ok, err := w.store.Get(WorkspaceKey)
	if err != nil {
		w.log.WithError(err).Error("failed to read workspace")
		return SeedState()
	}
	if !ok {
		return SeedState()
	}
	var s State
	if err := json.UnmarshalFromString(raw, &s); err != nil {
		w.log.WithError(err).Warn("discarding corrupt workspace")
		return SeedState()
	}
	if s.Threats == nil {
		s.Threats = []Threat{}
	}
	return s
}

func (w *Workspace) save(s State) error {
	data, err := json.MarshalToString(s)
	if err != nil {
		return fmt.Errorf("failed to serialize workspace: %w", err)
	}
	if err := w.store.Set(WorkspaceKey, data); err != nil {
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	return nil
}

func (w *Workspace) update(fn func(*State)) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.load()
	fn(&s)
	return s, w.save(s)
}

// SetDescription replaces the system description.
func (w *Workspace) SetDescription(description string) (State, error) {
	return w.update(func(s *State) { s.SystemDescription = description })
}

// AddThreats appends threats.
func (w *Workspace) AddThreats(threats ...Threat) (State, error) {
	return w.update(func(s *State) { s.Threats = append(s.Threats, threats...) })
}

// RemoveThreat deletes the threat with id and reports whether it existed.
func (w *Workspace) RemoveThreat(id string) (bool, error) {
	found := false
	_, err := w.update(func(s *State) {
		kept := s.Threats[:0]
		for _, t := range s.Threats {
			if t.ID == id {
				found = true
				continue
			}
			kept = append(kept, t)
		}
		s.Threats = kept
	})
	return found, err
}

// Clear removes every threat and keeps the description.
func (w *Workspace) Clear() (State, error) {
	return w.update(func(s *State) { s.Threats = []Threat{} })
}

// Reset returns the workspace to the seed state.
func (w *Workspace) Reset() (State, error) {
	return w.update(func(s *State) { *s = SeedState() })
}
