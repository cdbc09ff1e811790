package maestro

import (
	"path/filepath"
	"testing"

	"maestro/config/storage"
)

func TestWorkspaceSeed(t *testing.T) {
	store := storage.NewMemoryStore()
	w := NewWorkspace(store, quiet())

	s := w.Load()
	if s.SystemDescription != DefaultSystemDescription || len(s.Threats) != 1 {
		t.Errorf("Load() = %+v, want seed", s)
	}
	if _, ok, _ := store.Get(WorkspaceKey); ok {
		t.Error("Load() must not write the seed")
	}
}

func TestWorkspaceEdits(t *testing.T) {
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	w := NewWorkspace(store, quiet())

	if _, err := w.SetDescription("a chatbot"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddThreats(Threat{ID: "t2", Name: "Jailbreak", Risk: RiskMedium, Layer: "Foundation Models"}); err != nil {
		t.Fatal(err)
	}

	reopened := NewWorkspace(store, quiet())
	s := reopened.Load()
	if s.SystemDescription != "a chatbot" || len(s.Threats) != 2 || s.Threats[1].ID != "t2" {
		t.Errorf("Load() = %+v", s)
	}

	found, err := reopened.RemoveThreat("threat-1")
	if err != nil || !found {
		t.Errorf("RemoveThreat() = %v, %v", found, err)
	}
	if found, _ := reopened.RemoveThreat("missing"); found {
		t.Error("RemoveThreat(missing) = true")
	}
	if s := reopened.Load(); len(s.Threats) != 1 || s.Threats[0].ID != "t2" {
		t.Errorf("threats after remove = %+v", s.Threats)
	}

	s, err = reopened.Clear()
	if err != nil || len(s.Threats) != 0 || s.SystemDescription != "a chatbot" {
		t.Errorf("Clear() = %+v, %v", s, err)
	}
	if s := reopened.Load(); s.Threats == nil || len(s.Threats) != 0 {
		t.Errorf("threats after clear = %#v", s.Threats)
	}

	s, _ = reopened.Reset()
	if s.SystemDescription != DefaultSystemDescription || len(s.Threats) != 1 {
		t.Errorf("Reset() = %+v", s)
	}
}

func TestWorkspaceCorrupt(t *testing.T) {
	store := storage.NewMemoryStore()
	_ = store.Set(WorkspaceKey, "{broken")
	w := NewWorkspace(store, quiet())

	if s := w.Load(); s.SystemDescription != DefaultSystemDescription {
		t.Errorf("Load() on corrupt data = %+v, want seed", s)
	}
	if _, err := w.SetDescription("fresh"); err != nil {
		t.Fatal(err)
	}
	if s := w.Load(); s.SystemDescription != "fresh" || len(s.Threats) != 1 {
		t.Errorf("Load() = %+v", s)
	}
}
