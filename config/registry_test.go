package config

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"maestro/config/models"
	"maestro/config/storage"
	"maestro/internal/crypto"
	"maestro/internal/providers"
)

func googleCfg(id, key string) models.ModelConfig {
	return models.ModelConfig{ID: id, Provider: providers.Google, ModelID: "gemini-2.0-flash", APIKey: key, Label: "Gemini " + id}
}

func ollamaCfg(id, url string) models.ModelConfig {
	return models.ModelConfig{ID: id, Provider: providers.Ollama, ModelID: "llama3", BaseURL: url, Label: "Ollama " + id}
}

func newTestRegistry(t *testing.T, store storage.Store, opts ...Option) (*Registry, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]Option{WithLogger(logger.WithField("component", "registry"))}, opts...)
	return NewRegistry(store, opts...), hook
}

func mustSave(t *testing.T, r *Registry, configs ...models.ModelConfig) {
	t.Helper()
	if err := r.SaveConfigs(configs); err != nil {
		t.Fatalf("SaveConfigs() error = %v", err)
	}
}

func ids(configs []models.ModelConfig) []string {
	out := make([]string, len(configs))
	for i, c := range configs {
		out[i] = c.ID
	}
	return out
}

func TestLoadConfigsDefault(t *testing.T) {
	store := storage.NewMemoryStore()
	r, _ := newTestRegistry(t, store, WithFallbackKey("env-key"))

	got := r.LoadConfigs()
	if len(got) != 1 {
		t.Fatalf("LoadConfigs() = %v, want the single default entry", got)
	}
	d := got[0]
	if d.ID != DefaultConfigID || d.Provider != providers.Google || d.APIKey != "env-key" || d.Label != "Default Google Gemini" {
		t.Errorf("default entry = %+v", d)
	}
	if d.ModelID == "" {
		t.Error("default entry has no model id")
	}
	if _, ok, _ := store.Get(ConfigsKey); ok {
		t.Error("LoadConfigs() must not persist the default list")
	}

	t.Run("without fallback key the default is inactive", func(t *testing.T) {
		r, _ := newTestRegistry(t, storage.NewMemoryStore())
		if got := ActiveConfigs(r.LoadConfigs()); len(got) != 0 {
			t.Errorf("ActiveConfigs() = %v, want none", got)
		}
	})
}

func TestLoadConfigsEmptyList(t *testing.T) {
	store := storage.NewMemoryStore()
	r, _ := newTestRegistry(t, store, WithFallbackKey("env-key"))
	mustSave(t, r)

	if got := r.LoadConfigs(); len(got) != 0 {
		t.Errorf("LoadConfigs() = %v, want the stored empty list", got)
	}
	if raw, _, _ := store.Get(ConfigsKey); raw != "[]" {
		t.Errorf("stored value = %q, want []", raw)
	}
}

func TestLoadConfigsCorrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"object", `{"id":"g1"}`},
		{"string", `"hello"`},
		{"wrong field type", `[{"id":1,"provider":"google","modelId":"m","label":"l"}]`},
		{"unknown provider", `[{"id":"x","provider":"bogus","modelId":"m","label":"l"}]`},
		{"missing label", `[{"id":"x","provider":"google","modelId":"m"}]`},
		{"duplicate ids", `[{"id":"x","provider":"google","modelId":"m","label":"a"},{"id":"x","provider":"openai","modelId":"m","label":"b"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			_ = store.Set(ConfigsKey, tt.raw)
			r, hook := newTestRegistry(t, store, WithFallbackKey("k"))

			got := r.LoadConfigs()
			if len(got) != 1 || got[0].ID != DefaultConfigID {
				t.Errorf("LoadConfigs() = %v, want defaults", ids(got))
			}
			if _, ok, _ := store.Get(ConfigsKey); ok {
				t.Error("corrupt value was not deleted")
			}

			entry := hook.LastEntry()
			if entry == nil || entry.Level != logrus.WarnLevel {
				t.Fatalf("expected a warning, got %v", entry)
			}
			if err, _ := entry.Data[logrus.ErrorKey].(error); !errors.Is(err, ErrCorruptPersistedState) {
				t.Errorf("logged error = %v, want ErrCorruptPersistedState", err)
			}
		})
	}
}

func TestSaveConfigsAtomic(t *testing.T) {
	store := storage.NewMemoryStore()
	r, _ := newTestRegistry(t, store)
	mustSave(t, r, googleCfg("g1", "k1"))
	before, _, _ := store.Get(ConfigsKey)

	err := r.SaveConfigs([]models.ModelConfig{
		googleCfg("g2", "k2"),
		{ID: "bad", Provider: "google", Label: "no model"},
		googleCfg("g2", "k3"),
	})
	if !errors.Is(err, ErrInvalidConfigList) {
		t.Fatalf("SaveConfigs() error = %v, want ErrInvalidConfigList", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %T is not a *ValidationError", err)
	}
	if len(verr.Fields) != 2 {
		t.Errorf("field errors = %v, want 2 (modelId, duplicate id)", verr.Fields)
	}
	if verr.Fields[0].Index != 1 || verr.Fields[0].Field != "modelId" {
		t.Errorf("first field error = %+v", verr.Fields[0])
	}

	after, _, _ := store.Get(ConfigsKey)
	if after != before {
		t.Errorf("stored value changed after a failed save:\n%s\n%s", before, after)
	}
	if got := ids(r.LoadConfigs()); len(got) != 1 || got[0] != "g1" {
		t.Errorf("LoadConfigs() = %v, want [g1]", got)
	}
}

func TestSaveConfigsKeepsInactiveEntries(t *testing.T) {
	r, _ := newTestRegistry(t, storage.NewMemoryStore())
	mustSave(t, r, googleCfg("g1", ""), ollamaCfg("o1", ""))

	got := r.LoadConfigs()
	if len(got) != 2 {
		t.Fatalf("LoadConfigs() = %v", ids(got))
	}
	if active := ActiveConfigs(got); len(active) != 0 {
		t.Errorf("ActiveConfigs() = %v, want none", ids(active))
	}
}

func TestActiveConfigs(t *testing.T) {
	tests := []struct {
		name string
		in   []models.ModelConfig
		want []string
	}{
		{"nil", nil, []string{}},
		{"keyed with key", []models.ModelConfig{googleCfg("g", "k")}, []string{"g"}},
		{"keyed without key", []models.ModelConfig{googleCfg("g", "")}, []string{}},
		{"ollama needs base url", []models.ModelConfig{ollamaCfg("o", "")}, []string{}},
		{"ollama without key", []models.ModelConfig{ollamaCfg("o", "http://localhost:11434")}, []string{"o"}},
		{
			"order preserved",
			[]models.ModelConfig{
				googleCfg("a", "k"),
				googleCfg("b", ""),
				ollamaCfg("c", "http://h:11434"),
				{ID: "d", Provider: providers.OpenAI, ModelID: "gpt-4o", APIKey: "k", Label: "d"},
				{ID: "e", Provider: providers.Together, APIKey: "k", Label: "e"},
			},
			[]string{"a", "c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(ActiveConfigs(tt.in))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ActiveConfigs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectNextScenario(t *testing.T) {
	r, _ := newTestRegistry(t, storage.NewMemoryStore())
	mustSave(t, r, googleCfg("g1", "k1"), ollamaCfg("o1", "http://localhost:11434"))

	var got []string
	for i := 0; i < 3; i++ {
		c, ok := r.SelectNext()
		if !ok {
			t.Fatalf("SelectNext() #%d returned no model", i)
		}
		got = append(got, c.ID)
	}
	if strings.Join(got, ",") != "g1,o1,g1" {
		t.Errorf("selection sequence = %v, want [g1 o1 g1]", got)
	}
	if c := r.Cursor(); c != 0 {
		t.Errorf("Cursor() = %d, want 0", c)
	}
}

func TestSelectNextSkipsInactive(t *testing.T) {
	r, _ := newTestRegistry(t, storage.NewMemoryStore())
	mustSave(t, r, googleCfg("a", "k"), googleCfg("b", ""), googleCfg("c", "k"))

	var got []string
	for i := 0; i < 4; i++ {
		c, _ := r.SelectNext()
		got = append(got, c.ID)
	}
	if strings.Join(got, ",") != "a,c,a,c" {
		t.Errorf("selection sequence = %v, want [a c a c]", got)
	}
}

func TestSelectNextPersistsAcrossInstances(t *testing.T) {
	store := storage.NewMemoryStore()
	first, _ := newTestRegistry(t, store)
	mustSave(t, first, googleCfg("a", "k"), googleCfg("b", "k"), googleCfg("c", "k"))

	first.SelectNext()
	first.SelectNext()

	second, _ := newTestRegistry(t, store)
	c, ok := second.SelectNext()
	if !ok || c.ID != "c" {
		t.Errorf("fresh registry SelectNext() = %v, %v; want c", c.ID, ok)
	}
	if raw, _, _ := store.Get(CursorKey); raw != "2" {
		t.Errorf("stored cursor = %q, want 2", raw)
	}
}

func TestSelectNextNoActiveModel(t *testing.T) {
	store := storage.NewMemoryStore()
	r, _ := newTestRegistry(t, store)
	mustSave(t, r, googleCfg("g", ""))
	_ = store.Set(CursorKey, "1")

	if _, ok := r.SelectNext(); ok {
		t.Fatal("SelectNext() ok = true with no active config")
	}
	if raw, _, _ := store.Get(CursorKey); raw != "1" {
		t.Errorf("cursor = %q, want it untouched", raw)
	}

	if _, err := r.Next(); !errors.Is(err, ErrNoActiveModel) {
		t.Errorf("Next() error = %v, want ErrNoActiveModel", err)
	}
}

func TestSelectNextAfterShrink(t *testing.T) {
	r, _ := newTestRegistry(t, storage.NewMemoryStore())
	mustSave(t, r, googleCfg("a", "k"), googleCfg("b", "k"), googleCfg("c", "k"))
	for i := 0; i < 3; i++ {
		r.SelectNext()
	}
	// cursor now 2; after removing "a" the active list is [b c]
	mustSave(t, r, googleCfg("b", "k"), googleCfg("c", "k"))

	c, _ := r.SelectNext()
	if c.ID != "c" {
		t.Errorf("SelectNext() after shrink = %s, want c ((2+1) mod 2 = 1)", c.ID)
	}
}

func TestSelectNextBadCursor(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
		want   string
	}{
		{"garbage", "abc", "a"},
		{"empty", "", "a"},
		{"negative", "-5", "a"},
		{"too large", "40", "c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			r, _ := newTestRegistry(t, store)
			mustSave(t, r, googleCfg("a", "k"), googleCfg("b", "k"), googleCfg("c", "k"))
			_ = store.Set(CursorKey, tt.cursor)

			c, ok := r.SelectNext()
			if !ok || c.ID != tt.want {
				t.Errorf("SelectNext() = %s, want %s", c.ID, tt.want)
			}
		})
	}
}

// plainStore hides the Update method of the wrapped store.
type plainStore struct{ storage.Store }

func TestSelectNextWithoutUpdater(t *testing.T) {
	r, _ := newTestRegistry(t, plainStore{storage.NewMemoryStore()})
	mustSave(t, r, googleCfg("a", "k"), googleCfg("b", "k"))

	var got []string
	for i := 0; i < 3; i++ {
		c, _ := r.SelectNext()
		got = append(got, c.ID)
	}
	if strings.Join(got, ",") != "a,b,a" {
		t.Errorf("selection sequence = %v", got)
	}
}

func TestSelectNextConcurrent(t *testing.T) {
	r, _ := newTestRegistry(t, storage.NewMemoryStore())
	mustSave(t, r, googleCfg("a", "k"), googleCfg("b", "k"), googleCfg("c", "k"))

	const goroutines, perGoroutine = 10, 30
	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				c, ok := r.SelectNext()
				if !ok {
					t.Error("SelectNext() returned no model")
					return
				}
				mu.Lock()
				counts[c.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c"} {
		if counts[id] != goroutines*perGoroutine/3 {
			t.Errorf("%s selected %d times, want %d", id, counts[id], goroutines*perGoroutine/3)
		}
	}
}

func TestRegistryWithCipher(t *testing.T) {
	km, err := crypto.NewKeyManagerFromSecret("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	store := storage.NewMemoryStore()
	r, _ := newTestRegistry(t, store, WithCipher(km))
	mustSave(t, r, googleCfg("g", "AIza-plain-key"), ollamaCfg("o", "http://localhost:11434"))

	raw, _, _ := store.Get(ConfigsKey)
	if strings.Contains(raw, "AIza-plain-key") {
		t.Errorf("API key stored in plaintext: %s", raw)
	}
	if !strings.Contains(raw, crypto.EncryptedPrefix) {
		t.Errorf("stored value has no encrypted key: %s", raw)
	}

	got := r.LoadConfigs()
	if got[0].APIKey != "AIza-plain-key" || got[1].APIKey != "" {
		t.Errorf("decrypted keys = %q, %q", got[0].APIKey, got[1].APIKey)
	}

	t.Run("wrong secret keeps the stored list", func(t *testing.T) {
		other, _ := crypto.NewKeyManagerFromSecret("other")
		r2, hook := newTestRegistry(t, store, WithCipher(other))
		got := r2.LoadConfigs()
		if len(got) != 1 || got[0].ID != DefaultConfigID {
			t.Errorf("LoadConfigs() = %v, want defaults", ids(got))
		}
		if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.ErrorLevel {
			t.Errorf("expected an error entry, got %v", entry)
		}
		if after, ok, _ := store.Get(ConfigsKey); !ok || after != raw {
			t.Errorf("stored configs changed after a failed decrypt: %q", after)
		}

		err := r2.Edit(func(configs []models.ModelConfig) ([]models.ModelConfig, error) {
			return append(configs, ollamaCfg("o2", "http://localhost:11434")), nil
		})
		if !errors.Is(err, ErrUndecryptable) {
			t.Errorf("Edit() error = %v, want ErrUndecryptable", err)
		}

		if got := ids(r.LoadConfigs()); strings.Join(got, ",") != "g,o" {
			t.Errorf("LoadConfigs() with the right secret = %v, want [g o]", got)
		}
	})
}

func TestEditAndFind(t *testing.T) {
	r, _ := newTestRegistry(t, storage.NewMemoryStore(), WithFallbackKey("k"))

	err := r.Edit(func(configs []models.ModelConfig) ([]models.ModelConfig, error) {
		return append(configs, ollamaCfg("o", "http://localhost:11434")), nil
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if got := ids(r.LoadConfigs()); strings.Join(got, ",") != DefaultConfigID+",o" {
		t.Errorf("LoadConfigs() = %v", got)
	}

	if c, ok := r.Find("o"); !ok || c.BaseURL != "http://localhost:11434" {
		t.Errorf("Find(o) = %+v, %v", c, ok)
	}
	if _, ok := r.Find("missing"); ok {
		t.Error("Find(missing) ok = true")
	}

	abort := errors.New("abort")
	err = r.Edit(func([]models.ModelConfig) ([]models.ModelConfig, error) { return nil, abort })
	if !errors.Is(err, abort) {
		t.Errorf("Edit() error = %v, want abort", err)
	}
	if len(r.LoadConfigs()) != 2 {
		t.Error("aborted Edit() changed the list")
	}
}

func TestSelectNextOnFileStore(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir() + "/state.json")
	if err != nil {
		t.Fatal(err)
	}
	r, _ := newTestRegistry(t, store)
	mustSave(t, r, googleCfg("g1", "k1"), ollamaCfg("o1", "http://localhost:11434"))

	r.SelectNext()
	second, _ := newTestRegistry(t, store)
	if c, _ := second.SelectNext(); c.ID != "o1" {
		t.Errorf("SelectNext() = %s, want o1", c.ID)
	}
}

// genConfigs builds config lists whose entries are randomly active or not.
// Each int's low bits choose provider, model id, key and base URL presence.
func genConfigs() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 15)).Map(func(bits []int) []models.ModelConfig {
		out := make([]models.ModelConfig, len(bits))
		for i, b := range bits {
			c := models.ModelConfig{ID: "id" + string(rune('a'+i%26)) + strings.Repeat("x", i/26), Provider: providers.Google, Label: "l"}
			if b&1 != 0 {
				c.Provider = providers.Ollama
			}
			if b&2 != 0 {
				c.ModelID = "m"
			}
			if b&4 != 0 {
				c.APIKey = "k"
			}
			if b&8 != 0 {
				c.BaseURL = "http://h"
			}
			out[i] = c
		}
		return out
	})
}

func TestRegistryProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// Property: the active subset keeps order and contains exactly the usable entries
	properties.Property("active filter is an order-preserving subsequence", prop.ForAll(
		func(all []models.ModelConfig) bool {
			active := ActiveConfigs(all)
			j := 0
			for _, c := range all {
				usable := c.ModelID != "" &&
					((c.Provider == providers.Ollama && c.BaseURL != "") ||
						(c.Provider != providers.Ollama && c.APIKey != ""))
				if usable {
					if j >= len(active) || active[j].ID != c.ID {
						return false
					}
					j++
				}
			}
			return j == len(active)
		},
		genConfigs(),
	))

	// Property: n*k selections over n active configs pick each exactly k times, in order
	properties.Property("round robin is fair", prop.ForAll(
		func(n, k int) bool {
			logger, _ := logtest.NewNullLogger()
			r := NewRegistry(storage.NewMemoryStore(), WithLogger(logrus.NewEntry(logger)))
			configs := make([]models.ModelConfig, n)
			for i := range configs {
				configs[i] = googleCfg("c"+string(rune('a'+i)), "k")
			}
			if err := r.SaveConfigs(configs); err != nil {
				return false
			}
			counts := map[string]int{}
			for i := 0; i < n*k; i++ {
				c, ok := r.SelectNext()
				if !ok || c.ID != configs[i%n].ID {
					return false
				}
				counts[c.ID]++
			}
			for _, c := range configs {
				if counts[c.ID] != k {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}
