package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"maestro/config"
	"maestro/config/storage"
)

// isolate points the config dir at a temp dir and clears the overrides the
// tests touch.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"GOOGLE_API_KEY", "MAESTRO_DEFAULTS_GOOGLE_API_KEY", "MAESTRO_STORE_BACKEND",
		"MAESTRO_LLM_TIMEOUT", "MAESTRO_LLM_TEMPERATURE", "MAESTRO_SERVER_TOKENS",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	s, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Store.Backend != BackendFile {
		t.Errorf("Store.Backend = %q, want file", s.Store.Backend)
	}
	if want := filepath.Join(dir, "maestro", "state.json"); s.Store.Path != want {
		t.Errorf("Store.Path = %q, want %q", s.Store.Path, want)
	}
	if s.Store.Namespace != "maestro" {
		t.Errorf("Store.Namespace = %q", s.Store.Namespace)
	}
	if !s.Security.EncryptKeys {
		t.Error("Security.EncryptKeys = false, want true")
	}
	if s.LLM.Timeout != 2*time.Minute {
		t.Errorf("LLM.Timeout = %v, want 2m", s.LLM.Timeout)
	}
	if s.LLM.Temperature != nil {
		t.Errorf("LLM.Temperature = %v, want nil", *s.LLM.Temperature)
	}
	if s.Log.Level != "info" || s.Log.MaxSizeMB != 10 {
		t.Errorf("Log = %+v", s.Log)
	}
	if s.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Server.Addr = %q", s.Server.Addr)
	}
	if s.File != "" {
		t.Errorf("File = %q, want empty", s.File)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	content := `store:
  backend: memory
llm:
  timeout: 30s
  temperature: 0.4
server:
  tokens:
    - "t1:Ada:ada@example.com:https://example.com/ada.png"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_API_KEY", "from-google-env")
	t.Setenv("MAESTRO_LOG_LEVEL", "debug")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.File != path {
		t.Errorf("File = %q, want %q", s.File, path)
	}
	if s.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, want memory", s.Store.Backend)
	}
	if s.LLM.Timeout != 30*time.Second {
		t.Errorf("LLM.Timeout = %v, want 30s", s.LLM.Timeout)
	}
	if s.LLM.Temperature == nil || *s.LLM.Temperature != 0.4 {
		t.Errorf("LLM.Temperature = %v, want 0.4", s.LLM.Temperature)
	}
	if s.Defaults.GoogleAPIKey != "from-google-env" {
		t.Errorf("Defaults.GoogleAPIKey = %q", s.Defaults.GoogleAPIKey)
	}
	if s.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", s.Log.Level)
	}
	if len(s.Server.Tokens) != 1 {
		t.Errorf("Server.Tokens = %v", s.Server.Tokens)
	}

	t.Run("Prefixed variable wins over alias", func(t *testing.T) {
		t.Setenv("MAESTRO_DEFAULTS_GOOGLE_API_KEY", "prefixed")
		s, err := Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if s.Defaults.GoogleAPIKey != "prefixed" {
			t.Errorf("Defaults.GoogleAPIKey = %q, want prefixed", s.Defaults.GoogleAPIKey)
		}
	})
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil, want error for missing explicit file")
	}
}

func TestValidate(t *testing.T) {
	base := func() Settings {
		return Settings{
			Store: StoreSettings{Backend: BackendFile, Path: "/tmp/state.json"},
			LLM:   LLMSettings{Timeout: time.Minute},
		}
	}
	hot := 3.0

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(*Settings) {}, false},
		{"memory backend", func(s *Settings) { s.Store.Backend = BackendMemory; s.Store.Path = "" }, false},
		{"unknown backend", func(s *Settings) { s.Store.Backend = "etcd" }, true},
		{"file without path", func(s *Settings) { s.Store.Path = "" }, true},
		{"redis without url", func(s *Settings) { s.Store.Backend = BackendRedis }, true},
		{"redis with url", func(s *Settings) { s.Store.Backend = BackendRedis; s.Store.RedisURL = "redis://localhost:6379/0" }, false},
		{"zero timeout", func(s *Settings) { s.LLM.Timeout = 0 }, true},
		{"temperature out of range", func(s *Settings) { s.LLM.Temperature = &hot }, true},
		{"bad token", func(s *Settings) { s.Server.Tokens = []string{"only-token"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(&s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseTokens(t *testing.T) {
	users, err := ParseTokens([]string{
		"abc:Ada Lovelace:ada@example.com",
		" def:Grace:grace@example.com:https://example.com/g.png ",
		"",
	})
	if err != nil {
		t.Fatalf("ParseTokens() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}
	if u := users["abc"]; u.Name != "Ada Lovelace" || u.Email != "ada@example.com" || u.ImageURL != "" {
		t.Errorf("users[abc] = %+v", u)
	}
	if u := users["def"]; u.ImageURL != "https://example.com/g.png" {
		t.Errorf("users[def].ImageURL = %q", u.ImageURL)
	}

	if _, err := ParseTokens([]string{"a:b:c", "a:d:e"}); err == nil {
		t.Error("ParseTokens() with duplicate token error = nil, want error")
	}
	if _, err := ParseTokens([]string{":name:mail"}); err == nil {
		t.Error("ParseTokens() with empty token error = nil, want error")
	}
}

func TestOpenStoreAndCipher(t *testing.T) {
	dir := t.TempDir()
	s := &Settings{
		Store:    StoreSettings{Backend: BackendFile, Path: filepath.Join(dir, "state.json"), Backups: 2},
		Security: SecuritySettings{EncryptKeys: true, KeyFile: filepath.Join(dir, "master.key")},
		LLM:      LLMSettings{Timeout: time.Minute},
	}

	store, err := s.OpenStore()
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if _, ok := store.(*storage.FileStore); !ok {
		t.Fatalf("OpenStore() = %T, want *storage.FileStore", store)
	}

	opts, err := s.RegistryOptions()
	if err != nil {
		t.Fatalf("RegistryOptions() error = %v", err)
	}
	if _, err := os.Stat(s.Security.KeyFile); err != nil {
		t.Errorf("key file not created: %v", err)
	}

	reg := config.NewRegistry(store, opts...)
	cfgs := reg.DefaultConfigs()
	cfgs[0].APIKey = "plain-key"
	if err := reg.SaveConfigs(cfgs); err != nil {
		t.Fatalf("SaveConfigs() error = %v", err)
	}
	raw, _, _ := store.Get(config.ConfigsKey)
	if raw == "" || strings.Contains(raw, "plain-key") {
		t.Errorf("stored list should hold the encrypted key, got %s", raw)
	}
	if got := reg.LoadConfigs()[0].APIKey; got != "plain-key" {
		t.Errorf("LoadConfigs()[0].APIKey = %q, want plain-key", got)
	}

	t.Run("Memory backend", func(t *testing.T) {
		m := &Settings{Store: StoreSettings{Backend: BackendMemory}}
		store, err := m.OpenStore()
		if err != nil {
			t.Fatalf("OpenStore() error = %v", err)
		}
		if _, ok := store.(*storage.MemoryStore); !ok {
			t.Errorf("OpenStore() = %T, want *storage.MemoryStore", store)
		}
	})

	t.Run("Encryption off", func(t *testing.T) {
		off := &Settings{}
		km, err := off.Cipher()
		if err != nil || km != nil {
			t.Errorf("Cipher() = %v, %v; want nil, nil", km, err)
		}
	})
}

func TestWatchReloadsTokens(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(entry string) {
		t.Helper()
		doc := "store:\n  backend: memory\nserver:\n  tokens:\n    - " + entry + "\n"
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("first:Ada:ada@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan []string, 4)
	if err := Watch(ctx, path, func(s *Settings) { got <- s.Server.Tokens }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	t.Run("Valid edit", func(t *testing.T) {
		write("second:Ada:ada@example.com")
		select {
		case tokens := <-got:
			if len(tokens) != 1 || tokens[0] != "second:Ada:ada@example.com" {
				t.Errorf("reloaded tokens = %v", tokens)
			}
			users, err := ParseTokens(tokens)
			if err != nil || users["second"].Email != "ada@example.com" {
				t.Errorf("ParseTokens(%v) = %v, %v", tokens, users, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("settings change was not picked up")
		}
	})

	t.Run("Invalid edit is ignored", func(t *testing.T) {
		write("broken:Ada")
		select {
		case tokens := <-got:
			t.Fatalf("invalid settings should not be handed on, got %v", tokens)
		case <-time.After(time.Second):
		}

		write("third:Ada:ada@example.com")
		select {
		case tokens := <-got:
			if len(tokens) != 1 || tokens[0] != "third:Ada:ada@example.com" {
				t.Errorf("reloaded tokens = %v", tokens)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("watch stopped after an invalid edit")
		}
	})
}
