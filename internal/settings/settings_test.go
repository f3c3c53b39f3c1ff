package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if s.GithubToken != "" || s.DefaultPrivate {
		t.Errorf("missing file should yield empty settings, got %+v", s)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	want := &Settings{
		GithubToken:     "ghp_secret",
		GithubUser:      "octo-cat",
		GeminiKey:       "AIza_test",
		DefaultPrivate:  true,
		TechPreferences: "Go backend, SQLite",
	}

	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("settings file mode = %o, want 600", info.Mode().Perm())
	}
}

func TestSave_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "settings.toml")
	if err := Save(path, &Settings{GithubUser: "tester"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("settings file not created: %v", err)
	}
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("github_token = [broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	if err := Save(path, &Settings{GithubUser: "before"}); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if got := w.Current().GithubUser; got != "before" {
		t.Fatalf("initial load = %q, want before", got)
	}

	if err := Save(path, &Settings{GithubUser: "after"}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-w.Events():
		if ev.Error != nil {
			t.Fatalf("reload error: %v", ev.Error)
		}
		if ev.Settings.GithubUser != "after" {
			t.Errorf("reloaded user = %q, want after", ev.Settings.GithubUser)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload event after file change")
	}

	if got := w.Current().GithubUser; got != "after" {
		t.Errorf("Current() = %q, want after", got)
	}
}
