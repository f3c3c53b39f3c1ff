// Package settings stores the user's credentials and run preferences in a
// TOML file, separate from application config so it can be edited from the
// dashboard and hot-reloaded.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Settings holds per-user credentials and run preferences.
type Settings struct {
	GithubToken     string `toml:"github_token"`
	GithubUser      string `toml:"github_user"`
	GeminiKey       string `toml:"gemini_key"`
	DefaultPrivate  bool   `toml:"default_private"`
	TechPreferences string `toml:"tech_preferences"`
}

// DefaultPath returns the default settings file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ideaforge", "settings.toml")
}

// Load reads settings from a TOML file. A missing file yields empty
// settings, not an error.
func Load(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return s, nil
}

// Save writes the settings atomically: temp file in the same directory,
// then rename. Readers never observe a half-written file.
func Save(path string, s *Settings) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// Credentials live here; keep the file private.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
