// Package config persists workbench preferences under the user config dir.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// DefaultServerURL is used when no server is configured anywhere.
const DefaultServerURL = "http://localhost:8000"

// MaxRunAge bounds how old a remembered run may be before the workbench
// stops offering to resume it.
const MaxRunAge = 24 * time.Hour

// LayoutRatio is the persisted split between the editor pane and the
// terminal pane, both as fractions of the window.
type LayoutRatio struct {
	Editor   float64 `json:"editor"`
	Terminal float64 `json:"terminal"`
}

// DefaultLayoutRatio returns the default pane split.
func DefaultLayoutRatio() LayoutRatio {
	return LayoutRatio{Editor: 0.7, Terminal: 0.3}
}

// LastRunInfo remembers the most recent run for the resume prompt.
type LastRunInfo struct {
	RunID      string    `json:"runId"`
	Prompt     string    `json:"prompt"`
	LastActive time.Time `json:"lastActive"`
}

// Preferences stores user preferences for the workbench.
type Preferences struct {
	ServerURL string       `json:"serverUrl,omitempty"`
	Layout    LayoutRatio  `json:"layout"`
	LastRun   *LastRunInfo `json:"lastRun,omitempty"`
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "yellowbench"), nil
}

func preferencesPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "preferences.json"), nil
}

// Load reads preferences from disk, returning defaults when the file is
// missing.
func Load() (*Preferences, error) {
	path, err := preferencesPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Preferences{Layout: DefaultLayoutRatio()}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, err
	}
	if prefs.Layout.Editor == 0 && prefs.Layout.Terminal == 0 {
		prefs.Layout = DefaultLayoutRatio()
	}
	return &prefs, nil
}

// Save writes preferences to disk, creating the config dir if needed.
func Save(prefs *Preferences) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path, err := preferencesPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SaveLastRun remembers a run for the next startup's resume prompt.
func SaveLastRun(runID, prompt string) error {
	prefs, err := Load()
	if err != nil {
		prefs = &Preferences{Layout: DefaultLayoutRatio()}
	}
	const maxPromptLen = 200
	if len(prompt) > maxPromptLen {
		prompt = prompt[:maxPromptLen] + "..."
	}
	prefs.LastRun = &LastRunInfo{RunID: runID, Prompt: prompt, LastActive: time.Now()}
	return Save(prefs)
}

// LastRun retrieves the remembered run, or nil when absent or too old.
func LastRun() (*LastRunInfo, error) {
	prefs, err := Load()
	if err != nil {
		return nil, err
	}
	if prefs.LastRun == nil || time.Since(prefs.LastRun.LastActive) > MaxRunAge {
		return nil, nil
	}
	return prefs.LastRun, nil
}
