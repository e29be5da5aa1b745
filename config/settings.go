package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UserSettings represents the user's personal settings
type UserSettings struct {
	LibraryLocation string `json:"libraryLocation"`
}

// SettingsFilePath returns the path to the settings file
func SettingsFilePath() string {
	if p := os.Getenv("IMUSIC_SETTINGS"); p != "" {
		return p
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".imusic-settings.json")
}

// LoadUserSettings reads the settings file. A missing file yields the
// effective defaults.
func LoadUserSettings() (*UserSettings, error) {
	data, err := os.ReadFile(SettingsFilePath())
	if os.IsNotExist(err) {
		return &UserSettings{LibraryLocation: GetLibraryLocation()}, nil
	}
	if err != nil {
		return nil, err
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	if settings.LibraryLocation == "" {
		settings.LibraryLocation = GetLibraryLocation()
	}
	return &settings, nil
}

// SaveUserSettings writes the settings file
func SaveUserSettings(settings *UserSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsFilePath(), data, 0644)
}

// ValidateLibraryPath checks that path exists and is a readable directory.
func ValidateLibraryPath(path string) error {
	if path == "" {
		return fmt.Errorf("library location is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// getUserLibraryLocation loads the preferred library folder from the settings file
func getUserLibraryLocation() string {
	data, err := os.ReadFile(SettingsFilePath())
	if err != nil {
		return ""
	}

	var settings UserSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return ""
	}
	return settings.LibraryLocation
}
