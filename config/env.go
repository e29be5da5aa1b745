package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 8080
	DefaultDBFile         = "imusic.sqlite3"
	DefaultLyricsEndpoint = "https://api.lyrics.ovh"
)

// FileConfig is the optional YAML config file. Environment variables win
// over anything set here.
type FileConfig struct {
	Port            int      `yaml:"port"`
	LibraryLocation string   `yaml:"library_location"`
	DBPath          string   `yaml:"db_path"`
	LyricsEndpoint  string   `yaml:"lyrics_endpoint"`
	CORSOrigins     []string `yaml:"cors_origins"`
	LogLevel        string   `yaml:"log_level"`
	ScanWorkers     int      `yaml:"scan_workers"`
}

var fileConfig FileConfig

// Init loads a .env file from the working directory (if any) and the YAML
// config at path (if non-empty).
func Init(path string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("IMUSIC_CONFIG")
	}
	if path == "" {
		fileConfig = FileConfig{}
		return nil
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return err
	}
	fileConfig = *cfg
	return nil
}

// LoadFile parses a YAML config file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

func GetPort() int {
	if p := os.Getenv("SERVER_PORT"); p != "" {
		if port, err := strconv.Atoi(p); err == nil && port > 0 {
			return port
		}
	}
	if fileConfig.Port > 0 {
		return fileConfig.Port
	}
	return DefaultPort
}

func GetDBPath() string {
	if p := os.Getenv("IMUSIC_DB_PATH"); p != "" {
		return p
	}
	if fileConfig.DBPath != "" {
		return fileConfig.DBPath
	}
	return DefaultDBFile
}

func GetLyricsEndpoint() string {
	if endpoint := os.Getenv("LYRICS_ENDPOINT"); endpoint != "" {
		return strings.TrimSuffix(endpoint, "/")
	}
	if fileConfig.LyricsEndpoint != "" {
		return strings.TrimSuffix(fileConfig.LyricsEndpoint, "/")
	}
	return DefaultLyricsEndpoint
}

func GetLogLevel() string {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		return level
	}
	return fileConfig.LogLevel
}

func GetScanWorkers() int {
	if fileConfig.ScanWorkers > 0 {
		return fileConfig.ScanWorkers
	}
	return 1
}

// GetCORSOrigins returns the allowed browser origins for the API
func GetCORSOrigins() []string {
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		return strings.Split(origins, ",")
	}
	if len(fileConfig.CORSOrigins) > 0 {
		return fileConfig.CORSOrigins
	}
	return []string{"http://localhost:3000", "http://localhost:5173"}
}

// GetLibraryLocation returns the folder scanned when no explicit path is
// given. The folder picked in the UI takes precedence over env and file.
func GetLibraryLocation() string {
	if location := getUserLibraryLocation(); location != "" {
		return location
	}

	if customPath := os.Getenv("IMUSIC_LIBRARY"); customPath != "" {
		return customPath
	}

	if fileConfig.LibraryLocation != "" {
		return fileConfig.LibraryLocation
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "music")
	}
	return filepath.Join(homeDir, "Music")
}
