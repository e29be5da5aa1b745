package services

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"imusic/types"

	"github.com/dhowden/tag"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "No Album"
)

// formatRank orders formats when the same track exists more than once;
// lower wins.
var formatRank = map[string]int{
	"flac": 0,
	"m4a":  1,
	"mp3":  2,
}

var trackPrefix = regexp.MustCompile(`^(\d+)[\.\-\s]+(.+)`)

// LibraryService defines methods for discovering audio files
type LibraryService interface {
	ScanAudioFiles(rootPath string) ([]types.AudioFile, error)
	ExtractAudioMetadata(filePath string) *types.AudioMetadata
	GetContentType(filePath string) string
}

type libraryService struct{}

// NewLibraryService creates a new library service
func NewLibraryService() LibraryService {
	return &libraryService{}
}

// IsAudioFile reports whether path has a supported audio extension.
func IsAudioFile(path string) bool {
	_, ok := formatRank[audioFormat(path)]
	return ok
}

func audioFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// ScanAudioFiles recursively scans a directory for audio files
func (ls *libraryService) ScanAudioFiles(rootPath string) ([]types.AudioFile, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	found, err := walkAudioFiles(absRoot)
	if err != nil {
		return nil, err
	}

	// tags are only read for the files that survive format selection
	files := preferBestFormat(found)
	for i := range files {
		files[i].Metadata = ls.ExtractAudioMetadata(files[i].Path)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Relative < files[j].Relative })
	return files, nil
}

// walkAudioFiles lists the audio files below absRoot without reading them.
// Unreadable entries are logged and skipped.
func walkAudioFiles(absRoot string) ([]types.AudioFile, error) {
	if _, err := os.Stat(absRoot); err != nil {
		return nil, err
	}

	var files []types.AudioFile
	err := filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if info.IsDir() || !IsAudioFile(path) {
			return nil
		}

		relativePath, err := filepath.Rel(absRoot, path)
		if err != nil {
			relativePath = path
		}

		files = append(files, types.AudioFile{
			Filename: info.Name(),
			Path:     path,
			Relative: filepath.ToSlash(relativePath),
			Size:     info.Size(),
			Format:   audioFormat(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// preferBestFormat keeps one file per track when the same track sits next
// to itself in several formats.
func preferBestFormat(files []types.AudioFile) []types.AudioFile {
	best := make(map[string]types.AudioFile)

	for _, file := range files {
		basePath := strings.TrimSuffix(file.Path, filepath.Ext(file.Path))
		current, ok := best[basePath]
		if !ok || formatRank[file.Format] < formatRank[current.Format] {
			best[basePath] = file
		}
	}

	result := make([]types.AudioFile, 0, len(best))
	for _, file := range best {
		result = append(result, file)
	}
	return result
}

// GetContentType returns the MIME type for an audio file
func (ls *libraryService) GetContentType(filePath string) string {
	switch audioFormat(filePath) {
	case "flac":
		return "audio/flac"
	case "mp3":
		return "audio/mpeg"
	case "m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// ExtractAudioMetadata reads tags from an audio file. Missing fields fall
// back to the file name and the unknown artist/album placeholders.
func (ls *libraryService) ExtractAudioMetadata(filePath string) *types.AudioMetadata {
	metadata := &types.AudioMetadata{}

	file, err := os.Open(filePath)
	if err != nil {
		slog.Warn("could not open audio file", "path", filePath, "error", err)
		return applyFallbacks(metadata, filePath)
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		slog.Debug("no readable tags", "path", filePath, "error", err)
		return applyFallbacks(metadata, filePath)
	}

	metadata.Title = strings.TrimSpace(meta.Title())
	metadata.Artist = strings.TrimSpace(meta.Artist())
	metadata.Album = strings.TrimSpace(meta.Album())
	metadata.TrackNumber, _ = meta.Track()

	return applyFallbacks(metadata, filePath)
}

func applyFallbacks(metadata *types.AudioMetadata, filePath string) *types.AudioMetadata {
	filename := filepath.Base(filePath)

	if metadata.Title == "" {
		metadata.Title = filename
	}
	if metadata.Artist == "" {
		metadata.Artist = UnknownArtist
	}
	if metadata.Album == "" {
		metadata.Album = UnknownAlbum
	}
	if metadata.TrackNumber == 0 {
		metadata.TrackNumber = trackNumberFromName(filename)
	}
	return metadata
}

// trackNumberFromName parses prefixes like "01 - ", "1. " from a file name
func trackNumberFromName(filename string) int {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	matches := trackPrefix.FindStringSubmatch(name)
	if len(matches) < 3 {
		return 0
	}
	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}
	return n
}
