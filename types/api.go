package types

// AudioFile represents a discovered audio file (MP3, M4A, FLAC)
type AudioFile struct {
	Filename string         `json:"filename"`
	Path     string         `json:"path"`         // absolute path on disk
	Relative string         `json:"relativePath"` // path below the scanned root
	Size     int64          `json:"size"`
	Format   string         `json:"format"` // "mp3", "m4a", "flac"
	Metadata *AudioMetadata `json:"metadata,omitempty"`
}

// AudioMetadata represents the tags read from an audio file
type AudioMetadata struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
}

// Album is a distinct album name in the library
type Album struct {
	Name      string `json:"name"`
	SongCount int    `json:"songCount"`
}
