package services

import (
	"fmt"

	"imusic/storage"
	"imusic/types"
)

// SongStore is the part of the database the importer writes to
type SongStore interface {
	AddSong(song *storage.Song) (bool, error)
}

// ImportResult counts what an import did
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// ImportFiles stores a song for every file that is not in the library yet.
// onFile, if set, is called after each file with its 1-based position.
func ImportFiles(store SongStore, files []types.AudioFile, onFile func(n int, file types.AudioFile, created bool)) (ImportResult, error) {
	var result ImportResult

	for i, file := range files {
		song := SongFromFile(file)
		created, err := store.AddSong(song)
		if err != nil {
			return result, fmt.Errorf("importing %s: %w", file.Relative, err)
		}

		if created {
			result.Added++
		} else {
			result.Skipped++
		}
		if onFile != nil {
			onFile(i+1, file, created)
		}
	}
	return result, nil
}

// SongFromFile builds the database row for a scanned file
func SongFromFile(file types.AudioFile) *storage.Song {
	song := &storage.Song{
		Title:     file.Filename,
		Artist:    UnknownArtist,
		AlbumName: UnknownAlbum,
		FileName:  file.Filename,
		Path:      file.Path,
		Format:    file.Format,
		Size:      file.Size,
	}
	if m := file.Metadata; m != nil {
		song.Title = m.Title
		song.Artist = m.Artist
		song.AlbumName = m.Album
		song.TrackNumber = m.TrackNumber
	}
	return song
}
