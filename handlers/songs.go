package handlers

import (
	"log/slog"
	"net/http"

	"imusic/services"
	"imusic/storage"

	"github.com/gin-gonic/gin"
)

// SongHandler handles song listing, lookup and lyrics endpoints
type SongHandler struct {
	library Library
	lyrics  *services.LyricsService
}

// NewSongHandler creates a new song handler
func NewSongHandler(library Library, lyrics *services.LyricsService) *SongHandler {
	return &SongHandler{
		library: library,
		lyrics:  lyrics,
	}
}

// ListSongs returns all songs, or those matching ?q=
func (h *SongHandler) ListSongs(c *gin.Context) {
	songs, err := h.library.SearchSongs(c.Query("q"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !withFavorites(c, h.library, songs) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"songs": songs,
		"count": len(songs),
	})
}

// GetSong returns one song
func (h *SongHandler) GetSong(c *gin.Context) {
	song, ok := loadSong(c, h.library)
	if !ok {
		return
	}

	songs := []storage.Song{*song}
	if !withFavorites(c, h.library, songs) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"song": songs[0]})
}

// DeleteSong removes a song from the library. The file stays on disk.
func (h *SongHandler) DeleteSong(c *gin.Context) {
	id, ok := songID(c)
	if !ok {
		return
	}

	if err := h.library.DeleteSong(id); err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "song removed from library"})
}

// GetLyrics returns stored lyrics or looks them up
func (h *SongHandler) GetLyrics(c *gin.Context) {
	song, ok := loadSong(c, h.library)
	if !ok {
		return
	}

	lyrics, cached, err := h.lyrics.Lyrics(c.Request.Context(), song)
	if err != nil {
		slog.Warn("lyrics lookup failed", "song", song.ID, "artist", song.Artist, "title", song.Title, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "lyrics lookup failed",
			"details": err.Error(),
			"lyrics":  services.LyricsErrorText,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     song.ID,
		"title":  song.Title,
		"artist": song.Artist,
		"lyrics": lyrics,
		"cached": cached,
	})
}
