package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"imusic/storage"
	"imusic/types"

	"github.com/gin-gonic/gin"
)

// Library is the database surface the handlers read and write
type Library interface {
	ListSongs() ([]storage.Song, error)
	SearchSongs(query string) ([]storage.Song, error)
	GetSong(id uint) (*storage.Song, error)
	DeleteSong(id uint) error
	PruneMissing() (int, error)
	ListAlbums() ([]types.Album, error)
	SongsByAlbum(name string) ([]storage.Song, error)
	ListFavoriteSongs() ([]storage.Song, error)
	ToggleFavorite(songID uint) (bool, error)
	MarkFavorites(songs []storage.Song) error
}

// songID parses the :id param, answering 400 when it is not a positive
// integer.
func songID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid song id",
			"details": c.Param("id"),
		})
		return 0, false
	}
	return uint(id), true
}

// loadSong fetches the song named by :id, writing the error response itself
func loadSong(c *gin.Context, library Library) (*storage.Song, bool) {
	id, ok := songID(c)
	if !ok {
		return nil, false
	}

	song, err := library.GetSong(id)
	if err != nil {
		respondStoreError(c, err)
		return nil, false
	}
	return song, true
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrSongNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "song not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "database error",
		"details": err.Error(),
	})
}

// withFavorites marks liked songs, answering 500 on failure
func withFavorites(c *gin.Context, library Library, songs []storage.Song) bool {
	if err := library.MarkFavorites(songs); err != nil {
		respondStoreError(c, err)
		return false
	}
	return true
}
