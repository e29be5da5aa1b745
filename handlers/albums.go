package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AlbumHandler handles album endpoints
type AlbumHandler struct {
	library Library
}

// NewAlbumHandler creates a new album handler
func NewAlbumHandler(library Library) *AlbumHandler {
	return &AlbumHandler{library: library}
}

// ListAlbums returns the distinct album names in the library
func (h *AlbumHandler) ListAlbums(c *gin.Context) {
	albums, err := h.library.ListAlbums()
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"albums": albums,
		"count":  len(albums),
	})
}

// AlbumSongs returns the songs of the album given by ?name=
func (h *AlbumHandler) AlbumSongs(c *gin.Context) {
	name, ok := c.GetQuery("name")
	if !ok || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameter 'name' is required",
		})
		return
	}

	songs, err := h.library.SongsByAlbum(name)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !withFavorites(c, h.library, songs) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"album": name,
		"songs": songs,
		"count": len(songs),
	})
}
