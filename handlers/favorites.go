package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// FavoriteHandler handles the liked songs endpoints
type FavoriteHandler struct {
	library Library
}

// NewFavoriteHandler creates a new favorite handler
func NewFavoriteHandler(library Library) *FavoriteHandler {
	return &FavoriteHandler{library: library}
}

// ListFavorites returns the liked songs
func (h *FavoriteHandler) ListFavorites(c *gin.Context) {
	songs, err := h.library.ListFavoriteSongs()
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"songs": songs,
		"count": len(songs),
	})
}

// ToggleFavorite likes a song, or unlikes it when it is already liked
func (h *FavoriteHandler) ToggleFavorite(c *gin.Context) {
	id, ok := songID(c)
	if !ok {
		return
	}

	liked, err := h.library.ToggleFavorite(id)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"favorite": liked,
	})
}
