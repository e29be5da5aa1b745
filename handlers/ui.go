package handlers

import (
	"net/http"

	"imusic/storage"
	"imusic/types"

	"github.com/gin-gonic/gin"
)

// UIHandler renders the browser pages
type UIHandler struct {
	library Library
}

// NewUIHandler creates a new UI handler
func NewUIHandler(library Library) *UIHandler {
	return &UIHandler{library: library}
}

type pageData struct {
	Title  string
	Active string
	Songs  []storage.Song
	Albums []types.Album
}

// Songs renders every song in the library
func (h *UIHandler) Songs(c *gin.Context) {
	songs, err := h.library.SearchSongs(c.Query("q"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if err := h.library.MarkFavorites(songs); err != nil {
		h.renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "songs.tmpl", pageData{Title: "All Songs", Active: "songs", Songs: songs})
}

// Albums renders one card per album
func (h *UIHandler) Albums(c *gin.Context) {
	albums, err := h.library.ListAlbums()
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "albums.tmpl", pageData{Title: "Albums", Active: "albums", Albums: albums})
}

// Album renders the songs of the album given by ?name=
func (h *UIHandler) Album(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.Redirect(http.StatusFound, "/albums")
		return
	}

	songs, err := h.library.SongsByAlbum(name)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if err := h.library.MarkFavorites(songs); err != nil {
		h.renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "songs.tmpl", pageData{Title: name, Active: "albums", Songs: songs})
}

// Favorites renders the liked songs
func (h *UIHandler) Favorites(c *gin.Context) {
	songs, err := h.library.ListFavoriteSongs()
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.HTML(http.StatusOK, "songs.tmpl", pageData{Title: "Favorites", Active: "favorites", Songs: songs})
}

func (h *UIHandler) renderError(c *gin.Context, err error) {
	c.Error(err)
	c.String(http.StatusInternalServerError, "could not load library: %v", err)
}
