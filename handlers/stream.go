package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"imusic/services"

	"github.com/gin-gonic/gin"
)

// StreamHandler serves audio files to the browser's media element
type StreamHandler struct {
	library Library
	files   services.LibraryService
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(library Library, files services.LibraryService) *StreamHandler {
	return &StreamHandler{
		library: library,
		files:   files,
	}
}

// StreamSong streams a song's file with support for range requests
func (h *StreamHandler) StreamSong(c *gin.Context) {
	song, ok := loadSong(c, h.library)
	if !ok {
		return
	}

	if !services.IsAudioFile(song.Path) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "file extension not allowed",
			"details": "only .mp3, .m4a and .flac files can be streamed",
		})
		return
	}

	fileInfo, err := os.Stat(song.Path)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "file not found",
				"path":  song.Path,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "file access error",
			"details": err.Error(),
		})
		return
	}
	if fileInfo.IsDir() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "path is a directory, not a file",
		})
		return
	}

	file, err := os.Open(song.Path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to open file",
			"details": err.Error(),
		})
		return
	}
	defer file.Close()

	contentType := h.files.GetContentType(song.Path)
	c.Header("Accept-Ranges", "bytes")
	c.Header("Cache-Control", "private, max-age=3600")
	c.Header("Content-Type", contentType)

	if rangeHeader := c.GetHeader("Range"); rangeHeader != "" {
		h.handleRangeRequest(c, file, fileInfo.Size(), rangeHeader)
		return
	}

	c.Header("Content-Length", strconv.FormatInt(fileInfo.Size(), 10))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		slog.Debug("stream interrupted", "song", song.ID, "error", err)
	}
}

// parseRange parses a single "bytes=start-end" range against size.
func parseRange(rangeHeader string, size int64) (start, end int64, ok bool) {
	if !strings.HasPrefix(rangeHeader, "bytes=") || size == 0 {
		return 0, 0, false
	}

	byteRange := strings.TrimPrefix(rangeHeader, "bytes=")
	if strings.Contains(byteRange, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(byteRange, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	// "bytes=-N" means the last N bytes
	if parts[0] == "" {
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}

	end = size - 1
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, true
}

// handleRangeRequest answers a Range request for seeking
func (h *StreamHandler) handleRangeRequest(c *gin.Context, file *os.File, fileSize int64, rangeHeader string) {
	start, end, ok := parseRange(rangeHeader, fileSize)
	if !ok {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to seek file",
		})
		return
	}

	contentLength := end - start + 1
	c.Header("Content-Length", strconv.FormatInt(contentLength, 10))
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	c.Status(http.StatusPartialContent)

	if _, err := io.CopyN(c.Writer, file, contentLength); err != nil {
		slog.Debug("range stream interrupted", "start", start, "end", end, "error", err)
	}
}
