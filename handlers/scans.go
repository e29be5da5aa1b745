package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"imusic/config"
	"imusic/services"
	"imusic/types"
	"imusic/websocket"

	"github.com/gin-gonic/gin"
)

// ScanHandler handles library import endpoints
type ScanHandler struct {
	library Library
	queue   services.ScanQueue
	hub     websocket.Hub
}

// NewScanHandler creates a new scan handler
func NewScanHandler(library Library, queue services.ScanQueue, hub websocket.Hub) *ScanHandler {
	return &ScanHandler{
		library: library,
		queue:   queue,
		hub:     hub,
	}
}

// ScanRequest is the body of POST /api/library/scan
type ScanRequest struct {
	Path string `json:"path"`
}

// StartScan queues an import of the given folder, or of the configured
// library location when no path is given
func (h *ScanHandler) StartScan(c *gin.Context) {
	var req ScanRequest
	// an empty body means "scan the library location"
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid scan request",
			"details": err.Error(),
		})
		return
	}

	root := req.Path
	if root == "" {
		root = config.GetLibraryLocation()
	}
	if err := config.ValidateLibraryPath(root); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid music folder",
			"details": err.Error(),
		})
		return
	}

	job, err := h.queue.AddJob(root)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"error":   "could not queue scan",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Scan queued successfully",
		"job":     job,
	})
}

// GetAllJobs returns all scan jobs
func (h *ScanHandler) GetAllJobs(c *gin.Context) {
	jobs := h.queue.GetAllJobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob returns a specific scan job by ID
func (h *ScanHandler) GetJob(c *gin.Context) {
	job, exists := h.queue.GetJob(c.Param("jobId"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job": job,
	})
}

// CancelJob cancels a queued scan job
func (h *ScanHandler) CancelJob(c *gin.Context) {
	if !h.queue.CancelJob(c.Param("jobId")) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job cannot be cancelled (not found or already processing)",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "job cancelled successfully",
	})
}

// Prune removes songs whose files no longer exist
func (h *ScanHandler) Prune(c *gin.Context) {
	removed, err := h.library.PruneMissing()
	if err != nil {
		respondStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "library pruned",
		"removed": removed,
	})
}

// HandleWebSocketConnection streams progress for one scan job
func (h *ScanHandler) HandleWebSocketConnection(c *gin.Context) {
	jobID := c.Param("jobId")
	if _, exists := h.queue.GetJob(jobID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	// The job may have progressed or finished before the browser got here.
	h.subscribe(c, jobID, func() (types.ProgressMessage, bool) {
		return h.queue.ProgressSnapshot(jobID)
	})
}

// HandleWebSocketAllConnection streams progress for every scan job
func (h *ScanHandler) HandleWebSocketAllConnection(c *gin.Context) {
	h.subscribe(c, websocket.AllJobs, nil)
}

func (h *ScanHandler) subscribe(c *gin.Context, topic string, snapshot func() (types.ProgressMessage, bool)) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, topic).WithSnapshot(snapshot)
	h.hub.RegisterClient(client)
	client.StartPumps()
}
