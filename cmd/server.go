package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"imusic/config"
	"imusic/handlers"
	"imusic/middleware"
	"imusic/services"
	"imusic/storage"
	"imusic/web"
	"imusic/websocket"

	"github.com/gin-gonic/gin"
)

// Deps are the services the router is wired to
type Deps struct {
	Service string
	Logger  *slog.Logger
	Library handlers.Library
	Files   services.LibraryService
	Queue   services.ScanQueue
	Hub     websocket.Hub
	Lyrics  *services.LyricsService
}

// StartWebServer opens the database, starts the scan queue and serves
// until SIGINT/SIGTERM
func StartWebServer(port int, logger *slog.Logger) error {
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := storage.NewDBClient()
	if err != nil {
		return err
	}
	defer db.Close()

	hub := websocket.NewHub()
	go hub.Run()

	files := services.NewLibraryService()
	queue := services.NewScanQueue(config.GetScanWorkers(), files, db, hub)
	queue.Start()
	defer queue.Stop()

	router, err := NewRouter(Deps{
		Service: "imusic",
		Logger:  logger,
		Library: db,
		Files:   files,
		Queue:   queue,
		Hub:     hub,
		Lyrics:  services.NewLyricsService(services.NewLyricsClient(config.GetLyricsEndpoint()), db),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("iMusic web server starting", "port", port, "db", config.GetDBPath())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// NewRouter builds the gin engine with every route
func NewRouter(d Deps) (*gin.Engine, error) {
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Security())
	r.SetHTMLTemplate(tmpl)

	setupRoutes(r, d)
	return r, nil
}

// setupRoutes configures all the HTTP routes
func setupRoutes(r *gin.Engine, d Deps) {
	healthHandler := handlers.NewHealthHandler(d.Service)
	songHandler := handlers.NewSongHandler(d.Library, d.Lyrics)
	streamHandler := handlers.NewStreamHandler(d.Library, d.Files)
	albumHandler := handlers.NewAlbumHandler(d.Library)
	favoriteHandler := handlers.NewFavoriteHandler(d.Library)
	scanHandler := handlers.NewScanHandler(d.Library, d.Queue, d.Hub)
	settingsHandler := handlers.NewSettingsHandler()
	uiHandler := handlers.NewUIHandler(d.Library)

	r.GET("/health", healthHandler.HealthCheck)

	// Browser UI
	r.StaticFS("/static", http.FS(web.Static()))
	r.GET("/", uiHandler.Songs)
	r.GET("/albums", uiHandler.Albums)
	r.GET("/album", uiHandler.Album)
	r.GET("/favorites", uiHandler.Favorites)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", healthHandler.APIStatus)

		songsGroup := apiGroup.Group("/songs")
		{
			songsGroup.GET("", songHandler.ListSongs)
			songsGroup.GET("/:id", songHandler.GetSong)
			songsGroup.DELETE("/:id", songHandler.DeleteSong)
			songsGroup.GET("/:id/stream", streamHandler.StreamSong)
			songsGroup.GET("/:id/lyrics", songHandler.GetLyrics)
		}

		apiGroup.GET("/albums", albumHandler.ListAlbums)
		apiGroup.GET("/albums/songs", albumHandler.AlbumSongs)

		apiGroup.GET("/favorites", favoriteHandler.ListFavorites)
		apiGroup.POST("/favorites/:id", favoriteHandler.ToggleFavorite)

		libraryGroup := apiGroup.Group("/library")
		{
			libraryGroup.POST("/scan", scanHandler.StartScan)
			libraryGroup.POST("/prune", scanHandler.Prune)
			libraryGroup.GET("/scans", scanHandler.GetAllJobs)
			libraryGroup.GET("/scans/:jobId", scanHandler.GetJob)
			libraryGroup.DELETE("/scans/:jobId", scanHandler.CancelJob)
		}

		// WebSocket endpoints for scan progress
		wsGroup := apiGroup.Group("/ws")
		{
			wsGroup.GET("/scans/:jobId", scanHandler.HandleWebSocketConnection)
			wsGroup.GET("/scans", scanHandler.HandleWebSocketAllConnection)
		}

		apiGroup.GET("/settings", settingsHandler.GetSettings)
		apiGroup.POST("/settings", settingsHandler.UpdateSettings)
	}
}
