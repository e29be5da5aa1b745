package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"imusic/storage"
)

const (
	// LyricsNotFoundText is stored and shown when the lyrics API has nothing
	LyricsNotFoundText = "Lyrics not found"
	// LyricsErrorText is shown when the lookup itself failed
	LyricsErrorText = "Error loading lyrics"
)

// ErrLyricsNotFound is returned when the API has no lyrics for a song
var ErrLyricsNotFound = errors.New("lyrics not found")

// LyricsClient looks lyrics up by artist and title
type LyricsClient interface {
	Fetch(ctx context.Context, artist, title string) (string, error)
}

type lyricsOVHResponse struct {
	Lyrics string `json:"lyrics"`
	Error  string `json:"error,omitempty"`
}

// lyricsOVHClient talks to the lyrics.ovh API
type lyricsOVHClient struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
}

// NewLyricsClient creates a client for the lyrics.ovh API at endpoint
func NewLyricsClient(endpoint string) LyricsClient {
	return &lyricsOVHClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		userAgent:  "imusic",
	}
}

// Fetch performs one GET /v1/{artist}/{title}; nothing is retried.
func (c *lyricsOVHClient) Fetch(ctx context.Context, artist, title string) (string, error) {
	reqURL := fmt.Sprintf("%s/v1/%s/%s", c.endpoint, url.PathEscape(artist), url.PathEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating lyrics request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting lyrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrLyricsNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lyrics api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading lyrics response: %w", err)
	}

	var parsed lyricsOVHResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing lyrics response: %w", err)
	}

	lyrics := strings.TrimSpace(parsed.Lyrics)
	if lyrics == "" {
		return "", ErrLyricsNotFound
	}
	return lyrics, nil
}

// LyricsStore persists fetched lyrics on the song row
type LyricsStore interface {
	UpdateLyrics(id uint, lyrics string) error
}

// LyricsService returns stored lyrics or fetches and stores them
type LyricsService struct {
	client LyricsClient
	store  LyricsStore
}

// NewLyricsService creates a new lyrics service
func NewLyricsService(client LyricsClient, store LyricsStore) *LyricsService {
	return &LyricsService{client: client, store: store}
}

// Lyrics returns the lyrics for song and whether they came from the
// database. A not-found answer is stored like real lyrics. Lookup failures
// are returned and nothing is stored.
func (s *LyricsService) Lyrics(ctx context.Context, song *storage.Song) (string, bool, error) {
	if song.Lyrics != "" {
		return song.Lyrics, true, nil
	}

	lyrics, err := s.client.Fetch(ctx, song.Artist, song.Title)
	if errors.Is(err, ErrLyricsNotFound) {
		lyrics = LyricsNotFoundText
	} else if err != nil {
		return "", false, err
	}

	if err := s.store.UpdateLyrics(song.ID, lyrics); err != nil {
		slog.Warn("could not store lyrics", "song", song.ID, "error", err)
	} else {
		song.Lyrics = lyrics
	}
	return lyrics, false, nil
}
