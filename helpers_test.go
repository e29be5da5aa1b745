package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"imusic/cmd"
	"imusic/logging"
	"imusic/services"
	"imusic/storage"
	"imusic/types"
	"imusic/websocket"

	"github.com/bogem/id3v2/v2"
	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestHelper runs the full router against a temporary database, a
// temporary music folder and a fake lyrics API
type TestHelper struct {
	Server      *httptest.Server
	LyricsAPI   *httptest.Server
	LibraryDir  string
	DB          *storage.DBClient
	Queue       services.ScanQueue
	Hub         websocket.Hub
	LyricsCalls atomic.Int32
}

// NewTestHelper creates a new test helper with a temporary test environment
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmp := t.TempDir()
	t.Setenv("IMUSIC_SETTINGS", filepath.Join(tmp, "settings.json"))
	t.Setenv("IMUSIC_LIBRARY", "")
	t.Setenv("CORS_ORIGINS", "")

	db, err := storage.NewDBClientWithPath(filepath.Join(tmp, "imusic-test.sqlite3"))
	require.NoError(t, err)

	h := &TestHelper{
		LibraryDir: filepath.Join(tmp, "music"),
		DB:         db,
	}
	h.LyricsAPI = httptest.NewServer(http.HandlerFunc(h.fakeLyrics))

	h.Hub = websocket.NewHub()
	go h.Hub.Run()

	files := services.NewLibraryService()
	h.Queue = services.NewScanQueue(1, files, db, h.Hub)
	h.Queue.Start()

	router, err := cmd.NewRouter(cmd.Deps{
		Service: "imusic-test",
		Logger:  logging.New(io.Discard, "ERROR"),
		Library: db,
		Files:   files,
		Queue:   h.Queue,
		Hub:     h.Hub,
		Lyrics:  services.NewLyricsService(services.NewLyricsClient(h.LyricsAPI.URL), db),
	})
	require.NoError(t, err)
	h.Server = httptest.NewServer(router)

	h.setupTestData(t)
	return h
}

// Cleanup cleans up test resources
func (h *TestHelper) Cleanup(t *testing.T) {
	h.Server.Close()
	h.LyricsAPI.Close()
	h.Queue.Stop()
	require.NoError(t, h.DB.Close())
}

// fakeLyrics answers like lyrics.ovh for a couple of known songs
func (h *TestHelper) fakeLyrics(w http.ResponseWriter, r *http.Request) {
	h.LyricsCalls.Add(1)
	switch r.URL.Path {
	case "/v1/The Beatles/Come Together":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"lyrics":"Here come old flat-top"}`))
	case "/v1/Broken/Upstream":
		w.WriteHeader(http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"No lyrics found"}`))
	}
}

// setupTestData creates a small music folder:
//
//	The Beatles/Abbey Road/01 - Come Together.mp3  (tagged)
//	The Beatles/Abbey Road/02 - Something.mp3      (tagged)
//	Misc/untagged.m4a
//	Misc/notes.txt
func (h *TestHelper) setupTestData(t *testing.T) {
	album := filepath.Join(h.LibraryDir, "The Beatles", "Abbey Road")
	writeTaggedMP3(t, filepath.Join(album, "01 - Come Together.mp3"), "Come Together", "The Beatles", "Abbey Road", "1")
	writeTaggedMP3(t, filepath.Join(album, "02 - Something.mp3"), "Something", "The Beatles", "Abbey Road", "2")
	h.CreateTestFile(t, "Misc/untagged.m4a", []byte("not really audio"))
	h.CreateTestFile(t, "Misc/notes.txt", []byte("liner notes"))
}

func writeTaggedMP3(t *testing.T, path, title, artist, album, track string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	audio := append([]byte{0xFF, 0xFB, 0x90, 0x64}, bytes.Repeat([]byte{0x55}, 2048)...)
	require.NoError(t, os.WriteFile(path, audio, 0644))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(title)
	tag.SetArtist(artist)
	tag.SetAlbum(album)
	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, track)
	require.NoError(t, tag.Save())
}

// CreateTestFile creates a file below the music folder
func (h *TestHelper) CreateTestFile(t *testing.T, relativePath string, content []byte) {
	fullPath := filepath.Join(h.LibraryDir, filepath.FromSlash(relativePath))
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, content, 0644))
}

// MakeRequest makes an HTTP request to the test server
func (h *TestHelper) MakeRequest(t *testing.T, method, path string, body interface{}, headers ...string) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, h.Server.URL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (h *TestHelper) doJSON(t *testing.T, method, path string, requestBody, target interface{}) *http.Response {
	resp := h.MakeRequest(t, method, path, requestBody)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if target != nil {
		require.NoError(t, json.Unmarshal(body, target), "body: %s", body)
	}
	return resp
}

// GetJSON makes a GET request and unmarshals the JSON response
func (h *TestHelper) GetJSON(t *testing.T, path string, target interface{}) *http.Response {
	return h.doJSON(t, http.MethodGet, path, nil, target)
}

// PostJSON makes a POST request with JSON body and unmarshals the response
func (h *TestHelper) PostJSON(t *testing.T, path string, requestBody, target interface{}) *http.Response {
	return h.doJSON(t, http.MethodPost, path, requestBody, target)
}

// GetText makes a GET request and returns the body as a string
func (h *TestHelper) GetText(t *testing.T, path string) (*http.Response, string) {
	resp := h.MakeRequest(t, http.MethodGet, path, nil)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// StartScan queues a scan of the music folder and returns the job
func (h *TestHelper) StartScan(t *testing.T) *types.ScanJob {
	var response struct {
		Job *types.ScanJob `json:"job"`
	}
	resp := h.PostJSON(t, "/api/library/scan", map[string]string{"path": h.LibraryDir}, &response)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, response.Job)
	return response.Job
}

// ImportLibrary scans the music folder and waits for the job to finish
func (h *TestHelper) ImportLibrary(t *testing.T) *types.ScanJob {
	job := h.WaitForJobCompletion(t, h.StartScan(t).ID, 5*time.Second)
	require.Equal(t, types.JobStatusCompleted, job.Status, job.Error)
	return job
}

// WaitForJobCompletion waits for a job to finish or times out
func (h *TestHelper) WaitForJobCompletion(t *testing.T, jobID string, timeout time.Duration) *types.ScanJob {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		var response struct {
			Job *types.ScanJob `json:"job"`
		}
		resp := h.GetJSON(t, "/api/library/scans/"+jobID, &response)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		if response.Job.Status.Finished() {
			return response.Job
		}
		time.Sleep(25 * time.Millisecond)
	}

	t.Fatalf("Job %s did not complete within timeout", jobID)
	return nil
}

// SongByTitle returns the stored song with title
func (h *TestHelper) SongByTitle(t *testing.T, title string) storage.Song {
	songs, err := h.DB.ListSongs()
	require.NoError(t, err)
	for _, s := range songs {
		if s.Title == title {
			return s
		}
	}
	t.Fatalf("song %q not in library", title)
	return storage.Song{}
}

// ConnectWebSocket connects to a WebSocket endpoint and waits until the hub
// has registered the client for topic
func (h *TestHelper) ConnectWebSocket(t *testing.T, path, topic string) *gorillaws.Conn {
	wsURL := "ws" + strings.TrimPrefix(h.Server.URL, "http") + path

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.Hub.ClientCount(topic) > 0
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}
