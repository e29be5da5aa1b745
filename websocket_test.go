package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"imusic/types"
	"imusic/websocket"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readProgress reads progress messages until one of type msgType arrives
func readProgress(t *testing.T, conn *gorillaws.Conn, msgType string) []types.ProgressMessage {
	t.Helper()

	var messages []types.ProgressMessage
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		messageType, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q message", msgType)
		assert.Equal(t, gorillaws.TextMessage, messageType)

		var msg types.ProgressMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		messages = append(messages, msg)

		if msg.Type == msgType {
			return messages
		}
	}
}

// TestWebSocketScanProgress follows a whole import over the "all jobs" socket
func TestWebSocketScanProgress(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	conn := helper.ConnectWebSocket(t, "/api/ws/scans", websocket.AllJobs)
	defer conn.Close()

	job := helper.StartScan(t)
	messages := readProgress(t, conn, "complete")

	var sawProcessing bool
	var progressCount int
	for _, msg := range messages {
		assert.Equal(t, job.ID, msg.JobID)
		assert.False(t, msg.Timestamp.IsZero())
		if msg.Type == "status" && msg.Status == string(types.JobStatusProcessing) {
			sawProcessing = true
		}
		if msg.Type == "progress" && msg.CurrentFile != "" {
			progressCount++
		}
	}
	assert.True(t, sawProcessing, "processing status should be broadcast")
	assert.Equal(t, 3, progressCount, "one progress message per imported file")

	last := messages[len(messages)-1]
	assert.Equal(t, string(types.JobStatusCompleted), last.Status)
	assert.Equal(t, float64(100), last.Progress)
	assert.Equal(t, 3, last.Added)
	assert.Contains(t, last.Message, "Added 3 songs")
}

// TestWebSocketScanFailure reports a folder that disappeared before the scan ran
func TestWebSocketScanFailure(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	conn := helper.ConnectWebSocket(t, "/api/ws/scans", websocket.AllJobs)
	defer conn.Close()

	job, err := helper.Queue.AddJob(helper.LibraryDir + "/vanished")
	require.NoError(t, err)

	messages := readProgress(t, conn, "error")
	last := messages[len(messages)-1]
	assert.Equal(t, job.ID, last.JobID)
	assert.Equal(t, string(types.JobStatusFailed), last.Status)
	assert.NotEmpty(t, last.Message)
}

// TestWebSocketJobTopic checks that a per-job socket only sees its own job
func TestWebSocketJobTopic(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	job := helper.ImportLibrary(t)

	conn := helper.ConnectWebSocket(t, "/api/ws/scans/"+job.ID, job.ID)
	defer conn.Close()

	helper.Hub.BroadcastProgress(types.ProgressMessage{JobID: "someone-else", Type: "status", Timestamp: time.Now()})
	helper.Hub.BroadcastProgress(types.ProgressMessage{JobID: job.ID, Type: "status", Status: "ping", Timestamp: time.Now()})

	// Late messages of the finished scan may still arrive first.
	for {
		messages := readProgress(t, conn, "status")
		last := messages[len(messages)-1]
		for _, msg := range messages {
			assert.Equal(t, job.ID, msg.JobID)
		}
		if last.Status == "ping" {
			break
		}
	}
}

// TestWebSocketFinishedJob subscribes only after the scan is over, the way a
// browser does for a small folder, and still learns the outcome
func TestWebSocketFinishedJob(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	job := helper.ImportLibrary(t)

	conn := helper.ConnectWebSocket(t, "/api/ws/scans/"+job.ID, job.ID)
	defer conn.Close()

	messages := readProgress(t, conn, "complete")
	last := messages[len(messages)-1]
	assert.Equal(t, job.ID, last.JobID)
	assert.Equal(t, string(types.JobStatusCompleted), last.Status)
	assert.Equal(t, float64(100), last.Progress)
	assert.Equal(t, 3, last.Added)

	// A rescan where every file is already stored finishes just as fast.
	rescan := helper.ImportLibrary(t)
	conn2 := helper.ConnectWebSocket(t, "/api/ws/scans/"+rescan.ID, rescan.ID)
	defer conn2.Close()

	messages = readProgress(t, conn2, "complete")
	assert.Contains(t, messages[len(messages)-1].Message, "3 already in library")
}

// TestWebSocketFailedJob gets the error of a scan that failed before the
// socket was opened
func TestWebSocketFailedJob(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	job, err := helper.Queue.AddJob(helper.LibraryDir + "/vanished")
	require.NoError(t, err)
	done := helper.WaitForJobCompletion(t, job.ID, 5*time.Second)
	require.Equal(t, types.JobStatusFailed, done.Status)

	conn := helper.ConnectWebSocket(t, "/api/ws/scans/"+job.ID, job.ID)
	defer conn.Close()

	messages := readProgress(t, conn, "error")
	assert.Equal(t, done.Error, messages[len(messages)-1].Message)
}

func TestWebSocketUnknownJob(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	wsURL := "ws" + strings.TrimPrefix(helper.Server.URL, "http") + "/api/ws/scans/does-not-exist"
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if conn != nil {
		conn.Close()
	}
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketClientDisconnect(t *testing.T) {
	helper := NewTestHelper(t)
	defer helper.Cleanup(t)

	conn := helper.ConnectWebSocket(t, "/api/ws/scans", websocket.AllJobs)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return helper.Hub.ClientCount(websocket.AllJobs) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
