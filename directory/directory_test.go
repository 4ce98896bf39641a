package directory_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/directory"
)

type staticTokens struct{}

func (staticTokens) GetValidToken(ctx context.Context) (string, error) {
	return "test-token", nil
}

type failingTokens struct{}

func (failingTokens) GetValidToken(ctx context.Context) (string, error) {
	return "", errors.New("refresh rejected")
}

func TestCreateTaskSendsAuthAndBody(t *testing.T) {
	var gotAuth, gotAgent string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tasks", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")

		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		json.NewEncoder(w).Encode(directory.CreateTaskResponse{
			TaskID:               "task-1",
			EstimatedWaitSeconds: 45,
			MaxBudgetAllocated:   5,
		})
	}))
	defer srv.Close()

	client := directory.NewClient(srv.URL, staticTokens{}, nil)
	resp, err := client.CreateTask(context.Background(), directory.CreateTaskRequest{
		Message:    "why is CI red",
		Mode:       directory.ModeQuickAnswer,
		MaxCredits: 5,
		ProjectID:  "proj-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, 45, resp.EstimatedWaitSeconds)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "lifeline-cli", gotAgent)
	assert.Equal(t, "quick-answer", gotBody["mode"])
	assert.Equal(t, float64(5), gotBody["maxBudgetUnits"])
}

func TestStatusReportsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/task-1/status", r.URL.Path)
		json.NewEncoder(w).Encode(directory.TaskStatus{Status: "completed", Response: "done"})
	}))
	defer srv.Close()

	client := directory.NewClient(srv.URL, staticTokens{}, nil)
	status, err := client.Status(context.Background(), "task-1")
	require.NoError(t, err)
	assert.True(t, status.Terminal())

	status.Status = "in_progress"
	assert.False(t, status.Terminal())
	status.Status = "cancelled"
	assert.True(t, status.Terminal())
}

func TestUpstreamErrorCarriesStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]string{"error": "insufficient credits"})
	}))
	defer srv.Close()

	client := directory.NewClient(srv.URL, staticTokens{}, nil)
	_, err := client.CreateTask(context.Background(), directory.CreateTaskRequest{Message: "hi"})
	require.Error(t, err)

	var upstream *directory.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusPaymentRequired, upstream.Status)
	assert.Contains(t, upstream.Message, "insufficient credits")
	assert.Equal(t, "create task", upstream.Op)
}

func TestUpstreamErrorFallsBackToRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := directory.NewClient(srv.URL, staticTokens{}, nil)
	_, err := client.Status(context.Background(), "task-1")

	var upstream *directory.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Contains(t, upstream.Message, "upstream exploded")
}

func TestTokenFailureSurfacesAsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server without a token")
	}))
	defer srv.Close()

	client := directory.NewClient(srv.URL, failingTokens{}, nil)
	_, err := client.Status(context.Background(), "task-1")

	var upstream *directory.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Contains(t, upstream.Message, "refresh rejected")
}

func TestActiveTasksPostsProjectID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/active", r.URL.Path)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		require.Equal(t, "proj-1", body["projectId"])

		json.NewEncoder(w).Encode([]directory.ActiveTask{
			{TaskID: "task-2", Mode: directory.ModeExtendedChat, Status: "in_progress"},
		})
	}))
	defer srv.Close()

	client := directory.NewClient(srv.URL, staticTokens{}, nil)
	tasks, err := client.ActiveTasks(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "task-2", tasks[0].TaskID)
}

func TestFollowupHitsParentEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/task-1/followup", r.URL.Path)
		var body directory.FollowupRequest
		json.NewDecoder(r.Body).Decode(&body)
		require.Equal(t, "continuing", body.Message)
		require.Equal(t, 30, body.MaxCredits)

		json.NewEncoder(w).Encode(directory.CreateTaskResponse{TaskID: "task-2"})
	}))
	defer srv.Close()

	client := directory.NewClient(srv.URL, staticTokens{}, nil)
	resp, err := client.Followup(context.Background(), "task-1", directory.FollowupRequest{
		Message:    "continuing",
		MaxCredits: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "task-2", resp.TaskID)
}

func TestUploadAttachmentSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/task-1/attachments", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "notes.txt", header.Filename)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "stack trace here", string(data))

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := directory.NewClient(srv.URL, staticTokens{}, nil)
	err := client.UploadAttachment(context.Background(), "task-1", "notes.txt", []byte("stack trace here"))
	require.NoError(t, err)
}
