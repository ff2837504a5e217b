package video

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate-video", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "before", body["original_image"])
		assert.Equal(t, "after", body["redesign_image"])
		assert.NotEmpty(t, body["prompt"])

		_, _ = w.Write([]byte(`{"status": "success", "video_url": "https://cdn.example.com/clip.mp4"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	require.True(t, client.Enabled())

	result, err := client.Transform(t.Context(), "before", "after")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", result.VideoURL)
}

func TestTransformFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "failed", "message": "generation quota exceeded"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Transform(t.Context(), "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestTransformHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Transform(t.Context(), "a", "b")
	assert.Error(t, err)
}

func TestDisabledClient(t *testing.T) {
	client := NewClient(Config{})
	assert.False(t, client.Enabled())
	_, err := client.Transform(t.Context(), "a", "b")
	assert.Error(t, err)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}
