package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GeminiGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiGateway(GeminiConfig{
		APIKey:   "test-key",
		Endpoint: srv.URL,
	})
}

func TestGenerateDecodesTextAndImageParts(t *testing.T) {
	var captured map[string]any
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
            "candidates": [{"content": {"parts": [
                {"text": "the redesign"},
                {"inlineData": {"mimeType": "image/png", "data": "` + base64.StdEncoding.EncodeToString([]byte("img")) + `"}}
            ]}}]
        }`))
	})

	resp, err := gw.Generate(t.Context(), Request{
		Role: RoleGeneration,
		Parts: []Part{
			TextPart("redesign this yard"),
			ImagePart("image/jpeg", []byte("photo")),
		},
		Temperature: 0.4,
	})
	require.NoError(t, err)

	require.Len(t, resp.Parts, 2)
	assert.Equal(t, "the redesign", resp.Text())
	require.NotNil(t, resp.Parts[1].InlineImage)
	assert.Equal(t, "image/png", resp.Parts[1].InlineImage.MIME)
	assert.Equal(t, []byte("img"), resp.Parts[1].InlineImage.Data)

	// Outbound payload carries both part kinds with inline bytes encoded.
	contents := captured["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "redesign this yard", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mime_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("photo")), inline["data"])
}

func TestGenerateJSONResponseMode(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		genCfg := payload["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", genCfg["responseMimeType"])

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`))
	})

	_, err := gw.Generate(t.Context(), Request{
		Role:         RoleReasoning,
		Parts:        []Part{TextPart("estimate costs")},
		JSONResponse: true,
	})
	require.NoError(t, err)
}

func TestGenerateDecodesErrorEnvelope(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"The model is overloaded."}}`))
	})

	_, err := gw.Generate(t.Context(), Request{Parts: []Part{TextPart("hi")}})
	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusServiceUnavailable, status.Code)
	assert.Equal(t, "The model is overloaded.", status.Message)
	assert.True(t, Transient(err))
}

func TestGenerateClientErrorIsNotTransient(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid argument"}}`))
	})

	_, err := gw.Generate(t.Context(), Request{Parts: []Part{TextPart("hi")}})
	require.Error(t, err)
	assert.False(t, Transient(err))
}

func TestGenerateEmptyCandidates(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := gw.Generate(t.Context(), Request{Parts: []Part{TextPart("hi")}})
	assert.Error(t, err)
}

func TestGenerateRequiresParts(t *testing.T) {
	gw := NewGeminiGateway(GeminiConfig{APIKey: "k"})
	_, err := gw.Generate(t.Context(), Request{})
	assert.Error(t, err)
}

func TestGenerateRequiresCredentials(t *testing.T) {
	gw := NewGeminiGateway(GeminiConfig{})
	_, err := gw.Generate(t.Context(), Request{Parts: []Part{TextPart("hi")}})
	assert.Error(t, err)
}

func TestModelSelection(t *testing.T) {
	gw := NewGeminiGateway(GeminiConfig{
		APIKey:          "k",
		ReasoningModel:  "models/custom-reasoner",
		GenerationModel: "custom-imager",
	})
	assert.Equal(t, "custom-reasoner", gw.Model(RoleReasoning))
	assert.Equal(t, "custom-imager", gw.Model(RoleGeneration))

	defaults := NewGeminiGateway(GeminiConfig{APIKey: "k"})
	assert.Equal(t, "gemini-2.5-flash", defaults.Model(RoleReasoning))
	assert.Equal(t, "gemini-2.5-flash-image", defaults.Model(RoleGeneration))
}

func TestTransientClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "status 503", err: &StatusError{Code: 503}, want: true},
		{name: "status 500", err: &StatusError{Code: 500}, want: true},
		{name: "status 404", err: &StatusError{Code: 404}, want: false},
		{name: "internal error signature", err: errors.New("rpc failed: internal error"), want: true},
		{name: "overloaded signature", err: errors.New("model overloaded, try later"), want: true},
		{name: "deadline exceeded", err: errors.New("context deadline exceeded"), want: true},
		{name: "plain failure", err: errors.New("invalid api key"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

func TestResponseText(t *testing.T) {
	resp := Response{Parts: []Part{
		TextPart("  first  "),
		ImagePart("image/png", []byte("x")),
		TextPart("second"),
	}}
	assert.Equal(t, "first\n\nsecond", resp.Text())
}
