package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionaid/internal/multimodal/tts"
)

func TestOpenAITTSMapsCatalogVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "onyx", body["voice"])
		assert.Equal(t, "tts-1", body["model"])
		assert.Equal(t, "Xin chào", body["input"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p := tts.NewOpenAITTS(tts.OpenAITTSConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	res, err := p.Synthesize(context.Background(), tts.SynthesisRequest{Input: "Xin chào", Voice: "giahuy"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), res.Audio)
	assert.Equal(t, ".mp3", res.Extension)
}

func TestOpenAITTSRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p := tts.NewOpenAITTS(tts.OpenAITTSConfig{APIKey: "bad", BaseURL: srv.URL + "/v1"})
	_, err := p.Synthesize(context.Background(), tts.SynthesisRequest{Input: "x"})

	var rejected *tts.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, http.StatusUnauthorized, rejected.StatusCode)
}
