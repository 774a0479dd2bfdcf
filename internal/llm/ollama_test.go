package llm_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionaid/internal/llm"
)

func TestOllamaSendsImagesAndParsesReply(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff, 0xe0}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body struct {
			Model    string `json:"model"`
			Stream   bool   `json:"stream"`
			Messages []struct {
				Role    string   `json:"role"`
				Content string   `json:"content"`
				Images  []string `json:"images"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llava", body.Model)
		assert.False(t, body.Stream)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, []string{base64.StdEncoding.EncodeToString(img)}, body.Messages[0].Images)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Thể loại: Ngữ cảnh"},"done":true,"prompt_eval_count":12,"eval_count":5}`))
	}))
	defer srv.Close()

	p := llm.NewOllamaProvider(srv.URL + "/")
	resp, err := p.ChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{
			Role:    "user",
			Content: "describe",
			Images:  []llm.Image{{Data: img, MimeType: "image/jpeg"}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Thể loại: Ngữ cảnh", resp.Content)
	assert.Equal(t, 17, resp.TotalTokens)
	assert.Equal(t, "ollama", resp.Provider)
}

func TestOllamaReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := llm.NewOllamaProvider(srv.URL)
	_, err := p.ChatCompletion(context.Background(), llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
