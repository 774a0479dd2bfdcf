package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// FPTConfig holds configuration for the FPT.AI v5 TTS backend.
type FPTConfig struct {
	APIKey     string
	URL        string // default: "https://api.fpt.ai/hmi/tts/v5"
	Speed      string // "" or -3..3
	// AudioHosts are the domains async audio URLs may point at. A host
	// matches an entry or any subdomain of it. The submit host is always
	// allowed.
	AudioHosts []string
	HTTPClient *http.Client
}

// FPTTTS submits text to FPT.AI and polls the returned async URL until the
// rendered file can be downloaded.
type FPTTTS struct {
	cfg        FPTConfig
	httpClient *http.Client
	submitURL  *url.URL
}

func NewFPTTTS(cfg FPTConfig) *FPTTTS {
	if cfg.URL == "" {
		cfg.URL = "https://api.fpt.ai/hmi/tts/v5"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	submitURL, _ := url.Parse(cfg.URL)
	return &FPTTTS{cfg: cfg, httpClient: client, submitURL: submitURL}
}

// CheckHandle accepts only URLs on the submit host or, over https, on one of
// the configured audio hosts.
func (f *FPTTTS) CheckHandle(handle string) error {
	u, err := url.Parse(handle)
	if err != nil || u.Host == "" || u.User != nil {
		return fmt.Errorf("%w: not an audio URL", ErrInvalidHandle)
	}
	if f.submitURL != nil && u.Scheme == f.submitURL.Scheme && strings.EqualFold(u.Host, f.submitURL.Host) {
		return nil
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidHandle, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range f.cfg.AudioHosts {
		allowed = strings.ToLower(strings.TrimPrefix(allowed, "."))
		if allowed != "" && (host == allowed || strings.HasSuffix(host, "."+allowed)) {
			return nil
		}
	}
	return fmt.Errorf("%w: host %q", ErrInvalidHandle, u.Hostname())
}

func (f *FPTTTS) Name() string { return "fpt" }

type fptSubmitResponse struct {
	Async     string `json:"async"`
	Error     int    `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// Submit posts the raw UTF-8 text and returns the async download URL.
func (f *FPTTTS) Submit(ctx context.Context, req SynthesisRequest) (string, error) {
	format := req.Format
	if format == "" {
		format = "mp3"
	}
	speed := f.cfg.Speed
	if req.Speed != 0 {
		speed = strconv.FormatFloat(req.Speed, 'f', -1, 64)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, strings.NewReader(req.Input))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("api-key", f.cfg.APIKey)
	httpReq.Header.Set("speed", speed)
	httpReq.Header.Set("voice", req.Voice)
	httpReq.Header.Set("format", format)

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("fpt request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &RejectedError{
			Provider:   "fpt",
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("TTS request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var out fptSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("fpt decode: %w", err)
	}
	if out.Error != 0 {
		return "", &RejectedError{Provider: "fpt", Message: out.Message}
	}
	if out.Async == "" {
		return "", &RejectedError{Provider: "fpt", Message: "No audio URL returned from FPT.AI"}
	}
	if err := f.CheckHandle(out.Async); err != nil {
		return "", &RejectedError{Provider: "fpt", Message: fmt.Sprintf("unexpected audio URL: %v", err)}
	}
	return out.Async, nil
}

// Fetch downloads the audio. Any status other than 200 means not ready.
func (f *FPTTTS) Fetch(ctx context.Context, handle string) (*SynthesisResult, error) {
	if err := f.CheckHandle(handle); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, handle, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fpt download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w (status %d)", ErrNotReady, resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fpt read audio: %w", err)
	}

	ext := extensionFromURL(handle)
	return &SynthesisResult{
		Audio:       audio,
		ContentType: contentTypeFor(ext, resp.Header.Get("Content-Type")),
		Extension:   ext,
	}, nil
}

func extensionFromURL(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	if ext := path.Ext(p); ext != "" {
		return strings.ToLower(ext)
	}
	return ".mp3"
}

func contentTypeFor(ext, header string) string {
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	}
	if header != "" {
		return header
	}
	return "application/octet-stream"
}
