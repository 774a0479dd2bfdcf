package api_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/visionaid/internal/api"
	"github.com/nikhilbhutani/visionaid/internal/api/handlers"
	"github.com/nikhilbhutani/visionaid/internal/config"
	"github.com/nikhilbhutani/visionaid/internal/conversion"
	"github.com/nikhilbhutani/visionaid/internal/jobs"
	"github.com/nikhilbhutani/visionaid/internal/storage"
)

type fakeConverter struct {
	calls   atomic.Int32
	mu      sync.Mutex
	last    conversion.Request
	resumed conversion.ResumeRequest
	result  conversion.Result
}

func (f *fakeConverter) Convert(_ context.Context, req conversion.Request) conversion.Result {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = req
	return f.result
}

func (f *fakeConverter) Resume(_ context.Context, req conversion.ResumeRequest) conversion.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = req
	return f.result
}

func (f *fakeConverter) setResult(r conversion.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = r
}

func (f *fakeConverter) lastRequest() conversion.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeConverter) lastResume() conversion.ResumeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumed
}

type testServer struct {
	srv     *httptest.Server
	conv    *fakeConverter
	tracker *jobs.MemoryTracker
	store   *storage.LocalStorage
}

func newTestServer(t *testing.T, checks map[string]handlers.Check) *testServer {
	t.Helper()

	cfg := &config.Config{
		Server:  config.ServerConfig{CORSOrigins: []string{"*"}},
		Vision:  config.VisionConfig{Provider: "gemini"},
		TTS:     config.TTSConfig{DefaultVoice: "banmai"},
		Storage: config.StorageConfig{Backend: "local", Bucket: "audio"},
		Jobs:    config.JobsConfig{Backend: "memory"},
		Upload:  config.UploadConfig{MaxBytes: 1 << 20},
	}

	conv := &fakeConverter{}
	conv.setResult(conversion.Succeeded("Thể loại: Văn bản", "a.mp3", "/outputs/a.mp3", "banmai"))
	tracker := jobs.NewMemoryTracker(time.Hour)
	dispatcher := jobs.NewLocalDispatcher(tracker, conv)
	store, err := storage.NewLocalStorage(t.TempDir(), storage.AudioRoute)
	require.NoError(t, err)

	router := api.NewRouter(cfg, api.Deps{
		Converter:  conv,
		Tracker:    tracker,
		Dispatcher: dispatcher,
		Store:      store,
		Checks:     checks,
		TTSBackend: "fpt",
	})
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(func() {
		srv.Close()
		_ = dispatcher.Shutdown(context.Background())
	})
	return &testServer{srv: srv, conv: conv, tracker: tracker, store: store}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestUploadConvertsImage(t *testing.T) {
	ts := newTestServer(t, nil)

	body, ct := multipartBody(t, "photo.png", "image/png", pngBytes(t), map[string]string{"voice_id": "lannhi"})
	resp, err := http.Post(ts.srv.URL+"/upload", ct, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[conversion.Result](t, resp)
	assert.True(t, res.Success)
	assert.Equal(t, "/outputs/a.mp3", res.AudioURL)

	require.EqualValues(t, 1, ts.conv.calls.Load())
	last := ts.conv.lastRequest()
	assert.Equal(t, "lannhi", last.Voice)
	assert.Equal(t, "image/png", last.MimeType)
	assert.Equal(t, "photo.png", last.Filename)
}

func TestUploadRejectsNonImageBeforeConverting(t *testing.T) {
	ts := newTestServer(t, nil)

	body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hello"), nil)
	resp, err := http.Post(ts.srv.URL+"/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, ts.conv.calls.Load())
}

func TestUploadRejectsMislabelledPayload(t *testing.T) {
	ts := newTestServer(t, nil)

	body, ct := multipartBody(t, "photo.jpg", "image/jpeg", []byte("not really a jpeg"), nil)
	resp, err := http.Post(ts.srv.URL+"/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, ts.conv.calls.Load())
}

func TestUploadRejectsBadTuning(t *testing.T) {
	ts := newTestServer(t, nil)

	body, ct := multipartBody(t, "photo.png", "image/png", pngBytes(t), map[string]string{"max_retries": "-1"})
	resp, err := http.Post(ts.srv.URL+"/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, ts.conv.calls.Load())
}

func TestUploadReportsPipelineFailureWithOK(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.conv.setResult(conversion.Failed(conversion.KindAnalysis, "vision provider unavailable"))

	body, ct := multipartBody(t, "photo.png", "image/png", pngBytes(t), nil)
	resp, err := http.Post(ts.srv.URL+"/upload", ct, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[conversion.Result](t, resp)
	assert.False(t, res.Success)
	assert.Equal(t, conversion.KindAnalysis, res.ErrorKind)
}

func TestUploadBase64(t *testing.T) {
	ts := newTestServer(t, nil)

	payload, err := json.Marshal(map[string]any{
		"image":    "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t)),
		"filename": "shot.png",
		"voice":    "myan",
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.srv.URL+"/upload_base64", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[conversion.Result](t, resp).Success)
	assert.Equal(t, "myan", ts.conv.lastRequest().Voice)
}

func TestUploadBase64RejectsGarbage(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Post(ts.srv.URL+"/upload_base64", "application/json", strings.NewReader(`{"image":"***"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, ts.conv.calls.Load())
}

func TestAsyncSubmitAndStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	var ids []string
	for range 2 {
		body, ct := multipartBody(t, "photo.png", "image/png", pngBytes(t), nil)
		resp, err := http.Post(ts.srv.URL+"/upload-async", ct, body)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		out := decode[map[string]string](t, resp)
		assert.Equal(t, "Processing started", out["message"])
		require.NotEmpty(t, out["task_id"])
		ids = append(ids, out["task_id"])
	}
	assert.NotEqual(t, ids[0], ids[1])

	for _, id := range ids {
		var job jobs.Job
		require.Eventually(t, func() bool {
			resp, err := http.Get(ts.srv.URL + "/status/" + id)
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return false
			}
			if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
				return false
			}
			return job.Status == jobs.StatusCompleted
		}, 2*time.Second, 10*time.Millisecond)

		assert.Equal(t, id, job.ID)
		assert.Equal(t, 100, job.Progress)
		require.NotNil(t, job.Result)
		assert.True(t, job.Result.Success)
	}
}

func TestAsyncRejectsInvalidUpload(t *testing.T) {
	ts := newTestServer(t, nil)

	body, ct := multipartBody(t, "notes.txt", "text/plain", []byte("hello"), nil)
	resp, err := http.Post(ts.srv.URL+"/upload-async", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, ts.conv.calls.Load())
}

func TestStatusUnknownTask(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.srv.URL + "/status/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelUnknownTask(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Post(ts.srv.URL+"/status/nope/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResume(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Post(ts.srv.URL+"/resume", "application/json",
		strings.NewReader(`{"handle":"https://tts.example/a.mp3","text_result":"xin chào","voice":"giahuy","wait_time":1,"max_retries":3}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[conversion.Result](t, resp).Success)

	resumed := ts.conv.lastResume()
	assert.Equal(t, "https://tts.example/a.mp3", resumed.Handle)
	assert.Equal(t, "xin chào", resumed.Text)
	assert.Equal(t, time.Second, resumed.Tuning.WaitTime)
	assert.Equal(t, 3, resumed.Tuning.MaxRetries)
}

func TestResumeNeedsHandle(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Post(ts.srv.URL+"/resume", "application/json", strings.NewReader(`{"text_result":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVoices(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.srv.URL + "/voices")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[struct {
		Voices  []map[string]string `json:"voices"`
		Default string              `json:"default"`
	}](t, resp)
	assert.Len(t, out.Voices, 5)
	assert.Equal(t, "banmai", out.Default)
}

func TestServeAudio(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.store.Upload(context.Background(), "audio", "clip.mp3", strings.NewReader("ID3data"), "audio/mpeg"))

	resp, err := http.Get(ts.srv.URL + "/outputs/clip.mp3")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ID3data", buf.String())

	for _, path := range []string{"/outputs/missing.mp3", "/outputs/clip.exe", "/outputs/..%2Fsecret.mp3"} {
		resp, err := http.Get(ts.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, map[string]handlers.Check{
		"redis": func(context.Context) error { return nil },
	})

	resp, err := http.Get(ts.srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, "banmai", out["default_voice"])
	assert.Equal(t, "fpt", out["tts_backend"])
}

func TestHealthReportsFailingCheck(t *testing.T) {
	ts := newTestServer(t, map[string]handlers.Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})

	resp, err := http.Get(ts.srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	out := decode[map[string]any](t, resp)
	checks := out["checks"].(map[string]any)
	assert.Contains(t, checks["redis"], "connection refused")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.srv.URL+"/upload", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
