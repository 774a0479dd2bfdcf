package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nikhilbhutani/visionaid/internal/conversion"
	"github.com/nikhilbhutani/visionaid/internal/imagecheck"
)

const (
	maxWaitSeconds = 60
	maxPollRetries = 120
)

// uploadError is a client mistake reported with a 4xx status.
type uploadError struct {
	status int
	msg    string
}

func (e *uploadError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &uploadError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

type base64Upload struct {
	Image      string `json:"image"`
	Filename   string `json:"filename"`
	Voice      string `json:"voice"`
	VoiceID    string `json:"voice_id"`
	WaitTime   int    `json:"wait_time"`
	MaxRetries int    `json:"max_retries"`
}

// readUpload builds a conversion request from a multipart form (field "file")
// or a JSON body with a base64 image. Every rejection happens before any
// provider is called.
func readUpload(w http.ResponseWriter, r *http.Request, v *imagecheck.Validator) (conversion.Request, error) {
	if v.MaxBytes() > 0 {
		// base64 inflates the payload by a third
		r.Body = http.MaxBytesReader(w, r.Body, v.MaxBytes()*2+1<<20)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readMultipart(r, v)
	case "application/json":
		return readBase64(r, v)
	default:
		return conversion.Request{}, &uploadError{
			status: http.StatusUnsupportedMediaType,
			msg:    "expected multipart/form-data or application/json",
		}
	}
}

func readMultipart(r *http.Request, v *imagecheck.Validator) (conversion.Request, error) {
	if err := r.ParseMultipartForm(v.MaxBytes()); err != nil {
		return conversion.Request{}, uploadFailure(err, "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return conversion.Request{}, badRequest("file required")
	}
	defer file.Close()

	declared := header.Header.Get("Content-Type")
	if err := v.CheckName(header.Filename, declared); err != nil {
		return conversion.Request{}, checkFailure(err)
	}
	if v.MaxBytes() > 0 && header.Size > v.MaxBytes() {
		return conversion.Request{}, checkFailure(fmt.Errorf("%w: %d bytes", imagecheck.ErrTooLarge, header.Size))
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return conversion.Request{}, uploadFailure(err, "could not read file")
	}
	img, err := v.Check(header.Filename, declared, data)
	if err != nil {
		return conversion.Request{}, checkFailure(err)
	}

	tuning, err := parseTuning(r.FormValue("wait_time"), r.FormValue("max_retries"))
	if err != nil {
		return conversion.Request{}, err
	}

	voice := r.FormValue("voice")
	if voice == "" {
		voice = r.FormValue("voice_id")
	}
	return conversion.Request{
		Image:    img.Data,
		Filename: img.Filename,
		MimeType: img.MimeType,
		Voice:    voice,
		Tuning:   tuning,
	}, nil
}

func readBase64(r *http.Request, v *imagecheck.Validator) (conversion.Request, error) {
	var body base64Upload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return conversion.Request{}, uploadFailure(err, "invalid request body")
	}
	if body.Image == "" {
		return conversion.Request{}, badRequest("image required")
	}

	data, declared, err := imagecheck.DecodeBase64(body.Image)
	if err != nil {
		return conversion.Request{}, badRequest("invalid image: %v", err)
	}
	img, err := v.Check(body.Filename, declared, data)
	if err != nil {
		return conversion.Request{}, checkFailure(err)
	}

	tuning, err := checkTuning(body.WaitTime, body.MaxRetries)
	if err != nil {
		return conversion.Request{}, err
	}

	voice := body.Voice
	if voice == "" {
		voice = body.VoiceID
	}
	return conversion.Request{
		Image:    img.Data,
		Filename: img.Filename,
		MimeType: img.MimeType,
		Voice:    voice,
		Tuning:   tuning,
	}, nil
}

func parseTuning(wait, retries string) (conversion.Tuning, error) {
	var w, n int
	var err error
	if wait != "" {
		if w, err = strconv.Atoi(strings.TrimSpace(wait)); err != nil {
			return conversion.Tuning{}, badRequest("wait_time must be an integer")
		}
	}
	if retries != "" {
		if n, err = strconv.Atoi(strings.TrimSpace(retries)); err != nil {
			return conversion.Tuning{}, badRequest("max_retries must be an integer")
		}
	}
	return checkTuning(w, n)
}

func checkTuning(waitSeconds, maxRetries int) (conversion.Tuning, error) {
	if waitSeconds < 0 || waitSeconds > maxWaitSeconds {
		return conversion.Tuning{}, badRequest("wait_time must be between 0 and %d", maxWaitSeconds)
	}
	if maxRetries < 0 || maxRetries > maxPollRetries {
		return conversion.Tuning{}, badRequest("max_retries must be between 0 and %d", maxPollRetries)
	}
	return conversion.Tuning{
		WaitTime:   time.Duration(waitSeconds) * time.Second,
		MaxRetries: maxRetries,
	}, nil
}

func checkFailure(err error) error {
	if errors.Is(err, imagecheck.ErrTooLarge) {
		return &uploadError{status: http.StatusRequestEntityTooLarge, msg: err.Error()}
	}
	return &uploadError{status: http.StatusBadRequest, msg: err.Error()}
}

func uploadFailure(err error, msg string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &uploadError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
	}
	return badRequest("%s", msg)
}

func writeUploadError(w http.ResponseWriter, err error) {
	var ue *uploadError
	if errors.As(err, &ue) {
		writeError(w, ue.status, ue.msg)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
