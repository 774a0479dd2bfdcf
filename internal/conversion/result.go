package conversion

// ErrorKind classifies a failed conversion.
type ErrorKind string

const (
	KindInput            ErrorKind = "input"
	KindAnalysis         ErrorKind = "analysis"
	KindAnalysisFormat   ErrorKind = "analysis_format"
	KindSynthesis        ErrorKind = "synthesis"
	KindSynthesisTimeout ErrorKind = "synthesis_timeout"
	KindStorage          ErrorKind = "storage"
	KindCanceled         ErrorKind = "canceled"
	KindDispatch         ErrorKind = "dispatch" // the job could not be queued or tracked
)

const (
	messageSuccess = "Conversion completed successfully!"
	messageFailure = "Conversion failed"
)

// Result is the outcome of a conversion. A successful result carries the
// audio location; a failed one carries Error and ErrorKind and may keep the
// analysis text and a pending synthesis handle. Build it with Succeeded or
// Failed so exactly one shape is populated.
type Result struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	TextResult    string    `json:"text_result,omitempty"`
	AudioURL      string    `json:"audio_url,omitempty"`
	AudioFilename string    `json:"audio_filename,omitempty"`
	VoiceUsed     string    `json:"voice_used,omitempty"`
	Category      Category  `json:"category,omitempty"`
	Warning       string    `json:"warning,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
	PendingHandle string    `json:"pending_handle,omitempty"`
}

func Succeeded(text, filename, url, voice string) Result {
	return Result{
		Success:       true,
		Message:       messageSuccess,
		TextResult:    text,
		AudioURL:      url,
		AudioFilename: filename,
		VoiceUsed:     voice,
	}
}

func Failed(kind ErrorKind, msg string) Result {
	return Result{
		Success:   false,
		Message:   messageFailure,
		Error:     msg,
		ErrorKind: kind,
	}
}

// withText keeps already produced analysis text on a failure.
func (r Result) withText(text string) Result {
	r.TextResult = text
	return r
}

func (r Result) withAnalysis(a *Analysis) Result {
	if a == nil {
		return r
	}
	r.Category = a.Category
	r.Warning = a.Warning
	return r
}
