package conversion

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the content type the analyzer assigned to the photo.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryContext  Category = "context"
	CategoryReceipt  Category = "receipt"
)

var categoryLabels = map[string]Category{
	"tài liệu": CategoryDocument,
	"tai lieu": CategoryDocument,
	"document": CategoryDocument,
	"ngữ cảnh": CategoryContext,
	"ngu canh": CategoryContext,
	"context":  CategoryContext,
	"hóa đơn":  CategoryReceipt,
	"hoá đơn":  CategoryReceipt,
	"hoa don":  CategoryReceipt,
	"receipt":  CategoryReceipt,
}

const (
	labelCategory = "thể loại"
	labelContent  = "nội dung"
	labelWarning  = "cảnh báo"
)

// ErrMalformedAnalysis is returned when the analyzer output does not follow
// the category format.
var ErrMalformedAnalysis = errors.New("analysis does not follow the category format")

// Analysis is the parsed analyzer output. Raw is the trimmed text as returned.
type Analysis struct {
	Category Category
	Body     string
	Warning  string
	Raw      string
}

// ParseAnalysis reads the "Thể loại:" line, the optional "Cảnh báo:" line and
// the content. An unknown category or an empty body is an error.
func ParseAnalysis(raw string) (*Analysis, error) {
	a := &Analysis{Raw: strings.TrimSpace(raw)}
	var body []string
	var categoryLabel string
	seenCategory := false

	for _, line := range strings.Split(a.Raw, "\n") {
		label, value, ok := splitLabel(line)
		switch {
		case ok && label == labelCategory && !seenCategory:
			seenCategory = true
			categoryLabel = value
		case ok && label == labelWarning:
			a.Warning = value
		case ok && label == labelContent:
			if value != "" {
				body = append(body, value)
			}
		default:
			if text := strings.TrimSpace(line); text != "" {
				body = append(body, text)
			}
		}
	}

	if !seenCategory {
		return nil, fmt.Errorf("%w: missing category line", ErrMalformedAnalysis)
	}
	cat, ok := categoryLabels[strings.ToLower(strings.TrimRight(categoryLabel, ". "))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrMalformedAnalysis, categoryLabel)
	}
	a.Category = cat

	a.Body = strings.Join(body, "\n")
	if a.Body == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedAnalysis)
	}
	return a, nil
}

// splitLabel recognizes "Label: value" lines, tolerating markdown emphasis
// and list markers around the label.
func splitLabel(line string) (label, value string, ok bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-#> ")
	before, after, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	label = strings.ToLower(strings.Trim(before, "*_ "))
	switch label {
	case labelCategory, labelContent, labelWarning:
		return label, strings.TrimSpace(strings.Trim(after, "*_ ")), true
	}
	return "", "", false
}

// Narration is the text sent to speech synthesis. A warning line is moved to
// the front.
func (a *Analysis) Narration() string {
	if a.Warning == "" {
		return a.Raw
	}
	lines := []string{"Cảnh báo: " + a.Warning}
	for _, line := range strings.Split(a.Raw, "\n") {
		if label, _, ok := splitLabel(line); ok && label == labelWarning {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
