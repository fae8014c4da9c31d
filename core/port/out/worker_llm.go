package out

import (
	"context"
)

// ResponseFormat selects how the text generation service is asked to reply.
type ResponseFormat string

const (
	// ResponseFormatLines asks for plain text with one "Email <n>: <Category>" line per thread.
	ResponseFormatLines ResponseFormat = "lines"
	// ResponseFormatJSON asks for a strict JSON object.
	ResponseFormatJSON ResponseFormat = "json"
)

// ParseResponseFormat maps a config value to a format, defaulting to lines.
func ParseResponseFormat(s string) ResponseFormat {
	if ResponseFormat(s) == ResponseFormatJSON {
		return ResponseFormatJSON
	}
	return ResponseFormatLines
}

// GenerateRequest is one call to the text generation service.
type GenerateRequest struct {
	System      string
	Prompt      string
	Format      ResponseFormat
	Temperature float32
	MaxTokens   int
}

// TextGenerator is the hosted language model used by the classifier.
// Implementations return *domain.RateLimitError when the service asks to
// back off and *domain.UpstreamUnavailableError for every other failure.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
