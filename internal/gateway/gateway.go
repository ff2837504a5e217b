package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role selects which model variant handles a request. Concrete model
// identifiers are configuration; callers only name the role.
type Role string

const (
	// RoleReasoning favors structured and textual analysis.
	RoleReasoning Role = "reasoning"
	// RoleGeneration favors image synthesis.
	RoleGeneration Role = "generation"
)

// Part is one ordered element of a multi-part request or response. Exactly
// one field is set.
type Part struct {
	Text        string
	InlineImage *InlineImage
}

// InlineImage carries image bytes for transport to or from the gateway.
type InlineImage struct {
	MIME string
	Data []byte
}

// TextPart builds a text part.
func TextPart(text string) Part { return Part{Text: text} }

// ImagePart builds an inline image part.
func ImagePart(mime string, data []byte) Part {
	return Part{InlineImage: &InlineImage{MIME: mime, Data: data}}
}

// Request describes one round-trip to the model gateway.
type Request struct {
	Role  Role
	Parts []Part
	// JSONResponse asks the gateway for a structured-output response where
	// the backing model supports it.
	JSONResponse bool
	Temperature  float64
}

// Response holds the ordered content parts of the first candidate.
type Response struct {
	Parts []Part
}

// Text joins all text parts of the response.
func (r Response) Text() string {
	var parts []string
	for _, p := range r.Parts {
		if trimmed := strings.TrimSpace(p.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Client is the model-gateway contract consumed by the pipeline.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// StatusError reports a non-2xx upstream answer with enough detail for
// transient-failure classification.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.Code, e.Message)
}

// Transient reports whether the error looks like a retryable upstream
// failure: an HTTP 5xx status or an internal-error signature in the message.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code >= 500
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range []string{"internal error", "internal_error", "unavailable", "overloaded", "deadline exceeded", "status 500", "status 502", "status 503"} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
