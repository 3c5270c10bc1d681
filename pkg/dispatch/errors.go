package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/farmcart/farmcart/pkg/resource"
)

// ErrorKind classifies operation failures.
type ErrorKind string

const (
	// KindTransport covers API rejections and network failures.
	KindTransport ErrorKind = "transport"
	// KindPrecondition covers domain rules enforced before calling the API.
	KindPrecondition ErrorKind = "precondition"
)

var (
	// ErrLastEntity is the precondition error of the last-entity delete guard.
	ErrLastEntity = errors.New("cannot delete last entity")
	// ErrMissingID is returned when a single-entity operation has no ID.
	ErrMissingID = errors.New("operation requires an id")
	// ErrMissingStatus is returned when a status change has no status.
	ErrMissingStatus = errors.New("status change requires a status")
)

// OperationError is returned by Dispatch for every failed operation. Its
// message is the same string recorded in the category status.
type OperationError struct {
	Resource string
	Category resource.Category
	Kind     ErrorKind
	Message  string
	Err      error
}

func (e *OperationError) Error() string {
	return e.Message
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// Hint forwards the hint of the underlying error, if it has one.
func (e *OperationError) Hint() string {
	var h interface{ Hint() string }
	if errors.As(e.Err, &h) {
		return h.Hint()
	}
	return ""
}

// Rejection is a structured failure produced by a client or a test fake. Its
// Payload is searched for a message the same way an HTTP error body is.
type Rejection struct {
	Message    string
	StatusCode int
	Payload    any
}

func (r *Rejection) Error() string {
	if r.Message != "" {
		return r.Message
	}
	if r.StatusCode != 0 {
		return fmt.Sprintf("request failed with status %d", r.StatusCode)
	}
	return ""
}

// Body returns the structured payload of the rejection.
func (r *Rejection) Body() any {
	if r.Payload != nil {
		return r.Payload
	}
	if r.Message != "" {
		return map[string]any{"message": r.Message}
	}
	return nil
}

// payloadCarrier is implemented by errors that hold a decoded error body.
// *apiclient.APIError satisfies it through Payload.
type payloadCarrier interface {
	Payload() any
}

type bodyCarrier interface {
	Body() any
}

// messagePaths are tried in order against structured error bodies.
var messagePaths = []jp.Expr{
	jp.MustParseString("$.response.data.message"),
	jp.MustParseString("$.data.message"),
	jp.MustParseString("$.message"),
	jp.MustParseString("$.error.message"),
	jp.MustParseString("$.error"),
}

// NormalizeError reduces any failure to the single string recorded in the
// status. Structured bodies are searched for a message; plain errors use
// their text; anything without a usable message yields fallback.
func NormalizeError(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var oe *OperationError
	if errors.As(err, &oe) && oe.Message != "" {
		return oe.Message
	}

	var bc bodyCarrier
	if errors.As(err, &bc) {
		if msg := ExtractMessage(bc.Body()); msg != "" {
			return msg
		}
		return fallback
	}

	var pc payloadCarrier
	if errors.As(err, &pc) {
		if msg := ExtractMessage(pc.Payload()); msg != "" {
			return msg
		}
		return fallback
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}

// ExtractMessage finds the first non-empty message in a decoded JSON body.
// A bare string body is its own message.
func ExtractMessage(body any) string {
	switch v := body.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	}
	for _, x := range messagePaths {
		for _, found := range x.Get(body) {
			if s, ok := found.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// envelopeFailure is a 2xx response whose envelope says success=false.
type envelopeFailure struct {
	message string
}

func (e *envelopeFailure) Error() string { return e.message }

func (e *envelopeFailure) Body() any {
	if e.message == "" {
		return nil
	}
	return e.message
}
