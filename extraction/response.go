package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// errorEnvelope is the object the model is told to return instead of a record when it
// cannot comply. Code may come back as a string or a number.
type errorEnvelope struct {
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeResponse cleans a model answer and decodes it into out. The returned error is
// an *attemptError classified for the retry loop.
func decodeResponse(raw string, out any) error {
	text := repairJSON(outermostObject(stripFences(raw)))
	if text == "" {
		return &attemptError{kind: ErrInvalidSchema, err: errors.New("response is empty")}
	}

	if kind, err := envelopeError(text); err != nil {
		return &attemptError{kind: kind, err: err}
	}

	// Unknown keys are ignored; required fields are checked by the caller.
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(out); err != nil {
		return &attemptError{kind: ErrInvalidSchema, err: fmt.Errorf("decode response: %w", err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return &attemptError{kind: ErrInvalidSchema, err: errors.New("response has trailing data")}
	}
	return nil
}

// envelopeError reports an error envelope, or nil if text is not one. The envelope's
// code decides whether the failure is transient.
func envelopeError(text string) (kind error, cause error) {
	if !strings.Contains(text, `"error"`) {
		return nil, nil
	}
	var envelope errorEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err != nil || envelope.Error == nil {
		return nil, nil
	}

	code := strings.ToLower(strings.TrimSpace(fmt.Sprint(envelope.Error.Code)))
	err := fmt.Errorf("model reported %q: %s", code, envelope.Error.Message)
	switch {
	case strings.Contains(code, "rate"), strings.Contains(code, "quota"), code == "429":
		return ErrRateLimited, err
	case strings.Contains(code, "timeout"), code == "408", code == "504":
		return ErrTimeout, err
	case strings.Contains(code, "unavailable"), strings.Contains(code, "overload"),
		strings.Contains(code, "internal"), code == "500", code == "502", code == "503":
		return ErrUpstreamUnavailable, err
	default:
		return ErrInvalidSchema, err
	}
}
