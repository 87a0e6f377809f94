// Package structured turns raw completion text into a JSON object.
//
// Models are asked for JSON but sometimes wrap it in prose or a code fence.
// Parse tries the text as-is, then falls back to the span from the first '{'
// to the last '}'. No repair is attempted.
package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrMalformedCompletion is wrapped by every ParseError.
var ErrMalformedCompletion = errors.New("structured: malformed completion")

// Payload is a decoded JSON object.
type Payload map[string]any

// objectSpan is greedy: "{a} text {b}" captures "{a} text {b}", which is not
// valid JSON. Known limitation, kept on purpose.
var objectSpan = regexp.MustCompile(`(?s)\{.*\}`)

// ParseError reports completion text that holds no decodable JSON object.
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedCompletion, snippet(e.Text, 120))
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedCompletion}
	}
	return []error{ErrMalformedCompletion, e.Err}
}

// Parse decodes text into a JSON object.
func Parse(text string) (Payload, error) {
	var p Payload
	err := json.Unmarshal([]byte(text), &p)
	if err == nil && p != nil {
		return p, nil
	}

	span := objectSpan.FindString(text)
	if span == "" {
		return nil, &ParseError{Text: text, Err: err}
	}

	p = nil
	if err := json.Unmarshal([]byte(span), &p); err != nil {
		return nil, &ParseError{Text: text, Err: err}
	}
	if p == nil {
		return nil, &ParseError{Text: text}
	}
	return p, nil
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return fmt.Sprintf("%q", s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return fmt.Sprintf("%q...", s[:n])
}
