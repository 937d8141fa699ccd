// Package testresult decodes and encodes the TestResult records that CI
// orchestrators hand to hooks on stdin.
//
// A Record is an open key/value mapping: only a few keys are interpreted and
// every other key is carried through untouched.
package testresult

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Well-known record keys.
const (
	KeyState       = "state"
	KeyDescription = "description"
	KeyTargetURL   = "target_url"
)

// StateSuccess is the only state value treated as a passing result.
const StateSuccess = "success"

// ErrMalformed is returned for input that is not a single JSON object or
// whose consumed fields have the wrong shape.
var ErrMalformed = errors.New("malformed test result")

// ErrMissingField is returned when a required key is absent. It wraps
// ErrMalformed.
var ErrMissingField = fmt.Errorf("%w: missing field", ErrMalformed)

// Record is a single decoded TestResult.
type Record map[string]any

// Decode reads exactly one JSON object from r. Numbers are kept as
// json.Number so they are re-encoded byte for byte. Input that is not valid
// UTF-8 is rejected, since encoding/json would replace the bad bytes.
func Decode(r io.Reader) (Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: input is not valid UTF-8", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %s", ErrMalformed, kindOf(raw))
	}

	// Anything after the object other than whitespace is an error.
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after JSON object", ErrMalformed)
	}

	return Record(obj), nil
}

// Encode writes rec to w as JSON. The record is serialised in full before
// anything is written, so w never sees a partial object.
func Encode(w io.Writer, rec Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(rec)); err != nil {
		return fmt.Errorf("encoding test result: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing test result: %w", err)
	}
	return nil
}

// State returns the state field. A missing state is ErrMissingField; a
// non-string state is stringified and so never matches StateSuccess.
func (r Record) State() (string, error) {
	v, ok := r[KeyState]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrMissingField, KeyState)
	}
	if s, isString := v.(string); isString {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// Description returns the description field, or "" when it is absent or null.
func (r Record) Description() (string, error) {
	v, ok := r[KeyDescription]
	if !ok || v == nil {
		return "", nil
	}
	s, isString := v.(string)
	if !isString {
		return "", fmt.Errorf("%w: %q must be a string, got %s", ErrMalformed, KeyDescription, kindOf(v))
	}
	return s, nil
}

// SetDescription replaces the description field.
func (r Record) SetDescription(desc string) {
	r[KeyDescription] = desc
}

// TargetURL returns the target_url field. ok is false when the field is
// absent, null, empty or false, which callers treat as "nothing to do".
func (r Record) TargetURL() (string, bool, error) {
	v, present := r[KeyTargetURL]
	if !present || v == nil {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, val != "", nil
	case bool:
		if !val {
			return "", false, nil
		}
	}
	return "", false, fmt.Errorf("%w: %q must be a string, got %s", ErrMalformed, KeyTargetURL, kindOf(v))
}

// SetTargetURL replaces the target_url field.
func (r Record) SetTargetURL(u string) {
	r[KeyTargetURL] = u
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
