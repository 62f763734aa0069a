// Package parser turns reasoning-service text that should encode a JSON
// object into a typed value. Decoding never fails past this package: a
// response that cannot be decoded yields the caller's fallback, tagged as
// degraded with the reason.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrNoObject = errors.New("no json object found")

// Result is either Ok(value) or Degraded(fallback, reason).
type Result[T any] struct {
	value    T
	degraded bool
	reason   string
}

// Ok wraps an already typed value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fallback wraps a default chosen because the real value is unavailable.
func Fallback[T any](v T, reason string) Result[T] {
	if reason == "" {
		reason = "unspecified"
	}
	return Result[T]{value: v, degraded: true, reason: reason}
}

func (r Result[T]) Value() T       { return r.value }
func (r Result[T]) Degraded() bool { return r.degraded }
func (r Result[T]) Reason() string { return r.reason }

// Unwrap returns the value together with the degradation flag.
func (r Result[T]) Unwrap() (T, bool) {
	return r.value, r.degraded
}

var fenceRe = regexp.MustCompile("(?s)^(```|~~~)[a-zA-Z0-9_-]*[ \t]*\r?\n?(.*?)\r?\n?(```|~~~)\\s*$")

// StripFences removes one level of markdown code fencing around text.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[2])
	}
	// An opening fence without a closing one still counts as wrapping.
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(s, marker) {
			s = strings.TrimPrefix(s, marker)
			if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
				s = s[i+1:]
			}
			return strings.TrimSpace(strings.TrimSuffix(s, marker))
		}
	}
	return s
}

// Decode parses raw into T. On any failure it returns fallback tagged
// as degraded.
func Decode[T any](raw string, fallback T) Result[T] {
	v, err := decode[T](raw)
	if err != nil {
		return Fallback(fallback, err.Error())
	}
	return Ok(v)
}

func decode[T any](raw string) (T, error) {
	var zero T
	body := StripFences(raw)
	if body == "" {
		return zero, errors.New("empty response")
	}

	var v T
	err := json.Unmarshal([]byte(body), &v)
	if err == nil {
		return v, nil
	}

	obj, ok := outermostObject(body)
	if !ok {
		return zero, fmt.Errorf("decode: %w", ErrNoObject)
	}
	var retry T
	if err2 := json.Unmarshal([]byte(obj), &retry); err2 != nil {
		return zero, fmt.Errorf("decode: %w", err2)
	}
	return retry, nil
}

// outermostObject returns the first balanced {...} span of s, ignoring
// braces that appear inside JSON strings.
func outermostObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
