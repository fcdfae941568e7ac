package discipline

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// TransportError is returned when a request got no response at all.
type TransportError struct {
	Method, URL string
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError is returned when the backend answered with a non 2xx status.
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// Detail returns the "detail" field of a JSON error body, or the raw body.
func (e *HTTPStatusError) Detail() string {
	var v struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &v); err != nil || len(v.Detail) == 0 {
		return strings.TrimSpace(e.Body)
	}
	var s string
	if err := json.Unmarshal(v.Detail, &s); err == nil {
		return s
	}
	var errs struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(v.Detail, &errs); err == nil && len(errs.Errors) > 0 {
		return strings.Join(errs.Errors, "; ")
	}
	return string(v.Detail)
}

// DecodeError is returned when a response does not have the expected shape.
type DecodeError struct {
	What string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s: %v", e.What, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// maxDetail bounds the length of server provided text in user messages.
const maxDetail = 200

// UserMessage renders err as a message for the user, prefixed with what failed.
func UserMessage(prefix string, err error) string {
	if err == nil {
		return prefix
	}
	var (
		transport *TransportError
		status    *HTTPStatusError
		decode    *DecodeError
		detail    string
	)
	switch {
	case errors.As(err, &status):
		detail = status.Detail()
		if len(detail) > maxDetail {
			detail = detail[:maxDetail] + "..."
		}
		if detail == "" {
			detail = http.StatusText(status.Code)
		}
		detail = fmt.Sprintf("%s (%d)", detail, status.Code)
	case errors.As(err, &transport):
		detail = "server unreachable: " + transport.Err.Error()
	case errors.As(err, &decode):
		detail = "unexpected response from server"
	default:
		detail = err.Error()
	}
	return prefix + ": " + detail
}
