package discipline

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "Failed"},
		{"plain", errors.New("oops"), "Failed: oops"},
		{"string detail", &HTTPStatusError{Code: 409, Body: `{"detail":"Ticker already exists"}`}, "Failed: Ticker already exists (409)"},
		{"validation errors", &HTTPStatusError{Code: 422, Body: `{"detail":{"errors":["a: x","b: y"]}}`}, "Failed: a: x; b: y (422)"},
		{"raw body", &HTTPStatusError{Code: 502, Body: "bad gateway\n"}, "Failed: bad gateway (502)"},
		{"empty body", &HTTPStatusError{Code: 503}, "Failed: Service Unavailable (503)"},
		{"wrapped", fmt.Errorf("cannot list: %w", &HTTPStatusError{Code: 404, Body: `{"detail":"Stock not found"}`}), "Failed: Stock not found (404)"},
		{"transport", &TransportError{Method: "GET", URL: "http://localhost/stocks", Err: errors.New("connection refused")}, "Failed: server unreachable: connection refused"},
		{"decode", &DecodeError{What: "stocks", Err: errors.New("unexpected EOF")}, "Failed: unexpected response from server"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage("Failed", tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserMessage_LongBody(t *testing.T) {
	got := UserMessage("Failed", &HTTPStatusError{Code: 500, Body: strings.Repeat("x", 500)})
	if len(got) > 250 {
		t.Errorf("UserMessage() is %d long, want it truncated", len(got))
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("cause")
	if !errors.Is(&TransportError{Err: cause}, cause) {
		t.Errorf("TransportError does not unwrap")
	}
	if !errors.Is(&DecodeError{Err: cause}, cause) {
		t.Errorf("DecodeError does not unwrap")
	}
}
