package discipline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotAnObject is returned when a rule document is valid JSON but not an object.
var ErrNotAnObject = errors.New("rule document must be a JSON object")

// ParseDocument decodes the raw text of a rule document into a generic JSON
// object, the form DocumentToForm works on.
func ParseDocument(text string) (map[string]any, error) {
	var v any
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("cannot parse rule document: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("cannot parse rule document: trailing data after the document")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}
	return obj, nil
}

// DocumentObject turns any JSON marshalable document (a RuleDocument, raw
// bytes, a json.RawMessage...) into a generic JSON object.
func DocumentObject(doc any) (map[string]any, error) {
	switch d := doc.(type) {
	case map[string]any:
		return d, nil
	case json.RawMessage:
		return ParseDocument(string(d))
	case []byte:
		return ParseDocument(string(d))
	case string:
		return ParseDocument(d)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("cannot encode rule document: %w", err)
	}
	return ParseDocument(string(b))
}

// FormatDocument pretty prints a document, keys sorted, two spaces indented.
//
// It never fails: a document that cannot be encoded is printed as "{}".
func FormatDocument(doc any) string {
	obj, err := DocumentObject(doc)
	if err != nil {
		return "{}"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// condition expressions are full of '<' and '>'
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// maps are encoded with sorted keys.
	if err := enc.Encode(obj); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// EncodeDocument returns the compact wire form of a document.
func EncodeDocument(doc any) (json.RawMessage, error) {
	obj, err := DocumentObject(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return nil, fmt.Errorf("cannot encode rule document: %w", err)
	}
	return json.RawMessage(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}
