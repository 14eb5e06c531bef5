package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	stderrors "errors" // Standard errors package

	"github.com/ghodss/yaml"
	"github.com/huandu/go-clone"

	"github.com/mcncl/jsondelta/internal/errors" // Custom errors package
	"github.com/mcncl/jsondelta/internal/models"
)

// Parse converts a single JSON document from an io.Reader into a JSONValue.
// Numbers are kept as json.Number so integers and floats stay distinguishable.
func Parse(reader io.Reader) (models.JSONValue, error) {
	decoder := json.NewDecoder(reader)
	decoder.UseNumber() // Ensure numbers are read as json.Number

	var root models.JSONValue
	if err := decoder.Decode(&root); err != nil {
		if stderrors.Is(err, io.EOF) { // nothing was decoded at all
			return nil, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
		}
		var syntaxError *json.SyntaxError
		if stderrors.As(err, &syntaxError) {
			return nil, errors.NewParsingError(
				fmt.Sprintf("JSON syntax error at offset %d", syntaxError.Offset),
				errors.ErrInvalidJSON,
			)
		}
		if stderrors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.NewParsingError("unexpected end of JSON input", errors.ErrInvalidJSON)
		}
		return nil, errors.NewParsingError("failed to decode JSON", err)
	}

	// Anything other than whitespace after the first value is rejected
	tok, err := decoder.Token()
	switch {
	case stderrors.Is(err, io.EOF):
		return root, nil
	case err == nil:
		return nil, errors.NewParsingError(
			fmt.Sprintf("multiple JSON values found at the root (next token %v)", tok),
			errors.ErrMultipleJSON,
		)
	default:
		return nil, errors.NewParsingError("invalid trailing data after first JSON value", errors.ErrInvalidJSON)
	}
}

// ParseBytes parses a JSON document held in memory
func ParseBytes(data []byte) (models.JSONValue, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}
	return Parse(bytes.NewReader(data))
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.JSONValue, error) {
	// TrimSpace is important here because an empty string reader will give io.EOF to Decode,
	// but a string with only spaces might not, depending on the decoder's behavior.
	if strings.TrimSpace(jsonString) == "" {
		return nil, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}
	return Parse(strings.NewReader(jsonString))
}

// ParseYAML converts a YAML document to JSON and parses the result. Only the
// JSON-compatible subset of YAML is accepted (string keys, no anchors to
// binary data).
func ParseYAML(data []byte) (models.JSONValue, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
	}
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("cannot convert YAML to JSON: %v", err), errors.ErrInvalidYAML)
	}
	return Parse(bytes.NewReader(jsonData))
}

// IsYAMLPath reports whether a path looks like a YAML document
func IsYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ParseFile parses a JSON (or, by extension, YAML) document from a file path
func ParseFile(filePath string) (models.JSONValue, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		// Check if the file doesn't exist
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return nil, errors.NewInputError(
			fmt.Sprintf("failed to read file '%s'", filePath),
			err,
		)
	}
	if len(data) == 0 {
		return nil, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	if IsYAMLPath(filePath) {
		return ParseYAML(data)
	}
	return ParseBytes(data)
}

// Serialize renders a value as compact JSON. HTML characters are left
// unescaped and object keys come out sorted.
func Serialize(v models.JSONValue) (string, error) {
	return encode(v, "")
}

// SerializePretty renders a value as JSON indented with two spaces
func SerializePretty(v models.JSONValue) (string, error) {
	return encode(v, "  ")
}

func encode(v models.JSONValue, indent string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return "", errors.NewOutputError(fmt.Sprintf("cannot serialize value of type %T", v), err)
	}
	// Encode always terminates the document with a newline
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// MustSerialize is Serialize for values already known to be JSON trees.
// Values that cannot be encoded are rendered with %v.
func MustSerialize(v models.JSONValue) string {
	s, err := Serialize(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}

// Clone returns a deep copy of a JSON tree that shares no maps or slices
// with the original
func Clone(v models.JSONValue) models.JSONValue {
	if v == nil {
		return nil
	}
	return clone.Clone(v)
}
