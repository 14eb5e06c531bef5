// Package schema validates diff documents read from outside the process
// against a JSON Schema describing the diff wire format
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/models"
)

// DiffSchema describes every document Patch and Rollback accept: null (no
// changes), an object (scalar or object diff) or a list of array diff
// triples. A "~" triple must carry a nested diff.
const DiffSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "jsondelta diff",
  "definitions": {
    "nested": {
      "anyOf": [
        {"type": "object"},
        {"$ref": "#/definitions/arrayDiff"}
      ]
    },
    "arrayDiff": {
      "type": "array",
      "items": {"$ref": "#/definitions/triple"}
    },
    "triple": {
      "type": "array",
      "minItems": 3,
      "maxItems": 3,
      "items": [
        {"enum": ["+", "-", "~"]},
        {"type": "integer", "minimum": 0},
        {}
      ],
      "if": {"items": [{"const": "~"}]},
      "then": {"items": [{}, {}, {"$ref": "#/definitions/nested"}]}
    }
  },
  "anyOf": [
    {"type": "null"},
    {"$ref": "#/definitions/nested"}
  ]
}`

var (
	compileOnce sync.Once
	compiled    *gojsonschema.Schema
	compileErr  error
)

func diffSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(DiffSchema))
	})
	return compiled, compileErr
}

// ValidateDiffDocument checks raw diff JSON. Every violation is reported in
// a single MalformedDiff error.
func ValidateDiffDocument(data []byte) error {
	return validate(gojsonschema.NewBytesLoader(data))
}

// ValidateDiff checks a parsed diff payload
func ValidateDiff(payload models.JSONValue) error {
	return validate(gojsonschema.NewGoLoader(payload))
}

func validate(doc gojsonschema.JSONLoader) error {
	s, err := diffSchema()
	if err != nil {
		return errors.NewConfigError("diff schema does not compile", err)
	}

	result, err := s.Validate(doc)
	if err != nil {
		return errors.NewParsingError("cannot read diff document", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
	}
	return errors.NewMalformedDiffError(strings.Join(problems, "; "), "")
}
