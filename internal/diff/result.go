package diff

import (
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
)

// undefinedText is the compact rendering of a diff between equal values
const undefinedText = "undefined"

// Result is the outcome of a diff. It is either Undefined, meaning the two
// inputs were equal, or a payload in the diff wire format. The zero value is
// Undefined.
type Result struct {
	payload models.JSONValue
	defined bool
}

// Undefined returns the result of diffing two equal values
func Undefined() Result {
	return Result{}
}

// Wrap turns a diff payload produced elsewhere (read from a file, received
// over the network) into a Result. The payload is copied.
func Wrap(payload models.JSONValue) Result {
	return Result{payload: parser.Clone(payload), defined: true}
}

func defined(payload models.JSONValue) Result {
	return Result{payload: payload, defined: true}
}

// IsUndefined reports whether the diffed values were equal
func (r Result) IsUndefined() bool {
	return !r.defined
}

// Value returns a copy of the diff payload, nil when Undefined
func (r Result) Value() models.JSONValue {
	if !r.defined {
		return nil
	}
	return parser.Clone(r.payload)
}

// String renders the payload as compact JSON, or "undefined"
func (r Result) String() string {
	if !r.defined {
		return undefinedText
	}
	return parser.MustSerialize(r.payload)
}

// Pretty renders the payload as indented JSON, or "undefined"
func (r Result) Pretty() string {
	if !r.defined {
		return undefinedText
	}
	s, err := parser.SerializePretty(r.payload)
	if err != nil {
		return parser.MustSerialize(r.payload)
	}
	return s
}

// MarshalJSON encodes Undefined as null
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte("null"), nil
	}
	s, err := parser.Serialize(r.payload)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// UnmarshalJSON decodes a diff payload, null becomes Undefined
func (r *Result) UnmarshalJSON(data []byte) error {
	v, err := parser.ParseBytes(data)
	if err != nil {
		return err
	}
	if v == nil {
		*r = Undefined()
		return nil
	}
	*r = defined(v)
	return nil
}
