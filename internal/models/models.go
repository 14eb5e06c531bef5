package models

import (
	"sort"
	"strings"
)

// JSONValue is a generic type to represent any JSON value.
// This can be a string, number, boolean, null, object, or array.
type JSONValue = interface{}

// JSONObject represents a JSON object, which is a map of strings to JSONValues.
type JSONObject = map[string]JSONValue

// JSONArray represents a JSON array, which is a slice of JSONValues.
type JSONArray = []JSONValue

// Kind is the closed set of JSON value kinds the differ understands
type Kind int

const (
	Null Kind = iota
	Integer
	Float
	Boolean
	String
	Object
	Array
)

var kindNames = [...]string{
	Null:    "null",
	Integer: "integer",
	Float:   "float",
	Boolean: "boolean",
	String:  "string",
	Object:  "object",
	Array:   "array",
}

// String returns the lower-case name of the kind
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsScalar reports whether values of this kind are compared as a whole.
// Strings are scalar: they are never diffed character by character.
func (k Kind) IsScalar() bool {
	switch k {
	case Null, Integer, Float, Boolean, String:
		return true
	default:
		return false
	}
}

// Document is a parsed input together with where it came from
type Document struct {
	Root   JSONValue
	Kind   Kind
	Source string // file path, "-" for stdin, empty for inline text
}

// Reserved names of the diff wire format. Every consumer of a diff payload has
// to agree on these to interoperate.
const (
	// KeyOld and KeyNew hold the two sides of a scalar diff
	KeyOld = "__old"
	KeyNew = "__new"

	// SuffixDeleted and SuffixAdded mark object keys that only exist on one side
	SuffixDeleted = "__deleted"
	SuffixAdded   = "__added"
)

// ArrayOp is the first element of an array diff tuple
type ArrayOp string

const (
	OpAdd    ArrayOp = "+"
	OpRemove ArrayOp = "-"
	OpModify ArrayOp = "~"
)

// TrimMarker strips a reserved suffix from an object key. A key made of
// nothing but the suffix is an ordinary key.
func TrimMarker(key, suffix string) (string, bool) {
	if len(key) <= len(suffix) || !strings.HasSuffix(key, suffix) {
		return "", false
	}
	return strings.TrimSuffix(key, suffix), true
}

// SortedKeys returns the keys of an object in byte order
func SortedKeys(obj JSONObject) []string {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
