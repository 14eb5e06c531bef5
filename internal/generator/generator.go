package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/mcncl/jsondelta/internal/classifier"
	"github.com/mcncl/jsondelta/internal/diff"
	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
)

// RFC 6902 operation names
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpTest    = "test"
)

// Operation is a single RFC 6902 JSON Patch operation
type Operation struct {
	Op    string
	Path  string
	Value models.JSONValue
}

// MarshalJSON writes the value member for every operation except remove,
// so null values survive
func (o Operation) MarshalJSON() ([]byte, error) {
	fields := map[string]interface{}{
		"op":   o.Op,
		"path": o.Path,
	}
	if o.Op != OpRemove {
		fields["value"] = o.Value
	}
	return json.Marshal(fields)
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func child(path, token string) string {
	return path + "/" + pointerEscaper.Replace(token)
}

// Generator converts diffs into JSON Patch documents
type Generator struct {
	withTests bool
	base      models.JSONValue
	hasBase   bool
}

// NewGenerator creates a new Generator instance
func NewGenerator() *Generator {
	return &Generator{}
}

// WithTests makes the generator guard every replaced or removed value with a
// preceding test operation
func (g *Generator) WithTests(enabled bool) *Generator {
	g.withTests = enabled
	return g
}

// WithBase gives the generator the old document the diff was computed from.
// Object keys are then read the way Patch reads them, so an ordinary key
// ending in a marker suffix is not mistaken for an added or deleted key.
func (g *Generator) WithBase(oldValue models.JSONValue) *Generator {
	g.base = oldValue
	g.hasBase = true
	return g
}

// JSONPatch converts a diff into operations that turn the old document into
// the new one. Undefined yields an empty patch.
func (g *Generator) JSONPatch(r diff.Result) ([]Operation, error) {
	ops := []Operation{}
	if r.IsUndefined() {
		return ops, nil
	}
	return g.walk(ops, r.Value(), source{value: g.base, known: g.hasBase}, "")
}

// source is the old value at the path being generated, if known
type source struct {
	value models.JSONValue
	known bool
}

func (s source) key(name string) source {
	obj, ok := s.value.(models.JSONObject)
	if !s.known || !ok {
		return source{}
	}
	v, ok := obj[name]
	return source{value: v, known: ok}
}

func (s source) index(i int) source {
	arr, ok := s.value.(models.JSONArray)
	if !s.known || !ok || i >= len(arr) {
		return source{}
	}
	return source{value: arr[i], known: true}
}

func (g *Generator) test(ops []Operation, path string, value models.JSONValue) []Operation {
	if !g.withTests {
		return ops
	}
	return append(ops, Operation{Op: OpTest, Path: path, Value: value})
}

func (g *Generator) walk(ops []Operation, payload models.JSONValue, base source, path string) ([]Operation, error) {
	if classifier.LooksLikeScalarDiff(payload) {
		scalar := payload.(models.JSONObject)
		ops = g.test(ops, path, scalar[models.KeyOld])
		return append(ops, Operation{Op: OpReplace, Path: path, Value: scalar[models.KeyNew]}), nil
	}

	switch v := payload.(type) {
	case models.JSONObject:
		return g.walkObject(ops, v, base, path)
	case models.JSONArray:
		return g.walkArray(ops, v, base, path)
	default:
		return nil, errors.NewMalformedDiffError(
			fmt.Sprintf("unexpected %T in diff payload", payload), path)
	}
}

func (g *Generator) walkObject(ops []Operation, obj models.JSONObject, base source, path string) ([]Operation, error) {
	for _, key := range models.SortedKeys(obj) {
		entry := obj[key]
		name, role := diff.ReadKey(base.value, base.known, key)
		switch role {
		case models.OpRemove:
			target := child(path, name)
			ops = g.test(ops, target, entry)
			ops = append(ops, Operation{Op: OpRemove, Path: target})
			continue
		case models.OpAdd:
			ops = append(ops, Operation{Op: OpAdd, Path: child(path, name), Value: entry})
			continue
		}

		var err error
		ops, err = g.walk(ops, entry, base.key(key), child(path, key))
		if err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func (g *Generator) walkArray(ops []Operation, arr models.JSONArray, base source, path string) ([]Operation, error) {
	var removed []int
	for i, raw := range arr {
		t, ok := raw.(models.JSONArray)
		if !ok || len(t) != 3 {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("array diff entry %d is not an [op, index, value] triple", i), path)
		}
		op, _ := t[0].(string)
		idx, err := classifier.Index(t[1])
		if err != nil {
			return nil, errors.NewMalformedDiffError(fmt.Sprintf("array diff entry %d: %v", i, err), path)
		}

		switch models.ArrayOp(op) {
		case models.OpAdd:
			ops = append(ops, Operation{Op: OpAdd, Path: fmt.Sprintf("%s/%d", path, idx), Value: t[2]})
		case models.OpRemove:
			// earlier removals have shifted the elements behind them
			pos := idx
			for _, r := range removed {
				if r < idx {
					pos--
				}
			}
			target := fmt.Sprintf("%s/%d", path, pos)
			ops = g.test(ops, target, t[2])
			ops = append(ops, Operation{Op: OpRemove, Path: target})
			removed = append(removed, idx)
		case models.OpModify:
			ops, err = g.walk(ops, t[2], base.index(idx), fmt.Sprintf("%s/%d", path, idx))
			if err != nil {
				return nil, err
			}
		default:
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("array diff entry %d has unknown operation %q", i, op), path)
		}
	}
	return ops, nil
}

// Render writes operations as an indented JSON Patch document
func (g *Generator) Render(ops []Operation) (string, error) {
	return parser.SerializePretty(ops)
}

// rootKey is where Apply parks the document so scalar roots and whole
// document replacements can be patched too
const rootKey = "root"

// Apply runs a JSON Patch against a document with an independent RFC 6902
// implementation
func Apply(doc models.JSONValue, ops []Operation) (models.JSONValue, error) {
	wrapped := make([]Operation, len(ops))
	for i, op := range ops {
		op.Path = "/" + rootKey + op.Path
		wrapped[i] = op
	}

	docText, err := parser.Serialize(models.JSONObject{rootKey: doc})
	if err != nil {
		return nil, err
	}
	patchText, err := parser.Serialize(wrapped)
	if err != nil {
		return nil, err
	}

	patch, err := jsonpatch.DecodePatch([]byte(patchText))
	if err != nil {
		return nil, errors.NewOutputError("cannot decode generated JSON patch", err)
	}
	out, err := patch.Apply([]byte(docText))
	if err != nil {
		return nil, errors.NewMalformedDiffError(fmt.Sprintf("JSON patch does not apply: %v", err), "")
	}

	result, err := parser.ParseBytes(out)
	if err != nil {
		return nil, err
	}
	return result.(models.JSONObject)[rootKey], nil
}

// Equal compares two documents structurally
func Equal(a, b models.JSONValue) (bool, error) {
	textA, err := parser.Serialize(a)
	if err != nil {
		return false, err
	}
	textB, err := parser.Serialize(b)
	if err != nil {
		return false, err
	}
	return jsonpatch.Equal([]byte(textA), []byte(textB)), nil
}
