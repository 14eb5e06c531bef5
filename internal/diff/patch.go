package diff

import (
	"fmt"

	"github.com/go-kit/kit/log/level"

	"github.com/mcncl/jsondelta/internal/classifier"
	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
)

// direction describes which side of a diff is being reconstructed. Patch and
// Rollback walk a payload the same way and only disagree on which markers
// insert and which remove.
type direction struct {
	name string
	// side names the input being transformed in error messages
	side string

	scalarKey string

	insertSuffix string
	removeSuffix string

	insertOp models.ArrayOp
	removeOp models.ArrayOp
}

var forward = direction{
	name:         "patch",
	side:         "old",
	scalarKey:    models.KeyNew,
	insertSuffix: models.SuffixAdded,
	removeSuffix: models.SuffixDeleted,
	insertOp:     models.OpAdd,
	removeOp:     models.OpRemove,
}

// Patch applies a diff to the value it was computed from using the default
// engine
func Patch(oldValue models.JSONValue, d Result) (models.JSONValue, error) {
	return defaultEngine.Patch(oldValue, d)
}

// PatchText parses a document and applies a diff to it using the default
// engine
func PatchText(oldText string, d Result) (models.JSONValue, error) {
	return defaultEngine.PatchText(oldText, d)
}

// Patch reconstructs the new value from the old value and the diff between
// them. An Undefined or null diff returns a copy of oldValue. The input is
// never modified.
func (e *Engine) Patch(oldValue models.JSONValue, d Result) (models.JSONValue, error) {
	return e.run(forward, oldValue, d)
}

// PatchText parses oldText and patches it
func (e *Engine) PatchText(oldText string, d Result) (models.JSONValue, error) {
	oldValue, err := parser.ParseString(oldText)
	if err != nil {
		return nil, err
	}
	return e.Patch(oldValue, d)
}

func (e *Engine) run(dir direction, base models.JSONValue, d Result) (models.JSONValue, error) {
	out, err := e.apply(dir, base, d.payload, nil, 0)
	if err != nil {
		level.Debug(e.opts.Logger).Log("msg", dir.name+" failed", "err", err)
		return nil, err
	}
	level.Debug(e.opts.Logger).Log("msg", dir.name+" applied", "noop", d.IsUndefined() || d.payload == nil)
	return out, nil
}

func (e *Engine) apply(dir direction, base, payload models.JSONValue, p pointer, depth int) (models.JSONValue, error) {
	if payload == nil {
		return e.embed(base, p, depth)
	}

	kind, err := classifier.Classify(base)
	if err != nil {
		return nil, at(err, p)
	}

	if kind.IsScalar() || classifier.LooksLikeScalarDiff(payload) {
		obj, ok := payload.(models.JSONObject)
		if !ok {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("expected a scalar diff object for %s value, got %s", kind, shape(payload)), p.String())
		}
		v, ok := obj[dir.scalarKey]
		if !ok {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("scalar diff is missing %q", dir.scalarKey), p.String())
		}
		return e.embed(v, p, depth)
	}

	if depth >= e.opts.MaxDepth {
		return nil, errors.NewDepthError(e.opts.MaxDepth, p.String())
	}

	switch kind {
	case models.Object:
		diffObj, ok := payload.(models.JSONObject)
		if !ok {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("cannot apply %s diff to an object", shape(payload)), p.String())
		}
		return e.applyObject(dir, base.(models.JSONObject), diffObj, p, depth)
	case models.Array:
		diffArr, ok := payload.(models.JSONArray)
		if !ok {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("cannot apply %s diff to an array", shape(payload)), p.String())
		}
		return e.applyArray(dir, base.(models.JSONArray), diffArr, p, depth)
	default:
		return nil, errors.NewUnsupportedTypeError(
			fmt.Sprintf("cannot %s %s value %s", dir.name, kind, parser.MustSerialize(base)), p.String())
	}
}

// ReadKey reports how Patch reads a key of an object diff applied to base:
// as the removal (OpRemove) or insertion (OpAdd) of name, or as an ordinary
// modified key (OpModify). When the base is not known the suffix alone
// decides.
func ReadKey(base models.JSONValue, known bool, key string) (string, models.ArrayOp) {
	obj, _ := base.(models.JSONObject)
	return forward.readKey(obj, known, key)
}

// readKey classifies a diff key in this direction. A key present verbatim
// in the base is never a marker, and a removal marker only counts when the
// key it names exists.
func (dir direction) readKey(base models.JSONObject, known bool, key string) (string, models.ArrayOp) {
	if known {
		if _, ordinary := base[key]; ordinary {
			return key, models.OpModify
		}
	}
	if name, ok := models.TrimMarker(key, dir.removeSuffix); ok {
		if !known {
			return name, models.OpRemove
		}
		if _, present := base[name]; present {
			return name, models.OpRemove
		}
		return key, models.OpModify
	}
	if name, ok := models.TrimMarker(key, dir.insertSuffix); ok {
		return name, models.OpAdd
	}
	return key, models.OpModify
}

func (e *Engine) applyObject(dir direction, base, payload models.JSONObject, p pointer, depth int) (models.JSONValue, error) {
	result := make(models.JSONObject, len(base))
	for key, v := range base {
		result[key] = v
	}
	// keys whose value already is a fresh copy
	fresh := map[string]bool{}

	for _, key := range models.SortedKeys(payload) {
		entry := payload[key]

		switch name, role := dir.readKey(base, true, key); role {
		case models.OpRemove:
			delete(result, name)
			delete(fresh, name)
			continue
		case models.OpAdd:
			v, err := e.embed(entry, p.key(name), depth+1)
			if err != nil {
				return nil, err
			}
			result[name] = v
			fresh[name] = true
			continue
		}

		current, ok := base[key]
		if !ok {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("key %q does not exist in the %s value", key, dir.side), p.String())
		}
		v, err := e.apply(dir, current, entry, p.key(key), depth+1)
		if err != nil {
			return nil, err
		}
		result[key] = v
		fresh[key] = true
	}

	for key, v := range result {
		if fresh[key] {
			continue
		}
		untouched, err := e.embed(v, p.key(key), depth+1)
		if err != nil {
			return nil, err
		}
		result[key] = untouched
	}
	return result, nil
}

func (e *Engine) applyArray(dir direction, base, payload models.JSONArray, p pointer, depth int) (models.JSONValue, error) {
	result := make(models.JSONArray, len(base))
	copy(result, base)
	fresh := make([]bool, len(base))
	// original positions of the elements removed so far
	var removed []int

	for i, raw := range payload {
		entry, ok := raw.(models.JSONArray)
		if !ok || len(entry) != 3 {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("array diff entry %d is not an [op, index, value] triple", i), p.String())
		}
		op, ok := entry[0].(string)
		if !ok {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("array diff entry %d has a non-string operation", i), p.String())
		}
		idx, err := classifier.Index(entry[1])
		if err != nil {
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("array diff entry %d: %v", i, err), p.String())
		}

		switch models.ArrayOp(op) {
		case dir.insertOp:
			if idx > len(result) {
				return nil, errors.NewMalformedDiffError(
					fmt.Sprintf("cannot insert at index %d of an array of length %d", idx, len(result)), p.String())
			}
			v, err := e.embed(entry[2], p.index(idx), depth+1)
			if err != nil {
				return nil, err
			}
			result = append(result, nil)
			copy(result[idx+1:], result[idx:])
			result[idx] = v
			fresh = append(fresh, false)
			copy(fresh[idx+1:], fresh[idx:])
			fresh[idx] = true
		case dir.removeOp:
			pos := idx - countBelow(removed, idx)
			if pos < 0 || pos >= len(result) {
				return nil, errors.NewMalformedDiffError(
					fmt.Sprintf("cannot remove index %d from an array of length %d", idx, len(result)), p.String())
			}
			result = append(result[:pos], result[pos+1:]...)
			fresh = append(fresh[:pos], fresh[pos+1:]...)
			removed = append(removed, idx)
		case models.OpModify:
			if idx >= len(base) || idx >= len(result) {
				return nil, errors.NewMalformedDiffError(
					fmt.Sprintf("cannot modify index %d of an array of length %d", idx, len(base)), p.String())
			}
			v, err := e.apply(dir, base[idx], entry[2], p.index(idx), depth+1)
			if err != nil {
				return nil, err
			}
			result[idx] = v
			fresh[idx] = true
		default:
			return nil, errors.NewMalformedDiffError(
				fmt.Sprintf("array diff entry %d has unknown operation %q", i, op), p.String())
		}
	}

	for i, v := range result {
		if fresh[i] {
			continue
		}
		untouched, err := e.embed(v, p.index(i), depth+1)
		if err != nil {
			return nil, err
		}
		result[i] = untouched
	}
	return result, nil
}

func countBelow(positions []int, idx int) int {
	n := 0
	for _, pos := range positions {
		if pos < idx {
			n++
		}
	}
	return n
}

func shape(v models.JSONValue) string {
	kind, err := classifier.Classify(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	return "a " + kind.String()
}
