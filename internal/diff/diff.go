// Package diff computes structural differences between JSON documents and
// applies them in either direction.
//
// A diff is itself JSON. Two scalars that differ produce
// {"__old": a, "__new": b}. Objects produce an object holding one entry per
// changed key, with keys that exist on only one side marked by a "__deleted"
// or "__added" suffix. Arrays produce a list of [op, index, payload] triples
// where op is "+", "-" or "~". Array elements are compared by position, a
// single insertion near the front of an array shows up as a run of
// modifications followed by an addition at the end.
package diff

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-kit/kit/log/level"

	"github.com/mcncl/jsondelta/internal/classifier"
	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
)

// Diff compares two JSON trees using the default engine
func Diff(oldValue, newValue models.JSONValue) (Result, error) {
	return defaultEngine.Diff(oldValue, newValue)
}

// DiffText parses two JSON documents and compares them using the default
// engine
func DiffText(oldText, newText string) (Result, error) {
	return defaultEngine.DiffText(oldText, newText)
}

// Diff compares two JSON trees. Equal trees yield Undefined. Neither input is
// modified and the payload shares no maps or slices with them.
func (e *Engine) Diff(oldValue, newValue models.JSONValue) (Result, error) {
	payload, changed, err := e.diff(oldValue, newValue, nil, 0)
	if err != nil {
		level.Debug(e.opts.Logger).Log("msg", "diff failed", "err", err)
		return Undefined(), err
	}
	if !changed {
		level.Debug(e.opts.Logger).Log("msg", "diff computed", "undefined", true)
		return Undefined(), nil
	}
	level.Debug(e.opts.Logger).Log("msg", "diff computed", "undefined", false)
	return defined(payload), nil
}

// DiffText parses both documents and compares them
func (e *Engine) DiffText(oldText, newText string) (Result, error) {
	oldValue, err := parser.ParseString(oldText)
	if err != nil {
		return Undefined(), err
	}
	newValue, err := parser.ParseString(newText)
	if err != nil {
		return Undefined(), err
	}
	return e.Diff(oldValue, newValue)
}

func (e *Engine) diff(a, b models.JSONValue, p pointer, depth int) (models.JSONValue, bool, error) {
	kindA, err := classifier.Classify(a)
	if err != nil {
		return nil, false, at(err, p)
	}
	kindB, err := classifier.Classify(b)
	if err != nil {
		return nil, false, at(err, p)
	}

	if kindA.IsScalar() || kindA != kindB {
		if kindA == kindB {
			equal, err := classifier.ScalarEqual(a, b)
			if err != nil {
				return nil, false, at(err, p)
			}
			if equal {
				return nil, false, nil
			}
		}
		return e.scalarDiff(a, b, p, depth)
	}

	if depth >= e.opts.MaxDepth {
		return nil, false, errors.NewDepthError(e.opts.MaxDepth, p.String())
	}

	switch kindA {
	case models.Object:
		return e.diffObject(a.(models.JSONObject), b.(models.JSONObject), p, depth)
	case models.Array:
		return e.diffArray(a.(models.JSONArray), b.(models.JSONArray), p, depth)
	default:
		return nil, false, errors.NewUnsupportedTypeError(
			fmt.Sprintf("cannot diff %s value %s", kindA, parser.MustSerialize(a)), p.String())
	}
}

func (e *Engine) scalarDiff(a, b models.JSONValue, p pointer, depth int) (models.JSONValue, bool, error) {
	oldCopy, err := e.embed(a, p, depth)
	if err != nil {
		return nil, false, err
	}
	newCopy, err := e.embed(b, p, depth)
	if err != nil {
		return nil, false, err
	}
	return models.JSONObject{
		models.KeyOld: oldCopy,
		models.KeyNew: newCopy,
	}, true, nil
}

func (e *Engine) diffObject(a, b models.JSONObject, p pointer, depth int) (models.JSONValue, bool, error) {
	out := models.JSONObject{}
	put := func(key string, v models.JSONValue) error {
		if _, taken := out[key]; taken {
			return collision(key, p)
		}
		out[key] = v
		return nil
	}
	// a marker must not name a key that exists on either side, otherwise
	// the payload could not be read back unambiguously
	mark := func(key string, v models.JSONValue) error {
		_, inOld := a[key]
		_, inNew := b[key]
		if inOld || inNew {
			return collision(key, p)
		}
		return put(key, v)
	}

	for _, key := range models.SortedKeys(a) {
		child := p.key(key)
		newValue, ok := b[key]
		if !ok {
			removed, err := e.embed(a[key], child, depth+1)
			if err != nil {
				return nil, false, err
			}
			if err := mark(key+models.SuffixDeleted, removed); err != nil {
				return nil, false, err
			}
			continue
		}

		sub, changed, err := e.diff(a[key], newValue, child, depth+1)
		if err != nil {
			return nil, false, err
		}
		if changed {
			if err := put(key, sub); err != nil {
				return nil, false, err
			}
		}
	}

	for _, key := range models.SortedKeys(b) {
		if _, ok := a[key]; ok {
			continue
		}
		added, err := e.embed(b[key], p.key(key), depth+1)
		if err != nil {
			return nil, false, err
		}
		if err := mark(key+models.SuffixAdded, added); err != nil {
			return nil, false, err
		}
	}

	if len(out) == 0 {
		return nil, false, nil
	}
	if classifier.LooksLikeScalarDiff(out) {
		// changes under keys named __old and __new would read back as a
		// scalar diff, so the whole object is replaced instead
		return e.scalarDiff(a, b, p, depth)
	}
	return out, true, nil
}

func collision(key string, p pointer) error {
	return errors.NewUnsupportedTypeError(
		fmt.Sprintf("object key %q collides with a reserved diff key", key), p.String())
}

func (e *Engine) diffArray(a, b models.JSONArray, p pointer, depth int) (models.JSONValue, bool, error) {
	out := models.JSONArray{}

	common := len(a)
	if len(b) < common {
		common = len(b)
	}
	for i := 0; i < common; i++ {
		sub, changed, err := e.diff(a[i], b[i], p.index(i), depth+1)
		if err != nil {
			return nil, false, err
		}
		if changed {
			out = append(out, tuple(models.OpModify, i, sub))
		}
	}

	for i := common; i < len(a); i++ {
		removed, err := e.embed(a[i], p.index(i), depth+1)
		if err != nil {
			return nil, false, err
		}
		out = append(out, tuple(models.OpRemove, i, removed))
	}
	for i := common; i < len(b); i++ {
		added, err := e.embed(b[i], p.index(i), depth+1)
		if err != nil {
			return nil, false, err
		}
		out = append(out, tuple(models.OpAdd, i, added))
	}

	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

// embed copies a subtree that goes into an output verbatim, after checking
// that it only holds supported values and respects the depth limit
func (e *Engine) embed(v models.JSONValue, p pointer, depth int) (models.JSONValue, error) {
	if err := e.validate(v, p, depth); err != nil {
		return nil, err
	}
	return parser.Clone(v), nil
}

func (e *Engine) validate(v models.JSONValue, p pointer, depth int) error {
	kind, err := classifier.Classify(v)
	if err != nil {
		return at(err, p)
	}
	if kind.IsScalar() {
		return nil
	}
	if depth >= e.opts.MaxDepth {
		return errors.NewDepthError(e.opts.MaxDepth, p.String())
	}
	switch kind {
	case models.Object:
		for key, child := range v.(models.JSONObject) {
			if err := e.validate(child, p.key(key), depth+1); err != nil {
				return err
			}
		}
	case models.Array:
		for i, child := range v.(models.JSONArray) {
			if err := e.validate(child, p.index(i), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func tuple(op models.ArrayOp, index int, payload models.JSONValue) models.JSONArray {
	return models.JSONArray{string(op), indexNumber(index), payload}
}

// indexNumber keeps generated indices indistinguishable from parsed ones
func indexNumber(i int) models.JSONValue {
	return json.Number(strconv.Itoa(i))
}
