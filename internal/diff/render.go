package diff

import (
	"fmt"
	"strings"

	"github.com/mcncl/jsondelta/internal/classifier"
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
)

const (
	colorAdd    = "\x1b[32m"
	colorRemove = "\x1b[31m"
	colorModify = "\x1b[34m"
	colorReset  = "\x1b[0m"
)

// Human renders the diff as indented, line oriented text:
//
//	~ name: "a" => "b"
//	- gone: 1
//	+ fresh: [1,2]
//	~ items:
//	  ~ [0]: 1 => 2
//
// indent is the starting indentation level. Undefined renders as an empty
// string.
func (r Result) Human(indent int) string {
	return r.render(origin{}, indent, false)
}

// HumanColor is Human with ANSI colors: green additions, red deletions and
// blue modifications
func (r Result) HumanColor(indent int) string {
	return r.render(origin{}, indent, true)
}

// HumanFrom renders like Human, reading object keys against the old value
// the diff was computed from. Ordinary keys that happen to end in a marker
// suffix then show as modifications.
func (r Result) HumanFrom(oldValue models.JSONValue, indent int) string {
	return r.render(origin{value: oldValue, known: true}, indent, false)
}

// HumanColorFrom is HumanFrom with ANSI colors
func (r Result) HumanColorFrom(oldValue models.JSONValue, indent int) string {
	return r.render(origin{value: oldValue, known: true}, indent, true)
}

func (r Result) render(base origin, indent int, color bool) string {
	if !r.defined {
		return ""
	}
	w := &humanWriter{color: color}
	w.node(r.payload, base, indent)
	return w.String()
}

// origin is the old value under the position being rendered, if known
type origin struct {
	value models.JSONValue
	known bool
}

func (o origin) key(name string) origin {
	obj, ok := o.value.(models.JSONObject)
	if !o.known || !ok {
		return origin{}
	}
	v, ok := obj[name]
	return origin{value: v, known: ok}
}

func (o origin) index(raw models.JSONValue) origin {
	arr, ok := o.value.(models.JSONArray)
	if !o.known || !ok {
		return origin{}
	}
	i, err := classifier.Index(raw)
	if err != nil || i >= len(arr) {
		return origin{}
	}
	return origin{value: arr[i], known: true}
}

type humanWriter struct {
	strings.Builder
	color bool
}

func (w *humanWriter) line(indent int, marker models.ArrayOp, text string) {
	w.WriteString(strings.Repeat("  ", indent))
	if w.color {
		w.WriteString(colorFor(marker))
	}
	w.WriteString(string(marker))
	w.WriteByte(' ')
	w.WriteString(text)
	if w.color {
		w.WriteString(colorReset)
	}
	w.WriteByte('\n')
}

func colorFor(marker models.ArrayOp) string {
	switch marker {
	case models.OpAdd:
		return colorAdd
	case models.OpRemove:
		return colorRemove
	default:
		return colorModify
	}
}

// node renders a payload of unknown shape at the top level
func (w *humanWriter) node(payload models.JSONValue, base origin, indent int) {
	switch v := payload.(type) {
	case models.JSONObject:
		if classifier.LooksLikeScalarDiff(v) {
			w.line(indent, models.OpModify, change(v))
			return
		}
		w.object(v, base, indent)
	case models.JSONArray:
		w.array(v, base, indent)
	default:
		w.line(indent, models.OpModify, parser.MustSerialize(v))
	}
}

// entry renders a modified key or index, inline for scalar changes and as a
// nested block otherwise
func (w *humanWriter) entry(label string, payload models.JSONValue, base origin, indent int) {
	if classifier.LooksLikeScalarDiff(payload) {
		w.line(indent, models.OpModify, fmt.Sprintf("%s: %s", label, change(payload.(models.JSONObject))))
		return
	}
	switch v := payload.(type) {
	case models.JSONObject:
		w.line(indent, models.OpModify, label+":")
		w.object(v, base, indent+1)
	case models.JSONArray:
		w.line(indent, models.OpModify, label+":")
		w.array(v, base, indent+1)
	default:
		w.line(indent, models.OpModify, fmt.Sprintf("%s: %s", label, parser.MustSerialize(v)))
	}
}

func (w *humanWriter) object(obj models.JSONObject, base origin, indent int) {
	for _, key := range models.SortedKeys(obj) {
		value := obj[key]
		name, role := ReadKey(base.value, base.known, key)
		switch role {
		case models.OpRemove, models.OpAdd:
			w.line(indent, role, fmt.Sprintf("%s: %s", name, parser.MustSerialize(value)))
		default:
			w.entry(key, value, base.key(key), indent)
		}
	}
}

func (w *humanWriter) array(arr models.JSONArray, base origin, indent int) {
	for _, raw := range arr {
		t, ok := raw.(models.JSONArray)
		if !ok || len(t) != 3 {
			w.line(indent, models.OpModify, parser.MustSerialize(raw))
			continue
		}
		label := fmt.Sprintf("[%s]", parser.MustSerialize(t[1]))
		op, _ := t[0].(string)
		switch models.ArrayOp(op) {
		case models.OpAdd, models.OpRemove:
			w.line(indent, models.ArrayOp(op), fmt.Sprintf("%s: %s", label, parser.MustSerialize(t[2])))
		default:
			w.entry(label, t[2], base.index(t[1]), indent)
		}
	}
}

func change(scalar models.JSONObject) string {
	return fmt.Sprintf("%s => %s",
		parser.MustSerialize(scalar[models.KeyOld]),
		parser.MustSerialize(scalar[models.KeyNew]))
}
