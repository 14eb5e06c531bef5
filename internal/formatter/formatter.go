package formatter

import (
	"fmt"
	"strings"

	"github.com/mcncl/jsondelta/internal/analyzer"
	"github.com/mcncl/jsondelta/internal/diff"
	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/generator"
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
)

// Mode selects how a diff is written out
type Mode string

const (
	ModeCompact   Mode = "compact"
	ModePretty    Mode = "pretty"
	ModeHuman     Mode = "human"
	ModeStats     Mode = "stats"
	ModeJSONPatch Mode = "jsonpatch"
)

// Modes lists every supported mode
var Modes = []Mode{ModeCompact, ModePretty, ModeHuman, ModeStats, ModeJSONPatch}

// NoChanges is what the human mode prints for equal documents
const NoChanges = "no differences"

// ParseMode validates a mode name
func ParseMode(name string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == strings.ToLower(name) {
			return m, nil
		}
	}
	return "", errors.NewConfigError(fmt.Sprintf("unknown output format %q", name), nil)
}

// Formatter renders diffs and documents for display
type Formatter struct {
	mode      Mode
	color     bool
	withTests bool
	base      models.JSONValue
	hasBase   bool
}

// NewFormatter creates a new Formatter instance
func NewFormatter(mode Mode) *Formatter {
	return &Formatter{mode: mode}
}

// WithColor enables ANSI colors in the human mode
func (f *Formatter) WithColor(enabled bool) *Formatter {
	f.color = enabled
	return f
}

// WithTests adds test operations to the jsonpatch mode
func (f *Formatter) WithTests(enabled bool) *Formatter {
	f.withTests = enabled
	return f
}

// WithBase sets the old document diffs were computed from, so the human,
// stats and jsonpatch modes read suffixed object keys the way Patch does
func (f *Formatter) WithBase(oldValue models.JSONValue) *Formatter {
	f.base = oldValue
	f.hasBase = true
	return f
}

// Mode returns the output mode
func (f *Formatter) Mode() Mode {
	return f.mode
}

// Format renders a diff. The result never ends with a newline.
func (f *Formatter) Format(r diff.Result) (string, error) {
	switch f.mode {
	case ModeCompact, "":
		return r.String(), nil
	case ModePretty:
		return r.Pretty(), nil
	case ModeHuman:
		if r.IsUndefined() {
			return NoChanges, nil
		}
		return strings.TrimSuffix(f.human(r), "\n"), nil
	case ModeStats:
		a := analyzer.NewAnalyzer()
		if f.hasBase {
			a.WithBase(f.base)
		}
		return a.Analyze(r).String(), nil
	case ModeJSONPatch:
		g := generator.NewGenerator().WithTests(f.withTests)
		if f.hasBase {
			g.WithBase(f.base)
		}
		ops, err := g.JSONPatch(r)
		if err != nil {
			return "", err
		}
		return g.Render(ops)
	default:
		return "", errors.NewConfigError(fmt.Sprintf("unknown output format %q", f.mode), nil)
	}
}

func (f *Formatter) human(r diff.Result) string {
	switch {
	case f.hasBase && f.color:
		return r.HumanColorFrom(f.base, 0)
	case f.hasBase:
		return r.HumanFrom(f.base, 0)
	case f.color:
		return r.HumanColor(0)
	default:
		return r.Human(0)
	}
}

// FormatValue renders a document, indented unless the mode is compact
func (f *Formatter) FormatValue(v models.JSONValue) (string, error) {
	if f.mode == ModeCompact {
		return parser.Serialize(v)
	}
	return parser.SerializePretty(v)
}
