package analyzer

import (
	"fmt"
	"strings"

	"github.com/mcncl/jsondelta/internal/classifier"
	"github.com/mcncl/jsondelta/internal/diff"
	"github.com/mcncl/jsondelta/internal/models"
)

// Stats summarises a diff
type Stats struct {
	Added    int `json:"added"`
	Deleted  int `json:"deleted"`
	Modified int `json:"modified"`
	// Depth is the nesting level of the deepest container holding a
	// change: 1 for the root (or a changed root scalar), 0 when nothing
	// changed
	Depth int `json:"depth"`
}

// Total is the number of changes of any kind
func (s Stats) Total() int {
	return s.Added + s.Deleted + s.Modified
}

// String renders the counts as a sentence, e.g.
// "3 additions. 1 deletion. 2 modifications."
func (s Stats) String() string {
	return strings.Join([]string{
		plural(s.Added, "addition"),
		plural(s.Deleted, "deletion"),
		plural(s.Modified, "modification"),
	}, " ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s.", n, noun)
	}
	return fmt.Sprintf("%d %ss.", n, noun)
}

// Analyzer walks diff payloads and counts the changes they describe
type Analyzer struct {
	stats   Stats
	base    models.JSONValue
	hasBase bool
}

// NewAnalyzer creates a new Analyzer instance.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// WithBase sets the old document diffs were computed from, so keys that
// merely end in a marker suffix count as modifications
func (a *Analyzer) WithBase(oldValue models.JSONValue) *Analyzer {
	a.base = oldValue
	a.hasBase = true
	return a
}

// Analyze counts the changes in a diff. Undefined has no changes.
func Analyze(r diff.Result) Stats {
	return NewAnalyzer().Analyze(r)
}

// AnalyzeFrom counts the changes in a diff computed from oldValue
func AnalyzeFrom(r diff.Result, oldValue models.JSONValue) Stats {
	return NewAnalyzer().WithBase(oldValue).Analyze(r)
}

// Analyze counts the changes in a diff. An Analyzer can be reused, every
// call starts from zero.
func (a *Analyzer) Analyze(r diff.Result) Stats {
	a.stats = Stats{}
	if r.IsUndefined() {
		return a.stats
	}
	a.walk(r.Value(), a.base, a.hasBase, 1)
	return a.stats
}

func (a *Analyzer) touch(depth int) {
	if depth > a.stats.Depth {
		a.stats.Depth = depth
	}
}

// child counts a modified entry of the container at depth. Scalar changes
// belong to the container's level.
func (a *Analyzer) child(payload, base models.JSONValue, known bool, depth int) {
	if classifier.LooksLikeScalarDiff(payload) {
		a.stats.Modified++
		a.touch(depth)
		return
	}
	a.walk(payload, base, known, depth+1)
}

// walk counts one payload. base is the old value at the same position when
// known is set.
func (a *Analyzer) walk(payload, base models.JSONValue, known bool, depth int) {
	if classifier.LooksLikeScalarDiff(payload) {
		a.stats.Modified++
		a.touch(depth)
		return
	}

	switch v := payload.(type) {
	case models.JSONObject:
		baseObj, isObj := base.(models.JSONObject)
		for key, entry := range v {
			_, role := diff.ReadKey(base, known, key)
			switch role {
			case models.OpAdd:
				a.stats.Added++
				a.touch(depth)
			case models.OpRemove:
				a.stats.Deleted++
				a.touch(depth)
			default:
				child, ok := baseObj[key]
				a.child(entry, child, known && isObj && ok, depth)
			}
		}
	case models.JSONArray:
		baseArr, isArr := base.(models.JSONArray)
		for _, raw := range v {
			t, ok := raw.(models.JSONArray)
			if !ok || len(t) != 3 {
				continue
			}
			op, _ := t[0].(string)
			switch models.ArrayOp(op) {
			case models.OpAdd:
				a.stats.Added++
				a.touch(depth)
			case models.OpRemove:
				a.stats.Deleted++
				a.touch(depth)
			case models.OpModify:
				var child models.JSONValue
				childKnown := false
				if idx, err := classifier.Index(t[1]); err == nil && known && isArr && idx < len(baseArr) {
					child, childKnown = baseArr[idx], true
				}
				a.child(t[2], child, childKnown, depth)
			}
		}
	}
}
