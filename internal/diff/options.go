package diff

import (
	"github.com/go-kit/kit/log"
)

// DefaultMaxDepth bounds how deeply nested a document may be before the
// engines give up instead of recursing further
const DefaultMaxDepth = 10000

// Options are the configuration parameters shared by Diff, Patch and Rollback
type Options struct {
	// MaxDepth is the deepest nesting level any engine will descend into.
	// Values below 1 fall back to DefaultMaxDepth.
	MaxDepth int
	// Logger receives debug lines for every top-level operation. Defaults to
	// a no-op logger.
	Logger log.Logger
}

// Option is a function that adjusts Options, zero or more Options can be
// passed to NewEngine
type Option func(opts *Options)

// WithMaxDepth sets the nesting limit
func WithMaxDepth(depth int) Option {
	return func(opts *Options) {
		opts.MaxDepth = depth
	}
}

// WithLogger sets the logger engines report to
func WithLogger(logger log.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// Engine computes and applies diffs. An Engine holds no state between calls
// and is safe for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine, using the default configuration unless
// options say otherwise
func NewEngine(opts ...Option) *Engine {
	o := Options{
		MaxDepth: DefaultMaxDepth,
		Logger:   log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxDepth < 1 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	return &Engine{opts: o}
}

// MaxDepth returns the nesting limit the engine enforces
func (e *Engine) MaxDepth() int {
	return e.opts.MaxDepth
}

var defaultEngine = NewEngine()
