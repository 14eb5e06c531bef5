package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/mcncl/jsondelta/internal/analyzer"
	"github.com/mcncl/jsondelta/internal/config"
	"github.com/mcncl/jsondelta/internal/diff"
	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/formatter"
	"github.com/mcncl/jsondelta/internal/generator"
	"github.com/mcncl/jsondelta/internal/logging"
	"github.com/mcncl/jsondelta/internal/models"
	"github.com/mcncl/jsondelta/internal/parser"
	"github.com/mcncl/jsondelta/internal/schema"
	"github.com/mcncl/jsondelta/internal/server"
)

// Version information
const (
	Version = "0.1.0"
)

// stdinPath names standard input wherever a file path is expected
const stdinPath = "-"

// Globals are the flags shared by every command
type Globals struct {
	Config    string           `help:"Path to a config file. Defaults to the nearest .jsondelta.yml." short:"c" type:"path"`
	Debug     bool             `help:"Enable debug logging." short:"d"`
	LogFormat string           `help:"Log format (logfmt or json)." name:"log-format"`
	Version   kong.VersionFlag `help:"Show version information." short:"v"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Diff     DiffCmd     `cmd:"" help:"Compute the diff between two JSON documents."`
	Patch    PatchCmd    `cmd:"" help:"Apply a diff to the old document."`
	Rollback RollbackCmd `cmd:"" help:"Revert a diff from the new document."`
	Verify   VerifyCmd   `cmd:"" help:"Check that a diff round-trips in both directions and as JSON Patch."`
	Export   ExportCmd   `cmd:"" help:"Convert a diff file to an RFC 6902 JSON Patch."`
	Serve    ServeCmd    `cmd:"" help:"Serve diff, patch and rollback over HTTP."`
	History  HistoryCmd  `cmd:"" help:"Keep a version history of named documents."`
}

// Context holds the runtime context handed to every command
type Context struct {
	Config *config.Config
	Engine *diff.Engine
	Logger log.Logger
	Stdin  io.Reader
	Stdout io.Writer
}

func main() {
	if err := execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Exit); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		fmt.Fprintf(os.Stderr, "\nFor help, run: jsondelta --help\n")
		os.Exit(1)
	}
}

// execute parses args and runs the selected command
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer, exit func(int)) error {
	var cli CLI
	app, err := kong.New(&cli,
		kong.Name("jsondelta"),
		kong.Description("Compute, apply and revert structural diffs between JSON documents"),
		kong.UsageOnError(),
		kong.Vars{"version": Version},
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
	)
	if err != nil {
		return err
	}

	kctx, err := app.Parse(args)
	if err != nil {
		return errors.NewInputError(err.Error(), nil)
	}

	ctx, err := newContext(&cli.Globals, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	return kctx.Run(ctx)
}

// newContext resolves configuration (defaults, file, environment, flags)
// and builds the logger and engine from it
func newContext(g *Globals, stdin io.Reader, stdout, stderr io.Writer) (*Context, error) {
	overrides := &config.Config{Log: config.LogConfig{Format: g.LogFormat}}
	if g.Debug {
		overrides.Log.Level = "debug"
	}

	cfg, err := config.LoadConfigWithCLI(g.Config, overrides)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	return &Context{
		Config: cfg,
		Engine: diff.NewEngine(diff.WithMaxDepth(cfg.Diff.MaxDepth), diff.WithLogger(logger)),
		Logger: logger,
		Stdin:  stdin,
		Stdout: stdout,
	}, nil
}

// readInput loads the bytes behind path, or standard input for "-"
func (ctx *Context) readInput(path string) ([]byte, error) {
	if path != stdinPath {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewInputError(fmt.Sprintf("file '%s' not found", path), errors.ErrFileNotFound)
			}
			return nil, errors.NewInputError(fmt.Sprintf("failed to read file '%s'", path), err)
		}
		return data, nil
	}

	data, err := io.ReadAll(ctx.Stdin)
	if err != nil {
		return nil, errors.NewInputError("failed to read from stdin", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}
	return data, nil
}

// readDocument parses a JSON document, or YAML for .yaml and .yml paths
func (ctx *Context) readDocument(path string) (models.JSONValue, error) {
	if path != stdinPath {
		return parser.ParseFile(path)
	}
	data, err := ctx.readInput(path)
	if err != nil {
		return nil, err
	}
	return parser.ParseBytes(data)
}

// readDiff loads a diff document. The text "undefined" and JSON null both
// stand for no changes.
func (ctx *Context) readDiff(path string) (diff.Result, error) {
	data, err := ctx.readInput(path)
	if err != nil {
		return diff.Undefined(), err
	}
	if strings.TrimSpace(string(data)) == "undefined" {
		return diff.Undefined(), nil
	}

	var payload models.JSONValue
	if path != stdinPath && parser.IsYAMLPath(path) {
		payload, err = parser.ParseYAML(data)
	} else {
		payload, err = parser.ParseBytes(data)
	}
	if err != nil {
		return diff.Undefined(), err
	}

	if ctx.Config.Diff.ValidateDiffs {
		if err := schema.ValidateDiff(payload); err != nil {
			return diff.Undefined(), err
		}
	}
	if payload == nil {
		return diff.Undefined(), nil
	}
	return diff.Wrap(payload), nil
}

func (ctx *Context) println(text string) error {
	if _, err := fmt.Fprintln(ctx.Stdout, text); err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}

func (ctx *Context) printValue(v models.JSONValue) error {
	mode, err := formatter.ParseMode(ctx.Config.Output.Format)
	if err != nil {
		return err
	}
	text, err := formatter.NewFormatter(mode).FormatValue(v)
	if err != nil {
		return err
	}
	return ctx.println(text)
}

// DiffCmd prints the diff between two documents
type DiffCmd struct {
	Old    string `arg:"" help:"Old document (JSON or YAML, '-' for stdin)."`
	New    string `arg:"" help:"New document (JSON or YAML, '-' for stdin)."`
	Format string `help:"Output format: compact, pretty, human, stats or jsonpatch." short:"f"`
	Color  bool   `help:"Colorize human output."`
	Tests  bool   `help:"Precede jsonpatch replace and remove operations with test operations."`
}

func (c *DiffCmd) Run(ctx *Context) error {
	if c.Old == stdinPath && c.New == stdinPath {
		return errors.NewInputError("only one of OLD and NEW can be read from stdin", errors.ErrInvalidFilePath)
	}

	oldValue, err := ctx.readDocument(c.Old)
	if err != nil {
		return err
	}
	newValue, err := ctx.readDocument(c.New)
	if err != nil {
		return err
	}

	result, err := ctx.Engine.Diff(oldValue, newValue)
	if err != nil {
		return err
	}

	format := ctx.Config.Output.Format
	if c.Format != "" {
		format = c.Format
	}
	mode, err := formatter.ParseMode(format)
	if err != nil {
		return err
	}

	text, err := formatter.NewFormatter(mode).
		WithColor(c.Color || ctx.Config.Output.Color).
		WithTests(c.Tests || ctx.Config.Output.JSONPatchTests).
		WithBase(oldValue).
		Format(result)
	if err != nil {
		return err
	}
	return ctx.println(text)
}

// PatchCmd applies a diff to the old document
type PatchCmd struct {
	Old  string `arg:"" help:"Old document ('-' for stdin)."`
	Diff string `arg:"" help:"Diff document ('-' for stdin)."`
}

func (c *PatchCmd) Run(ctx *Context) error {
	return apply(ctx, c.Old, c.Diff, ctx.Engine.Patch)
}

// RollbackCmd reverts a diff from the new document
type RollbackCmd struct {
	New  string `arg:"" help:"New document ('-' for stdin)."`
	Diff string `arg:"" help:"Diff document ('-' for stdin)."`
}

func (c *RollbackCmd) Run(ctx *Context) error {
	return apply(ctx, c.New, c.Diff, ctx.Engine.Rollback)
}

func apply(ctx *Context, basePath, diffPath string, fn func(models.JSONValue, diff.Result) (models.JSONValue, error)) error {
	if basePath == stdinPath && diffPath == stdinPath {
		return errors.NewInputError("only one of the document and the diff can be read from stdin", errors.ErrInvalidFilePath)
	}

	base, err := ctx.readDocument(basePath)
	if err != nil {
		return err
	}
	d, err := ctx.readDiff(diffPath)
	if err != nil {
		return err
	}

	value, err := fn(base, d)
	if err != nil {
		return err
	}
	return ctx.printValue(value)
}

// VerifyCmd diffs two documents and checks that patching, rolling back and
// applying the equivalent JSON Patch all reproduce the inputs
type VerifyCmd struct {
	Old string `arg:"" help:"Old document."`
	New string `arg:"" help:"New document."`
}

func (c *VerifyCmd) Run(ctx *Context) error {
	oldValue, err := ctx.readDocument(c.Old)
	if err != nil {
		return err
	}
	newValue, err := ctx.readDocument(c.New)
	if err != nil {
		return err
	}

	result, err := ctx.Engine.Diff(oldValue, newValue)
	if err != nil {
		return err
	}

	patched, err := ctx.Engine.Patch(oldValue, result)
	if err != nil {
		return err
	}
	if err := expectEqual("patch", patched, newValue); err != nil {
		return err
	}

	rolledBack, err := ctx.Engine.Rollback(newValue, result)
	if err != nil {
		return err
	}
	if err := expectEqual("rollback", rolledBack, oldValue); err != nil {
		return err
	}

	ops, err := generator.NewGenerator().WithTests(true).WithBase(oldValue).JSONPatch(result)
	if err != nil {
		return err
	}
	applied, err := generator.Apply(oldValue, ops)
	if err != nil {
		return err
	}
	if err := expectEqual("json patch", applied, newValue); err != nil {
		return err
	}

	level.Debug(ctx.Logger).Log("msg", "verified", "operations", len(ops))
	return ctx.println(fmt.Sprintf("ok: %s", analyzer.AnalyzeFrom(result, oldValue)))
}

func expectEqual(step string, got, want models.JSONValue) error {
	equal, err := generator.Equal(got, want)
	if err != nil {
		return err
	}
	if !equal {
		return errors.NewMalformedDiffError(
			fmt.Sprintf("%s produced %s, expected %s", step, parser.MustSerialize(got), parser.MustSerialize(want)), "")
	}
	return nil
}

// ExportCmd converts a diff file into an RFC 6902 JSON Patch
type ExportCmd struct {
	Diff  string `arg:"" help:"Diff document ('-' for stdin)."`
	Tests bool   `help:"Precede replace and remove operations with test operations."`
	Base  string `help:"Old document the diff was computed from. Keys ending in a marker suffix are then read as Patch reads them."`
}

func (c *ExportCmd) Run(ctx *Context) error {
	d, err := ctx.readDiff(c.Diff)
	if err != nil {
		return err
	}

	g := generator.NewGenerator().WithTests(c.Tests || ctx.Config.Output.JSONPatchTests)
	if c.Base != "" {
		if c.Base == stdinPath && c.Diff == stdinPath {
			return errors.NewInputError("only one of the diff and the base can be read from stdin", errors.ErrInvalidFilePath)
		}
		base, err := ctx.readDocument(c.Base)
		if err != nil {
			return err
		}
		g.WithBase(base)
	}
	ops, err := g.JSONPatch(d)
	if err != nil {
		return err
	}
	text, err := g.Render(ops)
	if err != nil {
		return err
	}
	return ctx.println(text)
}

// ServeCmd runs the HTTP service until interrupted
type ServeCmd struct {
	Listen string `help:"Address to listen on." short:"l"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	addr := ctx.Config.Server.Listen
	if c.Listen != "" {
		addr = c.Listen
	}

	srv, err := server.New(ctx.Config, ctx.Engine, ctx.Logger)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(sigCtx, addr)
}
