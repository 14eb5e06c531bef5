package main

import (
	"fmt"
	"time"

	"github.com/mcncl/jsondelta/internal/analyzer"
	"github.com/mcncl/jsondelta/internal/diff"
	"github.com/mcncl/jsondelta/internal/store"
)

// HistoryCmd groups the version history commands
type HistoryCmd struct {
	Commit   HistoryCommitCmd   `cmd:"" help:"Record a document as the next version."`
	Checkout HistoryCheckoutCmd `cmd:"" help:"Print a document as it was at a version."`
	Log      HistoryLogCmd      `cmd:"" help:"List the versions of a document."`
}

// StoreFlag selects the history database
type StoreFlag struct {
	Store string `help:"Directory of the history database." type:"path"`
}

func (f StoreFlag) open(ctx *Context) (*store.Store, error) {
	path := ctx.Config.Store.Path
	if f.Store != "" {
		path = f.Store
	}
	return store.Open(path, ctx.Engine, ctx.Logger)
}

// HistoryCommitCmd stores a new version
type HistoryCommitCmd struct {
	StoreFlag

	Name string `arg:"" help:"Document name."`
	File string `arg:"" help:"Document to commit ('-' for stdin)."`
}

func (c *HistoryCommitCmd) Run(ctx *Context) error {
	doc, err := ctx.readDocument(c.File)
	if err != nil {
		return err
	}

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	version, change, err := s.Commit(c.Name, doc)
	if err != nil {
		return err
	}
	if version > 0 && change.IsUndefined() {
		return ctx.println(fmt.Sprintf("%s unchanged at version %d", c.Name, version))
	}
	return ctx.println(fmt.Sprintf("%s version %d: %s", c.Name, version, describe(version, change)))
}

// HistoryCheckoutCmd prints an older version
type HistoryCheckoutCmd struct {
	StoreFlag

	Name    string `arg:"" help:"Document name."`
	Version uint64 `arg:"" help:"Version to rebuild."`
}

func (c *HistoryCheckoutCmd) Run(ctx *Context) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	doc, err := s.Checkout(c.Name, c.Version)
	if err != nil {
		return err
	}
	return ctx.printValue(doc)
}

// HistoryLogCmd lists versions, oldest first
type HistoryLogCmd struct {
	StoreFlag

	Name string `arg:"" help:"Document name."`
}

func (c *HistoryLogCmd) Run(ctx *Context) error {
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.Log(c.Name)
	if err != nil {
		return err
	}
	for _, e := range entries {
		line := fmt.Sprintf("%d\t%s\t%s\t%s", e.Version, e.Committed.Format(time.RFC3339), e.ID, describe(e.Version, e.Diff))
		if err := ctx.println(line); err != nil {
			return err
		}
	}
	return nil
}

func describe(version uint64, change diff.Result) string {
	if version == 0 {
		return "initial snapshot"
	}
	return analyzer.Analyze(change).String()
}
