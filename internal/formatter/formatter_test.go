package formatter

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsondelta/internal/diff"
	"github.com/mcncl/jsondelta/internal/errors"
	"github.com/mcncl/jsondelta/internal/parser"
)

func TestParseMode(t *testing.T) {
	for _, m := range Modes {
		parsed, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	parsed, err := ParseMode("HUMAN")
	require.NoError(t, err)
	assert.Equal(t, ModeHuman, parsed)

	_, err = ParseMode("xml")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeConfig, errors.TypeOf(err))
}

func TestFormat(t *testing.T) {
	d, err := diff.DiffText(`{"foo": 1, "bar": 2}`, `{"foo": 2, "baz": 3}`)
	require.NoError(t, err)

	tests := []struct {
		mode     Mode
		expected string
	}{
		{ModeCompact, `{"bar__deleted":2,"baz__added":3,"foo":{"__new":2,"__old":1}}`},
		{ModePretty, "{\n  \"bar__deleted\": 2,\n  \"baz__added\": 3,\n  \"foo\": {\n    \"__new\": 2,\n    \"__old\": 1\n  }\n}"},
		{ModeHuman, "- bar: 2\n+ baz: 3\n~ foo: 1 => 2"},
		{ModeStats, "1 addition. 1 deletion. 1 modification."},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			out, err := NewFormatter(tt.mode).Format(d)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestFormat_JSONPatch(t *testing.T) {
	d, err := diff.DiffText(`{"a": 1}`, `{"a": 2}`)
	require.NoError(t, err)

	out, err := NewFormatter(ModeJSONPatch).Format(d)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"op": "replace", "path": "/a", "value": 2}]`, out)

	out, err = NewFormatter(ModeJSONPatch).WithTests(true).Format(d)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"op": "test", "path": "/a", "value": 1},
		{"op": "replace", "path": "/a", "value": 2}
	]`, out)

	_, err = NewFormatter(ModeJSONPatch).Format(diff.Wrap(`not a diff`))
	assert.True(t, stderrors.Is(err, errors.ErrMalformedDiff))
}

func TestFormat_Undefined(t *testing.T) {
	tests := []struct {
		mode     Mode
		expected string
	}{
		{ModeCompact, "undefined"},
		{ModePretty, "undefined"},
		{ModeHuman, NoChanges},
		{ModeStats, "0 additions. 0 deletions. 0 modifications."},
		{ModeJSONPatch, "[]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			out, err := NewFormatter(tt.mode).Format(diff.Undefined())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestFormat_Color(t *testing.T) {
	d, err := diff.DiffText(`{"a": 1}`, `{}`)
	require.NoError(t, err)

	out, err := NewFormatter(ModeHuman).WithColor(true).Format(d)
	require.NoError(t, err)
	assert.Equal(t, "\x1b[31m- a: 1\x1b[0m", out)
}

func TestFormat_WithBase(t *testing.T) {
	oldValue, err := parser.ParseString(`{"x__deleted": 1}`)
	require.NoError(t, err)
	newValue, err := parser.ParseString(`{"x__deleted": 2}`)
	require.NoError(t, err)
	d, err := diff.Diff(oldValue, newValue)
	require.NoError(t, err)

	tests := []struct {
		mode     Mode
		color    bool
		expected string
	}{
		{ModeHuman, false, "~ x__deleted: 1 => 2"},
		{ModeHuman, true, "\x1b[34m~ x__deleted: 1 => 2\x1b[0m"},
		{ModeStats, false, "0 additions. 0 deletions. 1 modification."},
		{ModeJSONPatch, false, `[{"op": "replace", "path": "/x__deleted", "value": 2}]`},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s color=%v", tt.mode, tt.color), func(t *testing.T) {
			out, err := NewFormatter(tt.mode).WithColor(tt.color).WithBase(oldValue).Format(d)
			require.NoError(t, err)
			if tt.mode == ModeJSONPatch {
				assert.JSONEq(t, tt.expected, out)
				return
			}
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestFormat_UnknownMode(t *testing.T) {
	_, err := NewFormatter(Mode("xml")).Format(diff.Undefined())
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	v, err := parser.ParseString(`{"b": [1, 2], "a": "<x>"}`)
	require.NoError(t, err)

	out, err := NewFormatter(ModeCompact).FormatValue(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":[1,2]}`, out)

	out, err = NewFormatter(ModeHuman).FormatValue(v)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"<x>\",\n  \"b\": [\n    1,\n    2\n  ]\n}", out)
}
