package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-kit/kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Logfmt(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "logfmt", "info")
	require.NoError(t, err)

	level.Debug(logger).Log("msg", "hidden")
	level.Info(logger).Log("msg", "shown", "n", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `msg=shown`)
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "ts=")
	assert.Contains(t, out, "caller=")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "json", "debug")
	require.NoError(t, err)

	level.Debug(logger).Log("msg", "details")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "details", line["msg"])
	assert.Equal(t, "debug", line["level"])
}

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "", "error")
	require.NoError(t, err)

	level.Warn(logger).Log("msg", "warned")
	level.Error(logger).Log("msg", "failed")

	assert.NotContains(t, buf.String(), "warned")
	assert.Contains(t, buf.String(), "failed")
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "xml", "info")
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "logfmt", "loud")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop().Log("msg", "nothing"))
}
