package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsondelta/internal/config"
	"github.com/mcncl/jsondelta/internal/diff"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.NewConfig()
	for _, m := range mutate {
		m(cfg)
	}
	s, err := New(cfg, diff.NewEngine(), log.NewNopLogger())
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestServer_Diff(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		undefined bool
		diff      string
	}{
		{"scalar", `{"old":1,"new":2}`, false, `{"__old":1,"__new":2}`},
		{"equal", `{"old":{"a":[1,2]},"new":{"a":[1,2]}}`, true, `null`},
		{"object", `{"old":{"a":1,"b":2},"new":{"a":1,"c":3}}`, false, `{"b__deleted":2,"c__added":3}`},
		{"null root", `{"old":null,"new":true}`, false, `{"__old":null,"__new":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, "/v1/diff", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var want interface{}
			require.NoError(t, json.Unmarshal([]byte(tt.diff), &want))
			assert.Equal(t, tt.undefined, body["undefined"])
			assert.Equal(t, want, body["diff"])
		})
	}
}

func TestServer_PatchAndRollback(t *testing.T) {
	s := newTestServer(t)
	d := `[["~",1,{"__old":2,"__new":5}],["-",2,3]]`

	rec, body := do(t, s, http.MethodPost, "/v1/patch", `{"old":[1,2,3],"diff":`+d+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []interface{}{1.0, 5.0}, body["value"])

	rec, body = do(t, s, http.MethodPost, "/v1/rollback", `{"new":[1,5],"diff":`+d+`}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, body["value"])
}

func TestServer_PatchUndefined(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodPost, "/v1/patch", `{"old":{"keep":"me"},"diff":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]interface{}{"keep": "me"}, body["value"])
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		kind   string
		ptr    string
	}{
		{"invalid json", "/v1/diff", `{"old":`, http.StatusBadRequest, "parsing", ""},
		{"not an object", "/v1/diff", `[1,2]`, http.StatusBadRequest, "input", ""},
		{"missing member", "/v1/diff", `{"old":1}`, http.StatusBadRequest, "input", ""},
		{"schema violation", "/v1/patch", `{"old":[1],"diff":[["*",0,1]]}`, http.StatusUnprocessableEntity, "malformed_diff", ""},
		{"shape mismatch", "/v1/patch", `{"old":{"a":1},"diff":{"a":[["+",0,1]]}}`, http.StatusUnprocessableEntity, "malformed_diff", "/a"},
		{"rollback malformed", "/v1/rollback", `{"new":{},"diff":{"gone__added":1}}`, http.StatusUnprocessableEntity, "malformed_diff", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, body["error"])
			assert.NotEmpty(t, body["message"])
			if tt.ptr != "" {
				assert.Equal(t, tt.ptr, body["path"])
			}
		})
	}
}

func TestServer_BodyLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.MaxBodyBytes = 16 })

	rec, body := do(t, s, http.MethodPost, "/v1/diff", `{"old":"`+strings.Repeat("x", 64)+`","new":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "parsing", body["error"])
}

func TestServer_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestServer_RequestIDsDiffer(t *testing.T) {
	s := newTestServer(t)

	first, _ := do(t, s, http.MethodGet, "/healthz", "")
	second, _ := do(t, s, http.MethodGet, "/healthz", "")
	assert.NotEqual(t, first.Header().Get(RequestIDHeader), second.Header().Get(RequestIDHeader))
}

func TestServer_DiffCache(t *testing.T) {
	s := newTestServer(t)
	require.NotNil(t, s.cache)

	do(t, s, http.MethodPost, "/v1/diff", `{"old":{"a":1,"b":2},"new":{"a":2}}`)
	do(t, s, http.MethodPost, "/v1/diff", `{"new":{"a":2},"old":{"b":2,"a":1}}`)
	assert.Equal(t, 1, s.cache.Len(), "member order does not change the cache key")

	rec, body := do(t, s, http.MethodPost, "/v1/diff", `{"old":{"a":1,"b":2},"new":{"a":2}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{
		"a":          map[string]interface{}{"__old": 1.0, "__new": 2.0},
		"b__deleted": 2.0,
	}, body["diff"])
}

func TestServer_DiffCacheCollision(t *testing.T) {
	s := newTestServer(t)

	request, err := canonicalize(json.Number("1"), json.Number("2"))
	require.NoError(t, err)
	stale, err := diff.DiffText(`"x"`, `"y"`)
	require.NoError(t, err)
	// another request stored under the same hash
	s.cache.Add(request.key(), cacheEntry{
		request: canonicalPair{oldText: `"x"`, newText: `"y"`},
		result:  stale,
	})

	rec, body := do(t, s, http.MethodPost, "/v1/diff", `{"old":1,"new":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"__old": 1.0, "__new": 2.0}, body["diff"])

	cached, ok := s.cache.Get(request.key())
	require.True(t, ok)
	assert.Equal(t, request, cached.request)
}

func TestServer_CacheDisabled(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.CacheSize = 0 })
	assert.Nil(t, s.cache)

	rec, _ := do(t, s, http.MethodPost, "/v1/diff", `{"old":1,"new":1}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Logging(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(config.NewConfig(), diff.NewEngine(), log.NewLogfmtLogger(&buf))
	require.NoError(t, err)

	rec, _ := do(t, s, http.MethodPost, "/v1/diff", `{"old":1,"new":2}`)
	out := buf.String()
	assert.Contains(t, out, "request_id="+rec.Header().Get(RequestIDHeader))
	assert.Contains(t, out, "route=Diff")
	assert.Contains(t, out, "status=200")
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/v1/diff", `{"old":[1],"new":[2]}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	text, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "jsondelta_http_request_duration_seconds")
	assert.Contains(t, string(text), "jsondelta_diff_cache_lookups_total")
	assert.Contains(t, string(text), "jsondelta_diff_change_depth")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
