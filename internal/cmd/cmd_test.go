package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdutil/dashhttp"
	"github.com/stdutil/dashhttp/internal/app"
	"github.com/stdutil/dashhttp/session"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func setup(t *testing.T) (dir, configPath string, up *httptest.Server) {
	t.Helper()
	up = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
			"token":  r.Header.Get("token"),
			"tenant": r.Header.Get("tenant-id"),
		})
	}))
	t.Cleanup(up.Close)

	dir = t.TempDir()
	configPath = writeFile(t, dir, "dashreq.yaml", `
origin:
  dev_path: /dev-api
session:
  backend: file
  dir: `+dir+`
log:
  file: `+filepath.Join(dir, "dashreq.log")+`
`)
	return dir, configPath, up
}

func widgetJSON(t *testing.T, url string) string {
	t.Helper()
	b, err := json.Marshal(dashhttp.RequestConfig{
		URL:      url,
		DataType: dashhttp.DataAjax,
		HttpType: dashhttp.HttpPost,
		BodyType: dashhttp.BodyJSON,
		Params: dashhttp.RequestParams{
			Body: dashhttp.RequestParamsBody{JSON: `{"n":"javascript:return 1+1"}`},
		},
	})
	require.NoError(t, err)
	return string(b)
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, dashhttp.REQUEST_VERSION)
}

func TestRequestRequiresWidget(t *testing.T) {
	_, _, err := run(t, "", "request")
	assert.ErrorContains(t, err, "widget")
}

func TestRequestSend(t *testing.T) {
	dir, cfg, up := setup(t)
	require.NoError(t, session.NewFileStore(dir, "").Save(t.Context(), &session.Session{
		UserInfo:   &session.UserInfo{UserToken: "abc"},
		TenantInfo: &session.TenantInfo{TenantID: "7"},
	}))
	widget := writeFile(t, dir, "widget.json", widgetJSON(t, "/dev-api/data"))
	global := writeFile(t, dir, "global.json", `{"requestOriginUrl":"`+up.URL+`"}`)

	out, _, err := run(t, "", "request", "-c", cfg, "--widget", widget, "--global", global)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "POST", got["method"])
	assert.Equal(t, "/dev-api/data", got["path"])
	assert.Equal(t, "Bearer abc", got["token"])
	assert.Equal(t, "7", got["tenant"])
}

func TestRequestDryRunStdin(t *testing.T) {
	_, cfg, _ := setup(t)

	out, _, err := run(t, widgetJSON(t, "http://x/dev-api/data"),
		"request", "-c", cfg, "--widget", "-", "--dry-run")
	require.NoError(t, err)

	var built app.BuiltRequest
	require.NoError(t, json.Unmarshal([]byte(out), &built))
	assert.Equal(t, "POST", built.Method)
	assert.Equal(t, "http://x/dev-api/data", built.URL)
	assert.JSONEq(t, `{"n":2}`, built.Body)
	assert.Empty(t, built.Headers["token"], "no session file yet")
}

func TestRequestNotDue(t *testing.T) {
	dir, cfg, _ := setup(t)
	widget := writeFile(t, dir, "widget.json", `{"requestUrl":"","requestDataType":1}`)

	_, errOut, err := run(t, "", "request", "-c", cfg, "--widget", widget)
	require.NoError(t, err)
	assert.Contains(t, errOut, "no request is due")
}

func TestRequestInvalidBody(t *testing.T) {
	dir, cfg, _ := setup(t)
	widget := writeFile(t, dir, "widget.json",
		`{"requestUrl":"http://x/a","requestDataType":1,"requestHttpType":"post",`+
			`"requestParamsBodyType":"json","requestParams":{"Body":{"json":"{"}}}`)

	_, errOut, err := run(t, "", "request", "-c", cfg, "--widget", widget, "--dry-run")
	assert.ErrorIs(t, err, dashhttp.ErrInvalidBody)
	assert.Contains(t, errOut, "JSON body is invalid")
}
