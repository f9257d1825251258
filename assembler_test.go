package dashhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdutil/dashhttp/notify"
	"github.com/stdutil/dashhttp/session"
)

func newTestAssembler(opts ...AssemblerOption) (*Assembler, *captureTransport, *notify.Recorder) {
	tr := &captureTransport{}
	rec := notify.NewRecorder()
	opts = append([]AssemblerOption{WithNotifier(rec)}, opts...)
	return NewAssembler(tr, opts...), tr, rec
}

func widget(url string) *RequestConfig {
	return &RequestConfig{
		URL:      url,
		DataType: DataAjax,
		HttpType: HttpGet,
		BodyType: BodyNone,
	}
}

func TestCustomizeSkips(t *testing.T) {
	ctx := context.Background()
	a, tr, _ := newTestAssembler()
	global := &GlobalRequestConfig{OriginURL: "http://x/"}

	static := widget("a")
	static.DataType = DataStatic
	static.Params.Header = map[string]string{"A": "javascript:return 1 +"}
	resp, err := a.Customize(ctx, static, global)
	assert.NoError(t, err)
	assert.Nil(t, resp)

	bogus := widget("a")
	bogus.DataType = DataStatic
	bogus.BodyType = "yaml"
	bogus.ContentType = 4
	resp, err = a.Customize(ctx, bogus, global)
	assert.NoError(t, err)
	assert.Nil(t, resp)

	noURL := widget("")
	noURL.BodyType = "yaml"
	resp, err = a.Customize(ctx, noURL, global)
	assert.NoError(t, err)
	assert.Nil(t, resp)

	resp, err = a.Customize(ctx, widget(""), global)
	assert.NoError(t, err)
	assert.Nil(t, resp)

	resp, err = a.Customize(ctx, widget("a"), nil)
	assert.NoError(t, err)
	assert.Nil(t, resp)

	resp, err = a.Customize(ctx, nil, global)
	assert.NoError(t, err)
	assert.Nil(t, resp)

	assert.Empty(t, tr.calls)
}

func TestCustomizeDispatches(t *testing.T) {
	a, tr, _ := newTestAssembler()
	target := widget("a")
	target.HttpType = HttpDelete
	target.DataType = DataPond

	resp, err := a.Customize(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, "DELETE", tr.calls[0].Method)
	assert.Equal(t, "http://x/a", tr.calls[0].URL)
}

func TestCustomizeTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	a := NewAssembler(&captureTransport{err: boom}, WithNotifier(notify.Nop()))
	_, err := a.Customize(context.Background(), widget("http://x/a"), &GlobalRequestConfig{})
	assert.Same(t, boom, err)
}

func TestHeaderMerge(t *testing.T) {
	a, _, _ := newTestAssembler()
	target := widget("a")
	target.Params.Header = map[string]string{"A": "2", "B": "3"}
	global := &GlobalRequestConfig{
		OriginURL: "http://x/",
		Params:    RequestParams{Header: map[string]string{"A": "1"}},
	}

	req, err := a.Build(context.Background(), target, global)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "2", "B": "3"}, req.Headers)
	assert.Equal(t, map[string]string{"A": "1"}, global.Params.Header)
}

func TestScriptedValues(t *testing.T) {
	a, _, rec := newTestAssembler()
	target := widget("a")
	target.Params.Header = map[string]string{
		"Sum":    "javascript:return 1+1",
		"Plain":  "plain",
		"Broken": "javascript:return (",
	}
	target.Params.Params = map[string]string{"page": "javascript:3*2"}
	global := &GlobalRequestConfig{
		OriginURL: "http://x/",
		Params:    RequestParams{Params: map[string]string{"page": "1", "size": "10"}},
	}

	req, err := a.Build(context.Background(), target, global)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Sum": "2", "Plain": "plain"}, req.Headers)
	assert.Equal(t, map[string]any{"page": "6", "size": "10"}, req.Params.Pair)
	assert.Equal(t, []string{notify.MsgScriptInvalid}, rec.Texts())
	assert.Equal(t, "javascript:return 1+1", target.Params.Header["Sum"])
}

func TestJSONBody(t *testing.T) {
	a, _, _ := newTestAssembler()
	target := widget("a")
	target.HttpType = HttpPost
	target.BodyType = BodyJSON
	target.Params.Header = map[string]string{"content-type": "text/plain"}
	target.Params.Body.JSON = `{"n": 12345678901234567, "v": "javascript:return 1+1", "nested": {"s": "plain", "t": ["javascript:2*2"]}}`

	req, err := a.Build(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, map[string]string{"Content-Type": string(ContentTypeJSON)}, req.Headers)
	assert.JSONEq(t, `{"n": 12345678901234567, "v": 2, "nested": {"s": "plain", "t": [4]}}`, string(req.Body))
	assert.Contains(t, string(req.Body), "12345678901234567")

	target.Params.Body.JSON = "  "
	req, err = a.Build(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	assert.Nil(t, req.Body)
	assert.Equal(t, string(ContentTypeJSON), req.Header("Content-Type"))
}

func TestInvalidJSONBody(t *testing.T) {
	a, tr, rec := newTestAssembler()
	target := widget("a")
	target.BodyType = BodyJSON
	target.Params.Body.JSON = `{"a":`

	resp, err := a.Customize(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	assert.ErrorIs(t, err, ErrInvalidBody)
	assert.Nil(t, resp)
	assert.Empty(t, tr.calls)
	assert.Equal(t, []string{notify.MsgJSONInvalid}, rec.Texts())
}

func TestXMLBody(t *testing.T) {
	a, _, _ := newTestAssembler()
	target := widget("a")
	target.BodyType = BodyXML
	target.Params.Body.XML = "<a>1</a>"

	req, err := a.Build(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, "<a>1</a>", string(req.Body))
	assert.Equal(t, string(ContentTypeXML), req.Header("Content-Type"))

	target.Params.Body.XML = `javascript:return "<a>" + "2" + "</a>"`
	req, err = a.Build(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, "<a>2</a>", string(req.Body))
}

func TestFormDataSentinel(t *testing.T) {
	a, _, _ := newTestAssembler()
	target := widget("a")
	target.HttpType = HttpPost
	target.BodyType = BodyFormData

	req, err := a.Build(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	require.NotNil(t, req.Form)
	v, ok := req.Form.Get(DefaultFormKey)
	assert.True(t, ok)
	assert.Equal(t, DefaultFormValue, v)

	mt, params, err := mime.ParseMediaType(req.Header("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mt)
	mr := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	form, err := mr.ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultFormValue}, form.Value[DefaultFormKey])
}

func TestFormDataEntries(t *testing.T) {
	a, _, _ := newTestAssembler()
	target := widget("a")
	target.BodyType = BodyFormData
	target.Params.Body.FormData = map[string]string{"sum": "javascript:1+2", "name": "x"}

	req, err := a.Build(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "name", "sum"}, req.Form.Keys())
	v, _ := req.Form.Get("sum")
	assert.Equal(t, "3", v)
}

func TestURLEncodedBody(t *testing.T) {
	a, _, _ := newTestAssembler()
	target := widget("a")
	target.BodyType = BodyURLEncoded
	target.Params.Body.URLEncoded = map[string]string{"b": "javascript:1+2", "a": "x y"}
	target.Params.Body.FormData = map[string]string{"ignored": "1"}

	req, err := a.Build(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, "default=defaultData&a=x+y&b=3", string(req.Body))
	assert.Equal(t, string(ContentTypeFormURLEncoded), req.Header("Content-Type"))
}

func TestSQLOverride(t *testing.T) {
	sql := json.RawMessage(`{"sql":"select * from t"}`)
	for _, bt := range []BodyType{BodyNone, BodyJSON, BodyXML, BodyURLEncoded, BodyFormData} {
		a, _, _ := newTestAssembler()
		target := widget("a")
		target.HttpType = HttpPost
		target.ContentType = ContentSQL
		target.SQLContent = sql
		target.BodyType = bt
		target.Params.Body = RequestParamsBody{
			JSON:       `{"a":1}`,
			XML:        "<a/>",
			URLEncoded: map[string]string{"k": "v"},
			FormData:   map[string]string{"k": "v"},
		}

		req, err := a.Build(context.Background(), target, &GlobalRequestConfig{OriginURL: "http://x/"})
		require.NoError(t, err, bt)
		assert.Equal(t, string(sql), string(req.Body), bt)
		assert.Equal(t, string(ContentTypeJSON), req.Header("Content-Type"), bt)
		assert.Nil(t, req.Form, bt)
	}
}

func TestURLTemplate(t *testing.T) {
	a, _, _ := newTestAssembler()
	global := &GlobalRequestConfig{OriginURL: "  http://x/"}

	req, err := a.Build(context.Background(), widget("a/${1+1} "), global)
	require.NoError(t, err)
	assert.Equal(t, "http://x/a/2", req.URL)

	req, err = a.Build(context.Background(), widget("a"), &GlobalRequestConfig{OriginURL: "http://x/"})
	require.NoError(t, err)
	assert.Equal(t, "http://x/a", req.URL)
}

func TestURLTemplateFailure(t *testing.T) {
	a, tr, rec := newTestAssembler()
	resp, err := a.Customize(context.Background(), widget("a/${1+"), &GlobalRequestConfig{OriginURL: "http://x/"})
	assert.ErrorIs(t, err, ErrInvalidURL)
	assert.Nil(t, resp)
	assert.Empty(t, tr.calls)
	assert.Equal(t, []string{notify.MsgURLInvalid}, rec.Texts())
}

func TestInvalidConfig(t *testing.T) {
	a, tr, _ := newTestAssembler()
	global := &GlobalRequestConfig{OriginURL: "http://x/"}

	target := widget("a")
	target.BodyType = "yaml"
	_, err := a.Customize(context.Background(), target, global)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	target = widget("a")
	target.DataType = 9
	_, err = a.Customize(context.Background(), target, global)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	target = widget("a")
	target.ContentType = 4
	_, err = a.Customize(context.Background(), target, global)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	assert.Empty(t, tr.calls)
}

func testSession() *session.Session {
	return &session.Session{
		TenantInfo: &session.TenantInfo{TenantID: "7"},
		UserInfo:   &session.UserInfo{UserToken: "abc", TokenName: "Authorization"},
	}
}

func TestTokenAndTenant(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(testSession())
	global := &GlobalRequestConfig{OriginURL: "http://backend"}

	a, _, _ := newTestAssembler(
		WithSessionStore(store),
		WithOriginGuard(NewOriginGuard(GuardAny, "/dev-api", "/prod-api")))

	req, err := a.Build(ctx, widget("/dev-api/list"), global)
	require.NoError(t, err)
	assert.Equal(t, "7", req.Headers["tenant-id"])
	assert.Equal(t, "Bearer abc", req.Headers["Authorization"])

	req, err = a.Build(ctx, widget("/other/list"), global)
	require.NoError(t, err)
	assert.Empty(t, req.Headers)

	// both prefixes must appear in the url
	a, _, _ = newTestAssembler(
		WithSessionStore(store),
		WithOriginGuard(NewOriginGuard(GuardAll, "/dev-api", "/prod-api")))
	req, err = a.Build(ctx, widget("/dev-api/list"), global)
	require.NoError(t, err)
	assert.Empty(t, req.Headers)
	req, err = a.Build(ctx, widget("/dev-api/prod-api/list"), global)
	require.NoError(t, err)
	assert.Len(t, req.Headers, 2)
}

func TestTokenAndTenantPartialSession(t *testing.T) {
	ctx := context.Background()
	guard := NewOriginGuard(GuardAny, "/dev-api")
	global := &GlobalRequestConfig{OriginURL: "http://backend"}

	a, _, _ := newTestAssembler(
		WithOriginGuard(guard),
		WithSessionStore(session.NewMemoryStore(&session.Session{
			TenantInfo: &session.TenantInfo{TenantID: "7"},
		})))
	req, err := a.Build(ctx, widget("/dev-api/x"), global)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tenant-id": "7"}, req.Headers)

	a, _, _ = newTestAssembler(
		WithOriginGuard(guard),
		WithSessionStore(session.NewMemoryStore(&session.Session{
			UserInfo: &session.UserInfo{UserToken: "t"},
		})))
	req, err = a.Build(ctx, widget("/dev-api/x"), global)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{session.DefaultTokenName: "Bearer t"}, req.Headers)

	failing := session.StoreFunc(func(context.Context) (*session.Session, error) {
		return nil, errors.New("store down")
	})
	a, tr, _ := newTestAssembler(WithOriginGuard(guard), WithSessionStore(failing))
	_, err = a.Customize(ctx, widget("/dev-api/x"), global)
	require.NoError(t, err)
	require.Len(t, tr.calls, 1)
	assert.Empty(t, tr.calls[0].Headers)

	a, _, _ = newTestAssembler(WithOriginGuard(guard), WithSessionStore(session.NewMemoryStore(nil)))
	req, err = a.Build(ctx, widget("/dev-api/x"), global)
	require.NoError(t, err)
	assert.Empty(t, req.Headers)
}

func TestSessionOverridesConfiguredHeader(t *testing.T) {
	a, _, _ := newTestAssembler(
		WithSessionStore(session.NewMemoryStore(testSession())),
		WithOriginGuard(NewOriginGuard("", "/dev-api")))
	target := widget("/dev-api/x")
	target.Params.Header = map[string]string{"authorization": "stale", "Tenant-Id": "1"}

	req, err := a.Build(context.Background(), target, &GlobalRequestConfig{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tenant-id": "7", "Authorization": "Bearer abc"}, req.Headers)
	assert.False(t, strings.Contains(req.URL, " "))
}

func TestRequestOptions(t *testing.T) {
	a, tr, _ := newTestAssembler(WithRequestOptions(TimeOut(5), Compressed(true)))
	_, err := a.Customize(context.Background(), widget("http://x/a"), &GlobalRequestConfig{})
	require.NoError(t, err)
	require.Len(t, tr.calls, 1)
	assert.Equal(t, 5, tr.calls[0].TimeOut)
	assert.True(t, tr.calls[0].Compressed)
}
