package dashhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	nv "github.com/stdutil/name-value"
	"go.uber.org/zap"

	"github.com/stdutil/dashhttp/notify"
	"github.com/stdutil/dashhttp/script"
	"github.com/stdutil/dashhttp/session"
)

// Form entry present in every form body
const (
	DefaultFormKey   = "default"
	DefaultFormValue = "defaultData"
)

type (
	// Assembler turns a widget request configuration into one outbound call.
	// It holds no state between calls and is safe for concurrent use.
	Assembler struct {
		transport Transport
		logger    *zap.Logger
		notifier  notify.Notifier
		resolver  *script.Resolver
		sessions  session.Store
		guard     OriginGuard
		defaults  RequestParam
	}

	// AssemblerOption configures an Assembler
	AssemblerOption func(a *Assembler)
)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// WithNotifier sets where user-facing errors go
func WithNotifier(n notify.Notifier) AssemblerOption {
	return func(a *Assembler) {
		a.notifier = n
	}
}

// WithResolver sets the scripted-value resolver. Without one, a resolver
// sharing the assembler's logger and notifier is created.
func WithResolver(r *script.Resolver) AssemblerOption {
	return func(a *Assembler) {
		a.resolver = r
	}
}

// WithSessionStore sets where the session is read from. Without one no
// session headers are added.
func WithSessionStore(s session.Store) AssemblerOption {
	return func(a *Assembler) {
		a.sessions = s
	}
}

// WithOriginGuard sets which URLs receive session headers
func WithOriginGuard(g OriginGuard) AssemblerOption {
	return func(a *Assembler) {
		a.guard = g
	}
}

// WithRequestOptions sets the timeout and compression of every built
// request. Headers and content type options are ignored.
func WithRequestOptions(opts ...RequestOption) AssemblerOption {
	return func(a *Assembler) {
		_ = applyOptions(&a.defaults, opts)
	}
}

// NewAssembler creates an assembler calling through transport. A nil
// transport uses NewNetTransport.
func NewAssembler(transport Transport, opts ...AssemblerOption) *Assembler {
	a := &Assembler{transport: transport}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o(a)
	}
	a.logger = loggerOrNop(a.logger)
	if a.notifier == nil {
		a.notifier = notify.NewLogger(a.logger)
	}
	if a.resolver == nil {
		a.resolver = script.New(
			script.WithLogger(a.logger),
			script.WithNotifier(a.notifier))
	}
	if a.transport == nil {
		a.transport = NewNetTransport(nil, a.logger)
	}
	a.logger = a.logger.With(zap.String("component", "assembler"))
	return a
}

// Customize assembles the call described by target and global and issues it.
// It returns (nil, nil) when no call is due. Transport errors are returned
// unchanged.
func (a *Assembler) Customize(ctx context.Context, target *RequestConfig, global *GlobalRequestConfig) (*Response, error) {
	req, err := a.Build(ctx, target, global)
	if err != nil || req == nil {
		return nil, err
	}
	return a.transport.Do(ctx, req)
}

// Build assembles the call described by target and global without issuing
// it. It returns (nil, nil) when no call is due: a missing configuration,
// static data or an empty URL.
func (a *Assembler) Build(ctx context.Context, target *RequestConfig, global *GlobalRequestConfig) (*Request, error) {
	if target == nil || global == nil {
		return nil, nil
	}
	if target.DataType == DataStatic || target.URL == "" {
		return nil, nil
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	rawURL := strings.TrimSpace(global.OriginURL + target.URL)

	headers := a.resolver.ResolveStrings(
		mergeParams(global.Params.Header, target.Params.Header))
	a.appendTokenAndTenant(ctx, headers, rawURL)

	params := a.resolver.ResolveStrings(
		mergeParams(global.Params.Params, target.Params.Params))
	req := &Request{
		Method:     target.HttpType.Method(),
		Headers:    headers,
		Params:     nv.NameValues{Pair: make(map[string]any, len(params))},
		TimeOut:    a.defaults.TimeOut,
		Compressed: a.defaults.Compressed,
	}
	for k, v := range params {
		req.Params.Pair[k] = v
	}

	if err := a.buildBody(req, target); err != nil {
		return nil, err
	}
	if target.ContentType == ContentSQL {
		setHeader(req.Headers, "Content-Type", string(ContentTypeJSON))
		req.Body = []byte(target.SQLContent)
		req.Form = nil
	}

	u, err := a.resolver.Template(rawURL)
	if err != nil {
		a.logger.Warn("request url template failed",
			zap.String("url", rawURL),
			zap.Error(err))
		a.notifier.Error(notify.MsgURLInvalid)
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	req.URL = u
	return req, nil
}

// appendTokenAndTenant adds the tenant and auth headers of the session when
// rawURL belongs to the own backend
func (a *Assembler) appendTokenAndTenant(ctx context.Context, headers map[string]string, rawURL string) {
	if a.sessions == nil || !a.guard.Allows(rawURL) {
		return
	}
	s, err := a.sessions.Load(ctx)
	if err != nil {
		a.logger.Warn("session unavailable", zap.Error(err))
		return
	}
	if s == nil {
		return
	}
	if tid := s.TenantID(); tid != "" {
		setHeader(headers, "tenant-id", tid)
	}
	if name, value, ok := s.AuthHeader(); ok {
		setHeader(headers, name, value)
	}
}

func (a *Assembler) buildBody(req *Request, target *RequestConfig) error {
	body := target.Params.Body
	switch target.BodyType {
	case "", BodyNone:
		return nil

	case BodyJSON:
		setHeader(req.Headers, "Content-Type", string(ContentTypeJSON))
		if strings.TrimSpace(body.JSON) == "" {
			return nil
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(body.JSON)))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			a.logger.Warn("json body is invalid", zap.Error(err))
			a.notifier.Error(notify.MsgJSONInvalid)
			return fmt.Errorf("%w: %w", ErrInvalidBody, err)
		}
		b, err := json.Marshal(a.resolver.Resolve(v))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBody, err)
		}
		req.Body = b
		return nil

	case BodyXML:
		setHeader(req.Headers, "Content-Type", string(ContentTypeXML))
		req.Body = []byte(script.Format(a.resolver.ResolveString(body.XML)))
		return nil

	case BodyURLEncoded:
		req.Form = a.buildForm(body.URLEncoded)
		req.Body = req.Form.URLEncoded()
		setHeader(req.Headers, "Content-Type", string(ContentTypeFormURLEncoded))
		return nil

	case BodyFormData:
		req.Form = a.buildForm(body.FormData)
		b, ct, err := req.Form.Multipart()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidBody, err)
		}
		req.Body = b
		setHeader(req.Headers, "Content-Type", ct)
		return nil

	default:
		return fmt.Errorf("%w: unknown body type %q", ErrInvalidConfig, target.BodyType)
	}
}

// buildForm seeds the form with the default entry and sets the resolved
// entries in key order
func (a *Assembler) buildForm(entries map[string]string) *Form {
	f := NewForm()
	f.Set(DefaultFormKey, DefaultFormValue)
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		f.Set(k, script.Format(a.resolver.ResolveString(entries[k])))
	}
	return f
}
