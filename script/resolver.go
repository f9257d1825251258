// Package script resolves scripted configuration values.
//
// A configuration string that starts with Marker is a script reference. The
// text after the marker is an expression in a restricted, side-effect free
// language (github.com/expr-lang/expr) evaluated against a fixed environment
// supplied by the host. There is no general-purpose code execution.
package script

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/stdutil/dashhttp/notify"
)

// Marker prefixes a scripted value
const Marker = "javascript:"

// DefaultCacheSize is the number of compiled programs kept by a resolver
const DefaultCacheSize = 256

// Errors
var (
	ErrEvaluate = errors.New("script evaluation failed")
	ErrTemplate = errors.New("invalid template")
)

type (
	// Resolver evaluates scripted values. It is safe for concurrent use.
	Resolver struct {
		env       map[string]any
		cacheSize int
		cache     *lru.Cache[string, *vm.Program]
		logger    *zap.Logger
		notifier  notify.Notifier
	}

	// Option configures a Resolver
	Option func(r *Resolver)
)

// WithEnv sets the values visible to expressions. The map is copied.
func WithEnv(env map[string]any) Option {
	return func(r *Resolver) {
		r.env = make(map[string]any, len(env))
		for k, v := range env {
			r.env[k] = v
		}
	}
}

// WithLogger sets the logger used to report evaluation failures
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithNotifier sets where user-facing parse errors go
func WithNotifier(n notify.Notifier) Option {
	return func(r *Resolver) {
		r.notifier = n
	}
}

// WithCacheSize sets the compiled program cache size. Values below 1 use the default.
func WithCacheSize(size int) Option {
	return func(r *Resolver) {
		r.cacheSize = size
	}
}

// New creates a resolver
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.With(zap.String("component", "script"))
	if r.notifier == nil {
		r.notifier = notify.Nop()
	}
	if r.cacheSize < 1 {
		r.cacheSize = DefaultCacheSize
	}
	// lru.New only fails on a non-positive size
	r.cache, _ = lru.New[string, *vm.Program](r.cacheSize)
	return r
}

// Notifying returns a copy of r reporting to n. The copy shares the
// compiled program cache.
func (r *Resolver) Notifying(n notify.Notifier) *Resolver {
	c := *r
	c.notifier = n
	if c.notifier == nil {
		c.notifier = notify.Nop()
	}
	return &c
}

// IsScript reports whether s is a script reference
func IsScript(s string) bool {
	return strings.HasPrefix(s, Marker)
}

// Eval compiles and runs a single expression. Editor snippets written as
// statements ("return 1+1;") are accepted: a leading return keyword and a
// trailing semicolon are dropped.
func (r *Resolver) Eval(code string) (any, error) {
	src := normalize(code)
	if src == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrEvaluate)
	}
	prog, err := r.program(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluate, err)
	}
	out, err := expr.Run(prog, r.env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluate, err)
	}
	return out, nil
}

func (r *Resolver) program(src string) (*vm.Program, error) {
	if p, ok := r.cache.Get(src); ok {
		return p, nil
	}
	var opts []expr.Option
	if r.env != nil {
		opts = append(opts, expr.Env(r.env))
	}
	p, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, err
	}
	r.cache.Add(src, p)
	return p, nil
}

// ResolveString returns s unchanged unless it is a script reference, in which
// case the evaluated result is returned. A failed evaluation is logged, the
// user is notified and the result is nil.
func (r *Resolver) ResolveString(s string) any {
	if !IsScript(s) {
		return s
	}
	out, err := r.Eval(strings.TrimPrefix(s, Marker))
	if err != nil {
		r.logger.Warn("scripted value failed",
			zap.String("source", s),
			zap.Error(err))
		r.notifier.Error(notify.MsgScriptInvalid)
		return nil
	}
	return out
}

// Resolve walks v and resolves every string leaf. Maps and slices are copied,
// v itself is never modified. Other values pass through.
func (r *Resolver) Resolve(v any) any {
	switch t := v.(type) {
	case string:
		return r.ResolveString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, sv := range t {
			out[k] = r.Resolve(sv)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, sv := range t {
			out[k] = r.ResolveString(sv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, sv := range t {
			out[i] = r.Resolve(sv)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, sv := range t {
			out[i] = r.ResolveString(sv)
		}
		return out
	default:
		return v
	}
}

// ResolveStrings resolves a flat string map and formats the results back to
// text. Entries that resolve to nil are dropped.
func (r *Resolver) ResolveStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		rv := r.ResolveString(v)
		if rv == nil {
			continue
		}
		out[k] = Format(rv)
	}
	return out
}

func normalize(code string) string {
	src := strings.TrimSpace(code)
	if rest, ok := strings.CutPrefix(src, "return"); ok {
		if rest == "" || strings.ContainsAny(rest[:1], " \t\n(") {
			src = strings.TrimSpace(rest)
		}
	}
	for strings.HasSuffix(src, ";") {
		src = strings.TrimSpace(strings.TrimSuffix(src, ";"))
	}
	return src
}
