package dashhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strings"

	nv "github.com/stdutil/name-value"
	"go.uber.org/zap"
)

type (
	// VerbFunc issues a call to url. GET and DELETE take payload as query
	// params, POST, PUT and PATCH take it as the body.
	VerbFunc func(ctx context.Context, url string, payload any, opts ...RequestOption) (*Response, error)

	// Client forwards verb calls to a shared transport
	Client struct {
		transport Transport
		logger    *zap.Logger
		defaults  RequestParam
	}
)

// NewClient creates a client. A nil transport uses NewNetTransport. opts
// set defaults applied before the options of each call.
func NewClient(transport Transport, logger *zap.Logger, opts ...RequestOption) (*Client, error) {
	logger = loggerOrNop(logger)
	if transport == nil {
		transport = NewNetTransport(nil, logger)
	}
	c := &Client{
		transport: transport,
		logger:    logger.With(zap.String("component", "client")),
	}
	if err := applyOptions(&c.defaults, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Transport returns the transport calls are forwarded to
func (c *Client) Transport() Transport {
	return c.transport
}

// Get wraps a GET with params as the query string
func (c *Client) Get(ctx context.Context, url string, params any, opts ...RequestOption) (*Response, error) {
	return c.query(ctx, "GET", url, params, opts)
}

// Del wraps a DELETE with params as the query string
func (c *Client) Del(ctx context.Context, url string, params any, opts ...RequestOption) (*Response, error) {
	return c.query(ctx, "DELETE", url, params, opts)
}

// Post wraps a POST. Content-Type defaults to JSON.
func (c *Client) Post(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, "POST", url, data, opts)
}

// Put wraps a PUT. Content-Type defaults to JSON.
func (c *Client) Put(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, "PUT", url, data, opts)
}

// Patch wraps a PATCH. Content-Type defaults to JSON.
func (c *Client) Patch(ctx context.Context, url string, data any, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, "PATCH", url, data, opts)
}

// Verb returns the call for h, GET when h is unknown or empty
func (c *Client) Verb(h HttpType) VerbFunc {
	switch h.normalize() {
	case HttpPost:
		return c.Post
	case HttpPut:
		return c.Put
	case HttpPatch:
		return c.Patch
	case HttpDelete:
		return c.Del
	default:
		return c.Get
	}
}

func (c *Client) params(opts []RequestOption) (RequestParam, error) {
	rp := RequestParam{
		TimeOut:     c.defaults.TimeOut,
		Compressed:  c.defaults.Compressed,
		ContentType: c.defaults.ContentType,
		Headers:     maps.Clone(c.defaults.Headers),
	}
	if rp.Headers == nil {
		rp.Headers = make(map[string]string)
	}
	err := applyOptions(&rp, opts)
	return rp, err
}

func (c *Client) query(ctx context.Context, method, url string, params any, opts []RequestOption) (*Response, error) {
	rp, err := c.params(opts)
	if err != nil {
		return nil, err
	}
	qs, err := toNameValues(params)
	if err != nil {
		return nil, err
	}
	return c.transport.Do(ctx, &Request{
		Method:     method,
		URL:        url,
		Params:     qs,
		Headers:    rp.Headers,
		TimeOut:    rp.TimeOut,
		Compressed: rp.Compressed,
	})
}

func (c *Client) send(ctx context.Context, method, url string, data any, opts []RequestOption) (*Response, error) {
	rp, err := c.params(opts)
	if err != nil {
		return nil, err
	}
	req := &Request{
		Method:     method,
		URL:        url,
		Headers:    rp.Headers,
		TimeOut:    rp.TimeOut,
		Compressed: rp.Compressed,
	}
	contentType := rp.ContentType
	if contentType == "" {
		contentType = ContentTypeJSON
	}
	switch t := data.(type) {
	case nil:
	case []byte:
		req.Body = t
	case string:
		req.Body = []byte(t)
	case json.RawMessage:
		req.Body = t
	case *Form:
		req.Form = t
		if strings.HasPrefix(string(rp.ContentType), "multipart/form-data") {
			body, mct, err := t.Multipart()
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidBody, err)
			}
			req.Body = body
			contentType = ContentType(mct)
		} else {
			req.Body = t.URLEncoded()
			if rp.ContentType == "" {
				contentType = ContentTypeFormURLEncoded
			}
		}
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBody, err)
		}
		req.Body = b
	}
	setHeader(req.Headers, "Content-Type", string(contentType))
	return c.transport.Do(ctx, req)
}

// toNameValues converts the accepted param shapes to name values
func toNameValues(params any) (nv.NameValues, error) {
	ret := nv.NameValues{
		Pair: make(map[string]any),
	}
	switch t := params.(type) {
	case nil:
	case nv.NameValues:
		maps.Copy(ret.Pair, t.Pair)
	case *nv.NameValues:
		if t != nil {
			maps.Copy(ret.Pair, t.Pair)
		}
	case map[string]any:
		maps.Copy(ret.Pair, t)
	case map[string]string:
		for k, v := range t {
			ret.Pair[k] = v
		}
	case url.Values:
		for k, v := range t {
			ret.Pair[k] = strings.Join(v[:], ",")
		}
	default:
		return ret, fmt.Errorf("%w: unsupported type %T", ErrInvalidParams, params)
	}
	return ret, nil
}

// setHeader sets key replacing any header that differs only in case
func setHeader(h map[string]string, key, value string) {
	for k := range h {
		if strings.EqualFold(k, key) {
			delete(h, k)
		}
	}
	h[key] = value
}
