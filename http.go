// Package dashhttp is the request layer of the dashboard builder.
//
// It provides thin verb functions over a shared Transport and an Assembler
// that turns the request configuration of a widget into one outbound call.
package dashhttp

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	nv "github.com/stdutil/name-value"
	"go.uber.org/zap"

	"github.com/stdutil/dashhttp/script"
)

const (
	REQUEST_VERSION  string = "1.1.0.0"
	REQUEST_MODIFIED string = "18102026"
)

// Errors
var (
	ErrNilRequest    = errors.New("request cannot be nil")
	ErrInvalidConfig = errors.New("invalid request configuration")
	ErrInvalidBody   = errors.New("invalid request body")
	ErrInvalidURL    = errors.New("invalid request url")
	ErrInvalidParams = errors.New("invalid request params")
)

var (
	reqTimeOut int
	ct         *http.Transport
)

type (
	// Request is a fully assembled outbound call
	Request struct {
		Method     string            // HTTP method
		URL        string            // Target URL without the params below
		Params     nv.NameValues     // Query string values
		Headers    map[string]string // Request headers
		Body       []byte            // Encoded body
		Form       *Form             // Form entries when the body is a form
		TimeOut    int               // Time out in seconds, 0 uses the default
		Compressed bool              // Gzip the body and accept gzip responses
	}

	// Response is the raw response of a call
	Response struct {
		StatusCode int
		Status     string
		Header     http.Header
		Body       []byte
	}

	// StatusError is returned for non 2xx responses
	StatusError struct {
		StatusCode int
		Status     string
		Body       []byte
	}

	// Transport performs a call. Retries and timeouts belong to the transport.
	Transport interface {
		Do(ctx context.Context, req *Request) (*Response, error)
	}

	// TransportFunc adapts a function to Transport
	TransportFunc func(ctx context.Context, req *Request) (*Response, error)

	// NetTransport is the net/http transport
	NetTransport struct {
		client *http.Client
		logger *zap.Logger
	}
)

func init() {
	reqTimeOut = 30
	ct = http.DefaultTransport.(*http.Transport).Clone()
	ct.MaxIdleConns = 100
	ct.MaxConnsPerHost = 100
	ct.MaxIdleConnsPerHost = 100
}

// SetRequestTimeout sets the default timeout in seconds
func SetRequestTimeout(timeOut int) {
	reqTimeOut = timeOut
}

// Do calls f
func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Header returns the value of a request header, matched case-insensitively
func (r *Request) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// NewNetTransport creates a transport over the shared connection pool. A nil
// client uses one without its own timeout, the per-request timeout applies.
func NewNetTransport(client *http.Client, logger *zap.Logger) *NetTransport {
	if client == nil {
		client = &http.Client{Transport: ct}
	}
	return &NetTransport{
		client: client,
		logger: loggerOrNop(logger).With(zap.String("component", "transport")),
	}
}

// Do executes req
//
// On headers:
//   - Content-Type: If this header is not set and there is a body, it defaults to JSON
//   - Content-Encoding: If compressed is true, the body is gzipped for POST, PUT and PATCH
//   - Cookie: split into individual cookies
func (nt *NetTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	endPoint, err := withQuery(req.URL, req.Params)
	if err != nil {
		return nil, err
	}
	timeOut := req.TimeOut
	if timeOut <= 0 {
		timeOut = reqTimeOut
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second*time.Duration(timeOut))
	defer cancel()

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	payload := req.Body
	gzipped := false
	if req.Compressed && len(payload) > 0 {
		switch method {
		case "POST", "PUT", "PATCH":
			if payload, err = gzipBytes(payload); err != nil {
				return nil, err
			}
			gzipped = true
		}
	}
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}
	nr, err := http.NewRequestWithContext(ctx, method, endPoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	nr.Header.Set(
		"User-Agent",
		fmt.Sprintf("com.github.stdutil.dashhttp/%s-%s",
			REQUEST_VERSION, REQUEST_MODIFIED))
	nr.Header.Set("Accept", "*/*")
	if req.Compressed {
		nr.Header.Set("Accept-Encoding", "gzip")
	}
	if gzipped {
		nr.Header.Set("Content-Encoding", "gzip")
	}
	for k, v := range req.Headers {
		if !strings.EqualFold(k, "cookie") {
			nr.Header.Set(k, v)
			continue
		}
		for _, nvs := range strings.Split(v, `;`) {
			if nv := strings.SplitN(nvs, `=`, 2); len(nv) > 1 {
				nr.AddCookie(&http.Cookie{
					Name:  strings.TrimSpace(nv[0]),
					Value: strings.TrimSpace(nv[1]),
				})
			}
		}
	}
	if body != nil && nr.Header.Get("Content-Type") == "" {
		nr.Header.Set("Content-Type", string(ContentTypeJSON))
	}

	nt.logger.Debug("sending http request",
		zap.String("method", method),
		zap.String("url", endPoint))

	resp, err := nt.client.Do(nr)
	if err != nil {
		nt.logger.Warn("http request failed",
			zap.String("method", method),
			zap.String("url", endPoint),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       data,
		}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	ce := strings.ToLower(resp.Header.Get("Content-Encoding"))
	if resp.Uncompressed || ce != "gzip" {
		data, err := io.ReadAll(resp.Body)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return data, nil
	}
	gzr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer gzr.Close()
	data, err := io.ReadAll(gzr)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return data, nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// withQuery appends params to the query string of rawURL
func withQuery(rawURL string, params nv.NameValues) (string, error) {
	if len(params.Pair) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	q := u.Query()
	for k, v := range params.Pair {
		q.Set(k, script.Format(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
