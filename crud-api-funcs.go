package dashhttp

import (
	"context"
	"encoding/json"

	rslt "github.com/stdutil/result"
)

// CreateApi posts data on an API endpoint and converts the returned data into a resulting type
func CreateApi[T any, U any](ctx context.Context, c *Client, url string, pl U, opts ...RequestOption) rslt.ResultAny[T] {
	b, err := json.Marshal(pl)
	if err != nil {
		return rslt.ResultAny[T]{
			Result: rslt.InitResult(
				rslt.WithMessage(err.Error()),
			),
		}
	}
	rd := DecodeResult(c.Post(ctx, url, b, opts...))
	return getJsonConverted[T](&rd)
}

// ReadApi retrieves data on an API endpoint and converts the returned data into a resulting type
func ReadApi[T any](ctx context.Context, c *Client, url string, params any, opts ...RequestOption) rslt.ResultAny[T] {
	opts = append(opts, Compressed(true)) // last one will override
	rd := DecodeResult(c.Get(ctx, url, params, opts...))
	return getJsonConverted[T](&rd)
}

// UpdateApi updates data on an API endpoint and converts the returned data into a resulting type
func UpdateApi[T any, U any](ctx context.Context, c *Client, url string, pl U, opts ...RequestOption) rslt.ResultAny[T] {
	b, err := json.Marshal(pl)
	if err != nil {
		return rslt.ResultAny[T]{
			Result: rslt.InitResult(rslt.WithMessage(err.Error())),
		}
	}
	rd := DecodeResult(c.Put(ctx, url, b, opts...))
	return getJsonConverted[T](&rd)
}

// DeleteApi deletes data on an API endpoint and converts the returned data into a resulting type
func DeleteApi[T any](ctx context.Context, c *Client, url string, params any, opts ...RequestOption) rslt.ResultAny[T] {
	rd := DecodeResult(c.Del(ctx, url, params, opts...))
	return getJsonConverted[T](&rd)
}

// PatchApi patches data on an API endpoint and converts the returned data into a resulting type
func PatchApi[T any, U any](ctx context.Context, c *Client, url string, pl U, opts ...RequestOption) rslt.ResultAny[T] {
	b, err := json.Marshal(pl)
	if err != nil {
		return rslt.ResultAny[T]{
			Result: rslt.InitResult(rslt.WithMessage(err.Error())),
		}
	}
	rd := DecodeResult(c.Patch(ctx, url, b, opts...))
	return getJsonConverted[T](&rd)
}
