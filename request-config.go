package dashhttp

import (
	"encoding/json"
	"fmt"
	"maps"
)

type (
	// RequestParamsBody holds the raw body of every body type. Only the entry
	// matching the selected body type is used. Form entries are decoded into
	// maps, which drop the authored order, so form bodies are sent with the
	// default entry first and the rest sorted by key.
	RequestParamsBody struct {
		FormData   map[string]string `json:"form-data,omitempty"`
		URLEncoded map[string]string `json:"x-www-form-urlencoded,omitempty"`
		JSON       string            `json:"json,omitempty"`
		XML        string            `json:"xml,omitempty"`
	}

	// RequestParams are the user-authored request parts
	RequestParams struct {
		Header map[string]string `json:"Header,omitempty"`
		Params map[string]string `json:"Params,omitempty"`
		Body   RequestParamsBody `json:"Body"`
	}

	// RequestConfig is the request configuration of a single widget
	RequestConfig struct {
		URL         string          `json:"requestUrl"`
		ContentType ContentKind     `json:"requestContentType"`
		DataType    DataType        `json:"requestDataType"`
		HttpType    HttpType        `json:"requestHttpType"`
		BodyType    BodyType        `json:"requestParamsBodyType"`
		SQLContent  json.RawMessage `json:"requestSQLContent,omitempty"` // Sent verbatim when ContentType is ContentSQL
		Params      RequestParams   `json:"requestParams"`
	}

	// GlobalRequestConfig is the dashboard-wide request configuration
	GlobalRequestConfig struct {
		OriginURL string        `json:"requestOriginUrl"`
		Params    RequestParams `json:"requestParams"`
	}
)

// Validate checks the enumerations of the configuration. Unknown verbs are
// not an error, they are sent as GET.
func (rc *RequestConfig) Validate() error {
	if !rc.DataType.Valid() {
		return fmt.Errorf("%w: unknown data type %d", ErrInvalidConfig, rc.DataType)
	}
	if !rc.ContentType.Valid() {
		return fmt.Errorf("%w: unknown content type %d", ErrInvalidConfig, rc.ContentType)
	}
	if !rc.BodyType.Valid() {
		return fmt.Errorf("%w: unknown body type %q", ErrInvalidConfig, rc.BodyType)
	}
	return nil
}

// mergeParams overlays widget values on global ones
func mergeParams(global, target map[string]string) map[string]string {
	out := make(map[string]string, len(global)+len(target))
	maps.Copy(out, global)
	maps.Copy(out, target)
	return out
}
