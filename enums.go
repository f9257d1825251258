package dashhttp

import "strings"

type (
	// HttpType is the request verb as stored by the dashboard editor
	HttpType string
	// ContentType is a Content-Type header value
	ContentType string
	// BodyType selects how the request body is encoded
	BodyType string
	// DataType tells where a widget gets its data from
	DataType int
	// ContentKind tells whether a widget sends a plain request or a SQL payload
	ContentKind int
)

// Request verbs
const (
	HttpGet    HttpType = "get"
	HttpPost   HttpType = "post"
	HttpPut    HttpType = "put"
	HttpPatch  HttpType = "patch"
	HttpDelete HttpType = "delete"
)

// Content types
const (
	ContentTypeJSON           ContentType = "application/json;charset=UTF-8"
	ContentTypeText           ContentType = "text/plain;charset=UTF-8"
	ContentTypeXML            ContentType = "application/xml;charset=UTF-8"
	ContentTypeFormURLEncoded ContentType = "application/x-www-form-urlencoded;charset=UTF-8"
	ContentTypeFormData       ContentType = "multipart/form-data;charset=UTF-8"
)

// Body types
const (
	BodyNone       BodyType = "none"
	BodyFormData   BodyType = "form-data"
	BodyURLEncoded BodyType = "x-www-form-urlencoded"
	BodyJSON       BodyType = "json"
	BodyXML        BodyType = "xml"
)

// Data types
const (
	DataStatic DataType = iota // Data is embedded in the widget
	DataAjax                   // Data is fetched by the widget's own request
	DataPond                   // Data is fetched by a shared request from the pool
)

// Content kinds
const (
	ContentDefault ContentKind = iota
	ContentSQL
)

// Method returns the HTTP method. Unknown and empty verbs are GET.
func (h HttpType) Method() string {
	switch h.normalize() {
	case HttpPost:
		return "POST"
	case HttpPut:
		return "PUT"
	case HttpPatch:
		return "PATCH"
	case HttpDelete:
		return "DELETE"
	default:
		return "GET"
	}
}

// Valid reports whether h is a known verb
func (h HttpType) Valid() bool {
	switch h.normalize() {
	case HttpGet, HttpPost, HttpPut, HttpPatch, HttpDelete:
		return true
	}
	return false
}

func (h HttpType) normalize() HttpType {
	return HttpType(strings.ToLower(strings.TrimSpace(string(h))))
}

// Valid reports whether b is a known body type. Empty counts as none.
func (b BodyType) Valid() bool {
	switch b {
	case "", BodyNone, BodyFormData, BodyURLEncoded, BodyJSON, BodyXML:
		return true
	}
	return false
}

// Valid reports whether d is a known data type
func (d DataType) Valid() bool {
	return d >= DataStatic && d <= DataPond
}

// Valid reports whether c is a known content kind
func (c ContentKind) Valid() bool {
	return c == ContentDefault || c == ContentSQL
}
