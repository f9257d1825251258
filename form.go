package dashhttp

import (
	"bytes"
	"mime/multipart"
	"net/url"
	"strings"
)

// Form is an ordered set of form entries. Setting an existing key replaces
// its value and keeps its position. The zero value is an empty form.
type Form struct {
	keys   []string
	values map[string]string
}

// NewForm creates an empty form
func NewForm() *Form {
	return &Form{values: make(map[string]string)}
}

// Set sets key to value
func (f *Form) Set(key, value string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value of key
func (f *Form) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (f *Form) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of entries
func (f *Form) Len() int {
	return len(f.keys)
}

// URLEncoded encodes the form as application/x-www-form-urlencoded in
// insertion order
func (f *Form) URLEncoded() []byte {
	var sb strings.Builder
	for i, k := range f.keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(f.values[k]))
	}
	return []byte(sb.String())
}

// Multipart encodes the form as multipart/form-data
//
// The function returns the following:
//   - []byte: the encoded body
//   - string: content type including the boundary
//   - error
func (f *Form) Multipart() ([]byte, string, error) {
	var (
		err     error
		payload = &bytes.Buffer{}
	)
	writer := multipart.NewWriter(payload)
	for _, k := range f.keys {
		if err = writer.WriteField(k, f.values[k]); err != nil {
			return nil, "", err
		}
	}
	if err = writer.Close(); err != nil {
		return nil, "", err
	}
	return payload.Bytes(), writer.FormDataContentType(), nil
}
