package dashhttp

import "maps"

type (
	// RequestParam for verb request functions
	RequestParam struct {
		TimeOut     int               // Request time out in seconds
		Compressed  bool              // Compressed
		Headers     map[string]string // Headers for the request
		ContentType ContentType       // Content type override for POST, PUT and PATCH
	}
	// RequestOption for verb request functions
	RequestOption func(opt *RequestParam) error
)

// TimeOut sets the request timeout as an option
//
// This is used with verb functions
func TimeOut(timeOut int) RequestOption {
	return func(rp *RequestParam) error {
		rp.TimeOut = timeOut
		return nil
	}
}

// Compressed sets the request compression as an option
//
// This is used with verb functions
func Compressed(compressed bool) RequestOption {
	return func(rp *RequestParam) error {
		rp.Compressed = compressed
		return nil
	}
}

// Headers adds request headers as an option
//
// This is used with verb functions
func Headers(hdr map[string]string) RequestOption {
	return func(rp *RequestParam) error {
		if rp.Headers == nil {
			rp.Headers = make(map[string]string)
		}
		maps.Copy(rp.Headers, hdr)
		return nil
	}
}

// WithContentType overrides the JSON content type of POST, PUT and PATCH
func WithContentType(ct ContentType) RequestOption {
	return func(rp *RequestParam) error {
		rp.ContentType = ct
		return nil
	}
}

func applyOptions(rp *RequestParam, opts []RequestOption) error {
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(rp); err != nil {
			return err
		}
	}
	return nil
}
