package fetch

import (
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
)

// contentHeaders are reported in Info.ContentHeader rather than Info.Header.
var contentHeaders = map[string]bool{
	"Allow":         true,
	"Expires":       true,
	"Last-Modified": true,
}

// Info describes a completed HTTP request.
// Media type, charset and content disposition are parsed on first use and
// cached. Always pass Info by pointer.
type Info struct {
	// ID is the session-unique fetch id, starting at 1.
	ID int64

	// Proto is the HTTP version of the response, e.g. "HTTP/1.1".
	Proto string

	StatusCode int

	// Reason is the status text without the code, e.g. "Not Found".
	Reason string

	// Header holds the response headers that do not describe the content.
	Header http.Header

	// ContentHeader holds Content-*, Expires, Last-Modified and Allow.
	ContentHeader http.Header

	// URL is the final request URL after redirects.
	URL *url.URL

	// Method is the method of the final request.
	Method string

	// RequestHeader holds the headers that were sent.
	RequestHeader http.Header

	mediaOnce sync.Once
	mediaType string
	params    map[string]string

	dispOnce    sync.Once
	disposition string
	dispParams  map[string]string
}

// NewInfo builds an Info from a response. The response's request, when
// present, supplies URL, Method and RequestHeader.
func NewInfo(id int64, resp *http.Response) *Info {
	info := &Info{
		ID:            id,
		Proto:         resp.Proto,
		StatusCode:    resp.StatusCode,
		Reason:        reason(resp),
		Header:        make(http.Header),
		ContentHeader: make(http.Header),
	}
	for name, values := range resp.Header {
		if strings.HasPrefix(name, "Content-") || contentHeaders[name] {
			info.ContentHeader[name] = values
			continue
		}
		info.Header[name] = values
	}
	if req := resp.Request; req != nil {
		info.URL = req.URL
		info.Method = req.Method
		info.RequestHeader = req.Header.Clone()
	}
	return info
}

func reason(resp *http.Response) string {
	// resp.Status is "200 OK"
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// IsSuccess reports whether the status code is 2xx.
func (i *Info) IsSuccess() bool {
	return i.StatusCode >= 200 && i.StatusCode <= 299
}

// MediaType returns the lower-cased media type without parameters.
// When Content-Type is missing or malformed, the extension of the
// Content-Disposition filename is used instead. The result is empty when
// neither yields a type.
func (i *Info) MediaType() string {
	i.parseContentType()
	return i.mediaType
}

// Charset returns the charset parameter of Content-Type, or "".
func (i *Info) Charset() string {
	i.parseContentType()
	return i.params["charset"]
}

// ContentDisposition returns the disposition type and its parameters.
func (i *Info) ContentDisposition() (string, map[string]string) {
	i.dispOnce.Do(func() {
		raw := i.ContentHeader.Get("Content-Disposition")
		if raw == "" {
			return
		}
		disposition, params, err := mime.ParseMediaType(raw)
		if err != nil {
			return
		}
		i.disposition = disposition
		i.dispParams = params
	})
	return i.disposition, i.dispParams
}

// Filename returns the Content-Disposition filename, or "".
func (i *Info) Filename() string {
	_, params := i.ContentDisposition()
	name := params["filename"]
	if name == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

func (i *Info) parseContentType() {
	i.mediaOnce.Do(func() {
		if raw := i.ContentHeader.Get("Content-Type"); raw != "" {
			if mediaType, params, err := mime.ParseMediaType(raw); err == nil {
				i.mediaType = strings.ToLower(mediaType)
				i.params = params
				return
			}
		}
		name := i.Filename()
		if name == "" || name == "/" {
			return
		}
		if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
			if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
				i.mediaType = strings.ToLower(mediaType)
			}
		}
	})
}
