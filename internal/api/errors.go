package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// unreachableHint is shown whenever the backend cannot be contacted at all.
const unreachableHint = "Gagal menghubungi backend API. Pastikan FastAPI jalan di port 8000, " +
	"dan `UNFINIAL_API_BASE_URL` menunjuk ke host yang benar."

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// NetworkError reports a request that never produced an HTTP response.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s (API=%s) (%v)", unreachableHint, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Message is what the user sees.
type HTTPError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPError) Error() string { return e.Message }

// DecodeError is a 2xx response whose body is not the expected JSON.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// newHTTPError extracts the message from an error response: the JSON
// "detail" string when present, otherwise the JSON body itself, otherwise
// the raw text, otherwise the status line.
func newHTTPError(res *http.Response) *HTTPError {
	status := statusLine(res)
	herr := &HTTPError{StatusCode: res.StatusCode, Status: status, Message: status}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err != nil {
		return herr
	}

	if strings.Contains(res.Header.Get("Content-Type"), "application/json") {
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			return herr
		}
		if obj, ok := data.(map[string]any); ok {
			if detail, ok := obj["detail"].(string); ok {
				herr.Message = detail
				return herr
			}
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			herr.Message = buf.String()
		}
		return herr
	}

	if text := string(raw); text != "" {
		herr.Message = text
	}
	return herr
}

func statusLine(res *http.Response) string {
	if res.Status != "" {
		return res.Status
	}
	return fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode))
}
