package sleepsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the service, carrying the wire error
// code when the body could be parsed.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// parseErrorResponse turns an error response body into a typed *APIError.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wire); err == nil && wire.Code != "" {
		return &APIError{StatusCode: resp.StatusCode, Code: wire.Code, Message: wire.Message}
	}
	return &APIError{StatusCode: resp.StatusCode}
}
