package meta

import (
	"encoding/json"
	"fmt"
)

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
	FBTraceID  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("meta api returned status %d", e.StatusCode)
}

// graphErrorEnvelope mirrors {"error":{"message":...,"type":...,"code":...}}.
type graphErrorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// decodeAPIError extracts what it can from body. Bodies that are not a Graph
// error envelope still yield an APIError carrying the status code.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var env graphErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiErr
	}

	apiErr.Message = env.Error.Message
	apiErr.Type = env.Error.Type
	apiErr.Code = env.Error.Code
	apiErr.FBTraceID = env.Error.FBTraceID
	return apiErr
}
