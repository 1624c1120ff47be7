package artifactory

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError describes a non-2xx response from Artifactory.
type APIError struct {
	// StatusCode is the HTTP status code returned by the server.
	StatusCode int
	// Status is the HTTP status line text (e.g. "404 Not Found").
	Status string
	// Endpoint is the request path that produced the error.
	Endpoint string
	// Messages holds the decoded Artifactory error envelope, when present.
	Messages []string
	// Body contains the raw response body bytes for additional diagnostics.
	Body []byte
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("artifactory: %s for %s: %s", e.Status, e.Endpoint, strings.Join(e.Messages, "; "))
	}
	if len(e.Body) > 0 {
		body := strings.TrimSpace(string(e.Body))
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		return fmt.Sprintf("artifactory: %s for %s: %s", e.Status, e.Endpoint, body)
	}
	return fmt.Sprintf("artifactory: %s for %s", e.Status, e.Endpoint)
}

// IsNotFound reports whether the error represents a 404 response.
func (e *APIError) IsNotFound() bool {
	return e != nil && e.StatusCode == http.StatusNotFound
}

// errorEnvelope is the JSON error body Artifactory returns for REST failures.
type errorEnvelope struct {
	Errors []struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeAPIError(resp *http.Response, endpoint string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Endpoint:   endpoint,
		Body:       data,
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil {
		for _, item := range envelope.Errors {
			if msg := strings.TrimSpace(item.Message); msg != "" {
				apiErr.Messages = append(apiErr.Messages, msg)
			}
		}
	}
	return apiErr
}
