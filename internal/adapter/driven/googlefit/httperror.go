package googlefit

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// maxErrorBodySize is the maximum size of provider error text kept in a ProviderError.
const maxErrorBodySize = 500

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// googleErrorBody is the standard Google API error envelope.
type googleErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// parseErrorResponse converts a non-2xx response into a *model.ProviderError.
// It returns nil for 2xx responses. The body is consumed and closed.
func parseErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	message := ""
	if err == nil && len(body) > 0 {
		var envelope googleErrorBody
		if jsonErr := json.Unmarshal(body, &envelope); jsonErr == nil && envelope.Error.Message != "" {
			message = envelope.Error.Message
		} else {
			message = strings.TrimSpace(string(body))
		}
	}

	providerErr := &model.ProviderError{
		StatusCode: resp.StatusCode,
		Message:    truncate(message, maxErrorBodySize),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		providerErr.URL = resp.Request.URL.Redacted()
	}
	return providerErr
}

// drainAndClose discards the remaining body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
