package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// LingoClient talks to a lingo.dev-compatible /i18n endpoint.
type LingoClient struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewLingoClient builds a provider client. timeout bounds every request
// attempt; it counts against the caller's retry budget.
func NewLingoClient(apiURL, apiKey string, timeout time.Duration) *LingoClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LingoClient{
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type i18nRequest struct {
	Params i18nParams `json:"params"`
	Locale i18nLocale `json:"locale"`
	Data   i18nData   `json:"data"`
}

type i18nParams struct {
	WorkflowID string `json:"workflowId"`
	Fast       bool   `json:"fast"`
}

type i18nLocale struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type i18nData struct {
	Text string `json:"text"`
}

type i18nResponse struct {
	Data i18nData `json:"data"`
}

// Localize implements Provider against the /i18n endpoint.
func (c *LingoClient) Localize(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	source := sourceLocale
	if source == "" {
		source = "auto"
	}

	body, err := json.Marshal(i18nRequest{
		Params: i18nParams{
			WorkflowID: fmt.Sprintf("wf-%d", time.Now().UnixMilli()),
			Fast:       true,
		},
		Locale: i18nLocale{Source: source, Target: targetLocale},
		Data:   i18nData{Text: text},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/i18n", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classifyNetworkError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &TransientError{Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out i18nResponse
		if err := json.Unmarshal(payload, &out); err != nil {
			return "", fmt.Errorf("invalid json response: %w", err)
		}
		if out.Data.Text == "" {
			return text, nil
		}
		return out.Data.Text, nil
	case resp.StatusCode >= 500:
		return "", &TransientError{Err: fmt.Errorf("server error (%d): %s", resp.StatusCode, truncate(payload))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &FatalError{Err: fmt.Errorf("provider rejected credentials (%d)", resp.StatusCode)}
	default:
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, truncate(payload))
	}
}

func classifyNetworkError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientError{Err: err}
	}
	msg := err.Error()
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "EOF") ||
		errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	return err
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
