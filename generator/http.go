package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxDetailLength = 200

// PostJSON posts body to url and decodes the JSON reply into out.
// Non-2xx replies become a *StatusError and undecodable ones a *FormatError.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(raw),
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &FormatError{Reason: "invalid json", Err: err}
	}

	return nil
}

func errorDetail(raw []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, key := range []string{"error", "message"} {
			switch v := payload[key].(type) {
			case string:
				return v
			case map[string]any:
				if msg, ok := v["message"].(string); ok {
					return msg
				}
			}
		}
	}

	detail := strings.TrimSpace(string(raw))
	if detail == "" {
		return "no error details"
	}

	if len(detail) > maxDetailLength {
		detail = detail[:maxDetailLength]
	}

	return detail
}
