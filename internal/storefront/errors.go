package storefront

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	StatusCode int
	// Detail is the backend's "detail" field flattened to text. Empty when
	// the body carried none.
	Detail string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend status %d", e.StatusCode)
}

// parseDetail extracts "detail" as either a plain string or a list of
// validation entries carrying "msg".
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var entries []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if err := json.Unmarshal(envelope.Detail, &entries); err == nil {
		msgs := make([]string, 0, len(entries))
		for _, e := range entries {
			if m := strings.TrimSpace(e.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
