package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// normalizeList decodes a collection response. It accepts {"results": [...]},
// {"data": [...]}, a bare array, or null, and always yields a non-nil slice.
func normalizeList[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	var items []T
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("apiclient: decode list: %w", err)
		}
	case '{':
		var envelope struct {
			Results json.RawMessage `json:"results"`
			Data    json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("apiclient: decode envelope: %w", err)
		}
		inner := envelope.Results
		if len(bytes.TrimSpace(inner)) == 0 {
			inner = envelope.Data
		}
		if len(bytes.TrimSpace(inner)) == 0 {
			return []T{}, nil
		}
		return normalizeList[T](inner)
	default:
		return nil, fmt.Errorf("apiclient: unexpected list payload %q", truncate(trimmed, 32))
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
