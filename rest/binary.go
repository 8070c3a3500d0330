package rest

import (
	"encoding/json"
	"strings"

	"github.com/invohq/invo-go/autherr"
)

// bufferWrapper is the shape some API deployments use when they serialize
// a byte payload inside a JSON envelope instead of answering with a true
// binary body. Kept for compatibility; if the upstream endpoint is ever
// fixed to always return binary, the JSON branch stops being taken.
type bufferWrapper struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

func (w bufferWrapper) bytes() []byte {
	out := make([]byte, len(w.Data))
	for i, b := range w.Data {
		out[i] = byte(b)
	}
	return out
}

// extractBinary returns the byte payload of a binary-result response.
// A binary content type passes through untouched. A JSON content type is
// searched for a Buffer-shaped wrapper, either as the whole body or as
// one of its top-level fields; anything else is a protocol violation.
func extractBinary(contentType string, body []byte) ([]byte, error) {
	if !strings.Contains(contentType, "application/json") {
		return body, nil
	}

	var wrapper bufferWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Type == "Buffer" {
		return wrapper.bytes(), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, raw := range fields {
			var nested bufferWrapper
			if err := json.Unmarshal(raw, &nested); err == nil && nested.Type == "Buffer" {
				return nested.bytes(), nil
			}
		}
	}

	return nil, autherr.New(autherr.KindAuth, "expected a binary response but got an unrecognized JSON body")
}
