package cosmoapi

import (
	"bytes"
	"encoding/json"
)

// envelopeKeys lists the wrapper fields some Cosmo gateways put around the
// payload. A body is only unwrapped when the wrapper is its sole field.
var envelopeKeys = []string{"result", "data"}

// ExtractPayload returns the JSON document carried by a response body.
// Empty bodies and a bare JSON null yield nil. Single-field envelopes
// ({"result": ...} or {"data": ...}) are unwrapped once.
func ExtractPayload(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return append([]byte(nil), trimmed...)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || len(fields) != 1 {
		return append([]byte(nil), trimmed...)
	}
	for _, key := range envelopeKeys {
		inner, ok := fields[key]
		if !ok {
			continue
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
			return nil
		}
		return append([]byte(nil), inner...)
	}
	return append([]byte(nil), trimmed...)
}
