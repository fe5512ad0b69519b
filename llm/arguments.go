package llm

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

// NormalizeArguments sanitizes a backend-emitted tool-call argument string
// into valid JSON. Backends occasionally emit truncated or loosely quoted
// argument payloads; those are repaired rather than rejected so a tool call
// is never dropped over cosmetic JSON damage. An empty payload becomes the
// empty object.
func NormalizeArguments(raw string) string {
	if raw == "" {
		return "{}"
	}
	if json.Valid([]byte(raw)) {
		return raw
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		return repaired
	}
	return raw
}
