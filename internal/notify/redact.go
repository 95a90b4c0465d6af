package notify

import (
	"strings"

	"github.com/darshan-rambhia/herald/internal/model"
)

// RedactedValue replaces secret parameters in configurations shown to API
// callers.
const RedactedValue = "********"

var secretParamMarkers = []string{"token", "secret", "key", "password", "auth"}

// secretParams holds credentials whose names carry no marker: the bark
// device URL embeds the push key, and webhook headers usually carry
// authorization.
var secretParams = map[string]bool{
	"barkpush":       true,
	"webhookheaders": true,
}

// IsSecretParam reports whether a channel parameter holds a credential.
func IsSecretParam(name string) bool {
	lower := strings.ToLower(name)
	if secretParams[lower] {
		return true
	}
	for _, m := range secretParamMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Redact returns a copy of cfg with every non-empty secret parameter
// replaced by RedactedValue.
func Redact(cfg model.ChannelConfig) model.ChannelConfig {
	out := model.ChannelConfig{Type: cfg.Type, Params: make(map[string]any, len(cfg.Params))}
	for k, v := range cfg.Params {
		if IsSecretParam(k) && !isEmptyParam(v) {
			v = RedactedValue
		}
		out.Params[k] = v
	}
	return out
}

func isEmptyParam(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
