// Package embed adapts the embedded call surface. Its notifications are untyped;
// this package turns them into a small Signal set and never lets the raw payload
// travel further.
package embed

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

type Signal int

const (
	// SignalActivity is any origin-checked message that is not an exit.
	SignalActivity Signal = iota
	// SignalLeft means the user left or was disconnected inside the surface.
	SignalLeft
)

func (s Signal) String() string {
	if s == SignalLeft {
		return "left"
	}
	return "activity"
}

type Translator struct {
	origin string
}

func NewTranslator(origin string) *Translator {
	return &Translator{origin: strings.TrimRight(origin, "/")}
}

func (t *Translator) Origin() string { return t.origin }

// Translate drops payloads from any origin other than the configured one.
func (t *Translator) Translate(origin string, data json.RawMessage) (Signal, bool) {
	if strings.TrimRight(origin, "/") != t.origin {
		log.Debug().Str("module", "embed").Str("origin", origin).Msg("foreign origin dropped")
		return 0, false
	}
	if isExit(data) {
		return SignalLeft, true
	}
	return SignalActivity, true
}

func isExit(data json.RawMessage) bool {
	var obj struct {
		Type   string `json:"type"`
		Action string `json:"action"`
	}
	if json.Unmarshal(data, &obj) == nil {
		if exitWord(obj.Type) || exitWord(obj.Action) {
			return true
		}
	}

	var s string
	if json.Unmarshal(data, &s) == nil {
		return containsExit(s)
	}
	return containsExit(string(data))
}

func exitWord(v string) bool {
	return v == "leave" || v == "disconnect"
}

func containsExit(s string) bool {
	return strings.Contains(s, "left") || strings.Contains(s, "disconnect") ||
		strings.Contains(s, "leave")
}
