// Package envconfig - Laufzeit-Konfiguration fuer den Konformitaets-Runner
//
// Dieses Modul enthaelt:
// - Var: Liest und trimmt eine Environment-Variable
// - Bool/Uint/Float: Typisierte Getter mit Default-Wert
// - Shards: Parallele Testausfuehrung (WONNX_SHARDS)
// - RTol: Relative Toleranz fuer Ergebnisvergleiche (WONNX_RTOL)
// - Debug: Ausfuehrliches Logging (WONNX_DEBUG)
// Der Adapter-Kern liest keine Environment-Variablen; nur der Runner.
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var liest eine Environment-Variable und entfernt Whitespace und Quotes
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(key string) func() bool {
	return func() bool {
		if s := Var(key); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return false
	}
}

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Float gibt eine Funktion zurueck, die einen float64 mit Default-Wert liest
func Float(key string, defaultValue float64) func() float64 {
	return func() float64 {
		if s := Var(key); s != "" {
			if f, err := strconv.ParseFloat(s, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return f
			}
		}
		return defaultValue
	}
}

var (
	// Shards ist die Anzahl gleichzeitig laufender Testfaelle (WONNX_SHARDS)
	Shards = Uint("WONNX_SHARDS", 1)

	// RTol ist die relative Toleranz fuer Ergebnisvergleiche (WONNX_RTOL)
	RTol = Float("WONNX_RTOL", 1.0)

	// Debug aktiviert ausfuehrliches Logging (WONNX_DEBUG)
	Debug = Bool("WONNX_DEBUG")
)
