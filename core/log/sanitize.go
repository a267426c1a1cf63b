// Package log provides log field sanitization for hdfscache.
// Logical filenames can carry user data, so they are hashed in production logs.
package log

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
)

// SanitizationMode controls how sensitive data is handled in logs
type SanitizationMode int

const (
	// ProductionMode hashes sensitive data for production use
	ProductionMode SanitizationMode = iota
	// DevelopmentMode shows truncated sensitive data for debugging
	DevelopmentMode
	// DebugMode shows full sensitive data (only for development)
	DebugMode
)

var currentMode = ProductionMode

func init() {
	SetMode(ParseMode(os.Getenv("HDFSCACHE_LOG_MODE")))
}

// ParseMode maps a mode name to a SanitizationMode. Unknown names map to
// ProductionMode.
func ParseMode(mode string) SanitizationMode {
	switch strings.ToLower(mode) {
	case "development":
		return DevelopmentMode
	case "debug":
		return DebugMode
	default:
		return ProductionMode
	}
}

// SetMode changes the sanitization mode for the whole process.
func SetMode(mode SanitizationMode) {
	currentMode = mode
}

// SanitizeName sanitizes a logical filename for logging based on the current mode
func SanitizeName(name string) string {
	if name == "" {
		return ""
	}

	switch currentMode {
	case DevelopmentMode:
		if len(name) <= 20 {
			return name
		}
		return name[:10] + "..." + name[len(name)-7:]
	case DebugMode:
		return name
	default:
		hash := sha256.Sum256([]byte(name))
		return fmt.Sprintf("hash:%x", hash[:8])
	}
}

// SanitizeNames applies SanitizeName to every element.
func SanitizeNames(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = SanitizeName(name)
	}
	return out
}
