package log

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	defer SetMode(currentMode)

	tests := []struct {
		name  string
		mode  SanitizationMode
		input string
		check func(t *testing.T, out string)
	}{
		{
			name:  "production hashes",
			mode:  ProductionMode,
			input: "secret-report.pdf",
			check: func(t *testing.T, out string) {
				assert.True(t, strings.HasPrefix(out, "hash:"))
				assert.NotContains(t, out, "secret")
			},
		},
		{
			name:  "development keeps short names",
			mode:  DevelopmentMode,
			input: "short.txt",
			check: func(t *testing.T, out string) {
				assert.Equal(t, "short.txt", out)
			},
		},
		{
			name:  "development truncates long names",
			mode:  DevelopmentMode,
			input: "a-very-long-file-name-for-testing.bin",
			check: func(t *testing.T, out string) {
				assert.Equal(t, "a-very-lon...ing.bin", out)
			},
		},
		{
			name:  "debug shows everything",
			mode:  DebugMode,
			input: "a-very-long-file-name-for-testing.bin",
			check: func(t *testing.T, out string) {
				assert.Equal(t, "a-very-long-file-name-for-testing.bin", out)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetMode(tt.mode)
			tt.check(t, SanitizeName(tt.input))
		})
	}
}

func TestSanitizeNameDeterministic(t *testing.T) {
	defer SetMode(currentMode)
	SetMode(ProductionMode)

	assert.Equal(t, SanitizeName("a"), SanitizeName("a"))
	assert.NotEqual(t, SanitizeName("a"), SanitizeName("b"))
	assert.Empty(t, SanitizeName(""))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, DebugMode, ParseMode("DEBUG"))
	assert.Equal(t, DevelopmentMode, ParseMode("development"))
	assert.Equal(t, ProductionMode, ParseMode(""))
	assert.Equal(t, ProductionMode, ParseMode("bogus"))
}
