package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountryFlag(t *testing.T) {
	assert.Equal(t, "🇳🇱", countryFlag("NL"))
	assert.Equal(t, "🇩🇪", countryFlag("de"), "lowercase codes work")
	assert.Equal(t, "🌍", countryFlag(""))
	assert.Equal(t, "🌍", countryFlag("X"))
	assert.Equal(t, "🌍", countryFlag("USA"))
	assert.Equal(t, "🌍", countryFlag("1A"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", formatBytes(0))
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(3*1024*1024/2))
	assert.Equal(t, "2.00 GB", formatBytes(2*1024*1024*1024))
}
