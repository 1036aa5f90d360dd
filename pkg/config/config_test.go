package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 2, cfg.MaxWorkers)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxUploadBytes)
	assert.Equal(t, 15, cfg.SnippetMaxSeconds)
	assert.Equal(t, 30, cfg.ProbeSeconds)

	assert.True(t, cfg.Gate.AllowedLangs["en"])
	assert.True(t, cfg.Gate.AllowedLangs["fr"])
	assert.False(t, cfg.Gate.AllowedLangs["de"])
	assert.InDelta(t, 0.60, cfg.Gate.MidLower, 1e-9)
	assert.InDelta(t, 0.79, cfg.Gate.MidUpper, 1e-9)
	assert.InDelta(t, 0.60, cfg.Gate.LangDetectMinProb, 1e-9)
	assert.False(t, cfg.Gate.StrictReject)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_WORKERS", "8")
	t.Setenv("LANG_MID_UPPER", "0.85")
	t.Setenv("ENFR_STRICT_REJECT", "true")
	t.Setenv("ALLOWED_EXTS", ".ogg,.flac")

	cfg := Load()
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.InDelta(t, 0.85, cfg.Gate.MidUpper, 1e-9)
	assert.True(t, cfg.Gate.StrictReject)
	assert.True(t, cfg.ExtAllowed(".ogg"))
	assert.False(t, cfg.ExtAllowed(".wav"), "explicit list replaces the defaults")
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_WORKERS", "many")
	t.Setenv("LANG_MID_LOWER", "low")

	cfg := Load()
	assert.Equal(t, 2, cfg.MaxWorkers)
	assert.InDelta(t, 0.60, cfg.Gate.MidLower, 1e-9)
}

func TestExtAllowedIsCaseInsensitive(t *testing.T) {
	cfg := Load()
	assert.True(t, cfg.ExtAllowed(".WAV"))
	assert.True(t, cfg.ExtAllowed(".Mp3"))
	assert.False(t, cfg.ExtAllowed(".txt"))
}
