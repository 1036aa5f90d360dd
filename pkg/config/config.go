package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all environment-driven service settings. It is loaded once at
// process start and read-only afterwards.
type Config struct {
	LogDir   string
	LogLevel string

	StorageDir string
	DBPath     string // bbolt database file

	MaxWorkers     int
	MaxRetries     int
	MaxFileSizeMB  int
	MaxUploadBytes int64
	AllowedExts    map[string]bool

	SnippetMaxSeconds int
	ProbeSeconds      int

	WhisperModelPath  string
	TranslateEndpoint string

	Gate GateConfig
}

// GateConfig holds the language-gate thresholds. Defaults here are the
// authoritative ones; every value is environment-overridable.
type GateConfig struct {
	AllowedLangs      map[string]bool
	LangDetectMinProb float64
	StrictReject      bool

	MidLower          float64
	MidUpper          float64
	MinStopwordEn     float64
	MinStopwordFr     float64
	StopwordMargin    float64
	MinTokens         int // mid-zone heuristic
	MinTokensSpeech   int
	MinStopwordSpeech float64
}

const (
	defaultMaxWorkers    = 2
	defaultMaxRetries    = 2
	defaultMaxFileSizeMB = 100
	defaultSnippetSecs   = 15
	defaultProbeSecs     = 30
)

// Load reads the configuration from the environment.
func Load() *Config {
	cfg := &Config{
		LogDir:            os.Getenv("LOG_DIR"),
		LogLevel:          getString("LOG_LEVEL", "info"),
		StorageDir:        getString("STORAGE_DIR", "storage"),
		DBPath:            getString("DB_URL", "langid.db"),
		MaxWorkers:        getInt("MAX_WORKERS", defaultMaxWorkers),
		MaxRetries:        getInt("MAX_RETRIES", defaultMaxRetries),
		MaxFileSizeMB:     getInt("MAX_FILE_SIZE_MB", defaultMaxFileSizeMB),
		SnippetMaxSeconds: getInt("SNIPPET_MAX_SECONDS", defaultSnippetSecs),
		ProbeSeconds:      getInt("PROBE_DURATION_S", defaultProbeSecs),
		WhisperModelPath:  os.Getenv("WHISPER_MODEL_PATH"),
		TranslateEndpoint: os.Getenv("TRANSLATE_ENDPOINT"),
		AllowedExts: getSet("ALLOWED_EXTS",
			".wav", ".wave", ".mp3", ".m4a", ".aac"),
		Gate: GateConfig{
			AllowedLangs:      getSet("ALLOWED_LANGS", "en", "fr"),
			LangDetectMinProb: getFloat("LANG_DETECT_MIN_PROB", 0.60),
			StrictReject:      getBool("ENFR_STRICT_REJECT", false),
			MidLower:          getFloat("LANG_MID_LOWER", 0.60),
			MidUpper:          getFloat("LANG_MID_UPPER", 0.79),
			MinStopwordEn:     getFloat("LANG_MIN_STOPWORD_EN", 0.15),
			MinStopwordFr:     getFloat("LANG_MIN_STOPWORD_FR", 0.15),
			StopwordMargin:    getFloat("LANG_STOPWORD_MARGIN", 0.05),
			MinTokens:         getInt("LANG_MIN_TOKENS", 10),
			MinTokensSpeech:   getInt("LANG_MIN_TOKENS_SPEECH", 6),
			MinStopwordSpeech: getFloat("LANG_MIN_STOPWORD_SPEECH", 0.10),
		},
	}
	cfg.MaxUploadBytes = int64(cfg.MaxFileSizeMB) * 1024 * 1024
	return cfg
}

// SnippetDuration returns the snippet window as a duration.
func (c *Config) SnippetDuration() time.Duration {
	return time.Duration(c.SnippetMaxSeconds) * time.Second
}

// ExtAllowed reports whether the (lowercased, dot-prefixed) extension is an
// accepted upload type.
func (c *Config) ExtAllowed(ext string) bool {
	return c.AllowedExts[strings.ToLower(ext)]
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "t", "true", "yes":
		return true
	default:
		return false
	}
}

func getSet(key string, defaults ...string) map[string]bool {
	set := make(map[string]bool)
	if v := os.Getenv(key); v != "" {
		for _, item := range strings.Split(v, ",") {
			item = strings.ToLower(strings.TrimSpace(item))
			if item != "" {
				set[item] = true
			}
		}
		return set
	}
	for _, d := range defaults {
		set[d] = true
	}
	return set
}
