package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type PublicURL struct {
	Scheme string
	Host   string
	Port   int
}

type PrintCfg struct {
	Workers     int
	TileTimeout time.Duration
	UserAgent   string
	MaxPixels   int
	DefaultDPI  float64
}

type DocCacheCfg struct {
	Backend string
	Size    int
	TTL     time.Duration
}

type PrintEventsCfg struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
	MapsDir        string
	Public         PublicURL
	LogTilesPerRow int
	MinZoomLimit   int
	RedisAddr      string
	Print          PrintCfg
	DocCache       DocCacheCfg
	PrintEvents    PrintEventsCfg
}

func FromEnv() Config {
	brokers := getenv("KAFKA_BROKERS", "localhost:9092")

	return Config{
		Addr:           getenv("ADDR", ":5000"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		MetricsAddr:    getenv("METRICS_ADDR", ""),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
		MapsDir:        getenv("MAPS_DIR", "mapsources"),
		Public: PublicURL{
			Scheme: getenv("PUBLIC_SCHEME", "http"),
			Host:   getenv("PUBLIC_HOST", "localhost"),
			Port:   getint("PUBLIC_PORT", 5000),
		},
		LogTilesPerRow: getint("LOG_TILES_PER_ROW", 1),
		MinZoomLimit:   getint("MIN_ZOOM_LIMIT", 5),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		Print: PrintCfg{
			Workers:     max(getint("PRINT_WORKERS", 16), 1),
			TileTimeout: getduration("TILE_FETCH_TIMEOUT", 10*time.Second),
			UserAgent:   getenv("TILE_USER_AGENT", ""),
			MaxPixels:   getint("PRINT_MAX_PIXELS", 200_000_000),
			DefaultDPI:  getfloat("PRINT_DEFAULT_DPI", 300),
		},
		DocCache: DocCacheCfg{
			Backend: strings.ToLower(getenv("DOC_CACHE", "none")),
			Size:    getint("DOC_CACHE_SIZE", 4096),
			TTL:     getduration("DOC_CACHE_TTL", 10*time.Minute),
		},
		PrintEvents: PrintEventsCfg{
			Enabled: getbool("PRINT_EVENTS_ENABLED", false),
			Brokers: splitList(brokers),
			Topic:   getenv("KAFKA_TOPIC", "geos-prints"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a:9092, b:9092" into a list
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
