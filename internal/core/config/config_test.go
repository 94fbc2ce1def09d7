package config

import (
	"reflect"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr != ":5000" || cfg.MapsDir != "mapsources" {
		t.Fatalf("addr=%q maps=%q", cfg.Addr, cfg.MapsDir)
	}
	if cfg.Public != (PublicURL{Scheme: "http", Host: "localhost", Port: 5000}) {
		t.Fatalf("public=%+v", cfg.Public)
	}
	if cfg.LogTilesPerRow != 1 || cfg.MinZoomLimit != 5 {
		t.Fatalf("l=%d minZoomLimit=%d", cfg.LogTilesPerRow, cfg.MinZoomLimit)
	}
	if cfg.Print.Workers != 16 || cfg.Print.TileTimeout != 10*time.Second || cfg.Print.DefaultDPI != 300 {
		t.Fatalf("print=%+v", cfg.Print)
	}
	if !cfg.MetricsEnabled || cfg.MetricsAddr != "" || cfg.MetricsPath != "/metrics" {
		t.Fatalf("metrics enabled=%v addr=%q path=%q", cfg.MetricsEnabled, cfg.MetricsAddr, cfg.MetricsPath)
	}
	if cfg.DocCache.Backend != "none" || cfg.PrintEvents.Enabled {
		t.Fatalf("doc cache=%+v events=%+v", cfg.DocCache, cfg.PrintEvents)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("PUBLIC_HOST", "maps.example.org")
	t.Setenv("PUBLIC_PORT", "443")
	t.Setenv("PUBLIC_SCHEME", "https")
	t.Setenv("LOG_TILES_PER_ROW", "3")
	t.Setenv("PRINT_WORKERS", "0")
	t.Setenv("TILE_FETCH_TIMEOUT", "750ms")
	t.Setenv("DOC_CACHE", "LRU")
	t.Setenv("DOC_CACHE_TTL", "1h")
	t.Setenv("PRINT_EVENTS_ENABLED", "yes")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LOG_CONSOLE", "notabool")

	cfg := FromEnv()
	if cfg.Addr != ":9999" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.Public != (PublicURL{Scheme: "https", Host: "maps.example.org", Port: 443}) {
		t.Fatalf("public=%+v", cfg.Public)
	}
	if cfg.LogTilesPerRow != 3 {
		t.Fatalf("l=%d", cfg.LogTilesPerRow)
	}
	if cfg.Print.Workers != 1 || cfg.Print.TileTimeout != 750*time.Millisecond {
		t.Fatalf("print=%+v", cfg.Print)
	}
	if cfg.DocCache.Backend != "lru" || cfg.DocCache.TTL != time.Hour {
		t.Fatalf("doc cache=%+v", cfg.DocCache)
	}
	if !cfg.PrintEvents.Enabled || !reflect.DeepEqual(cfg.PrintEvents.Brokers, []string{"k1:9092", "k2:9092"}) {
		t.Fatalf("events=%+v", cfg.PrintEvents)
	}
	if cfg.LogConsole {
		t.Fatal("invalid bool should keep the default")
	}
}
