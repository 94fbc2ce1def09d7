// Command geos-loadgen replays a skewed stream of region document requests
// against a running server and records latency samples.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/mohammed-shakir/geos/internal/logger"
)

type Config struct {
	BaseURL        string
	MapID          string
	Zoom           int
	LogTilesPerRow int
	Concurrency    int
	Duration       time.Duration
	ZipfS          float64
	ZipfV          float64
	Regions        int
	OutputPrefix   string
	RequestTimeout time.Duration
	Revalidate     bool
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "target", "http://localhost:5000", "geos base URL")
	flag.StringVar(&cfg.MapID, "map", "osm", "map source id")
	flag.IntVar(&cfg.Zoom, "zoom", 8, "region zoom level")
	flag.IntVar(&cfg.LogTilesPerRow, "l", 1, "log2 of tiles per region row, as configured on the server")
	flag.IntVar(&cfg.Concurrency, "concurrency", 32, "concurrent workers")
	flag.DurationVar(&cfg.Duration, "duration", 60*time.Second, "test duration")
	flag.Float64Var(&cfg.ZipfS, "zipf-s", 1.3, "Zipf parameter s (>1)")
	flag.Float64Var(&cfg.ZipfV, "zipf-v", 1.0, "Zipf parameter v (>=1)")
	flag.IntVar(&cfg.Regions, "regions", 128, "distinct region documents in the pool")
	flag.StringVar(&cfg.OutputPrefix, "out", "results/geos", "output file prefix (JSON/CSV)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", 10*time.Second, "per-request timeout")
	flag.BoolVar(&cfg.Revalidate, "revalidate", false, "send If-None-Match with the last seen ETag")
	flag.Parse()
	return cfg
}

type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	ErrorMsg  string
	URL       string
}

func (s sample) ok() bool {
	return s.ErrorMsg == "" && (s.Status == http.StatusOK || s.Status == http.StatusNotModified)
}

type summary struct {
	StartTime     time.Time `json:"start"`
	EndTime       time.Time `json:"end"`
	DurationSec   float64   `json:"duration_sec"`
	TotalRequests int64     `json:"total"`
	SuccessCount  int64     `json:"success"`
	NotModified   int64     `json:"not_modified"`
	ErrorCount    int64     `json:"errors"`
	ThroughputRPS float64   `json:"throughput_rps"`
	P50Ms         float64   `json:"p50_ms"`
	P95Ms         float64   `json:"p95_ms"`
	P99Ms         float64   `json:"p99_ms"`
	Concurrency   int       `json:"concurrency"`
	ZipfS         float64   `json:"zipf_s"`
	ZipfV         float64   `json:"zipf_v"`
	Regions       int       `json:"regions"`
	Zoom          int       `json:"zoom"`
	Target        string    `json:"target"`
	MapID         string    `json:"map_id"`
}

type aggregate struct {
	total, success, notModified, errors int64
	latMs                               []float64
}

// etags remembers the last validator per URL for revalidating requests.
type etags struct {
	mu sync.Mutex
	m  map[string]string
}

func (e *etags) get(u string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m[u]
}

func (e *etags) put(u, tag string) {
	if tag == "" {
		return
	}
	e.mu.Lock()
	e.m[u] = tag
	e.mu.Unlock()
}

func main() {
	os.Exit(run(loadConfig()))
}

func run(cfg Config) int {
	zl := logger.Build(logger.Config{Level: "info", Console: true, Component: "loadgen"}, os.Stderr)
	log := logger.NewSlog(&zl)

	if err := os.MkdirAll(filepath.Dir(cfg.OutputPrefix), 0o750); err != nil {
		log.Error("mkdir results", "err", err)
		return 1
	}
	prefix := fmt.Sprintf("%s_%s", cfg.OutputPrefix, time.Now().UTC().Format("20060102_150405Z"))

	seed := time.Now().UnixNano()
	regions := makeRegions(cfg.Regions, cfg.Zoom, cfg.LogTilesPerRow, rand.New(rand.NewSource(seed)))
	if len(regions) == 0 {
		log.Error("no regions generated", "zoom", cfg.Zoom, "l", cfg.LogTilesPerRow)
		return 1
	}
	urls := make([]string, len(regions))
	for i, rc := range regions {
		urls[i] = regionURL(cfg.BaseURL, cfg.MapID, rc)
	}
	imax := uint64(len(urls)) - 1

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:        1024,
			MaxIdleConnsPerHost: 256,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: cfg.RequestTimeout,
	}

	csvPath := prefix + "_samples.csv"
	jsonPath := prefix + "_summary.json"
	csvFile, err := os.Create(filepath.Clean(csvPath))
	if err != nil {
		log.Error("open csv", "err", err)
		return 1
	}
	defer func() { _ = csvFile.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	samples := make(chan sample, 4096)
	results := make(chan aggregate, 1)
	go collect(csv.NewWriter(csvFile), samples, results)

	start := time.Now()
	log.Info("loadgen start",
		"target", cfg.BaseURL,
		"map_id", cfg.MapID,
		"duration", cfg.Duration,
		"concurrency", cfg.Concurrency,
		"regions", len(urls))

	tags := &etags{m: map[string]string{}}
	var wg sync.WaitGroup
	wg.Add(cfg.Concurrency)
	for id := range cfg.Concurrency {
		go func(id int) {
			defer wg.Done()
			zipf := rand.NewZipf(rand.New(rand.NewSource(seed+int64(id)+1)), cfg.ZipfS, cfg.ZipfV, imax)
			for ctx.Err() == nil {
				v := zipf.Uint64()
				if v >= uint64(len(urls)) {
					continue
				}
				u := urls[v]
				s := fetch(ctx, client, u, cfg.Revalidate, tags)
				select {
				case samples <- s:
				case <-ctx.Done():
					return
				}
			}
		}(id)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		close(samples)
	}()

	agg := <-results
	end := time.Now()
	elapsed := end.Sub(start).Seconds()

	sort.Float64s(agg.latMs)
	sum := summary{
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		NotModified:   agg.notModified,
		ErrorCount:    agg.errors,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		Concurrency:   cfg.Concurrency,
		ZipfS:         cfg.ZipfS,
		ZipfV:         cfg.ZipfV,
		Regions:       len(urls),
		Zoom:          cfg.Zoom,
		Target:        cfg.BaseURL,
		MapID:         cfg.MapID,
	}
	if err := writeSummary(jsonPath, sum); err != nil {
		log.Warn("write summary", "path", jsonPath, "err", err)
	}

	log.Info("loadgen done",
		"total", sum.TotalRequests,
		"success", sum.SuccessCount,
		"not_modified", sum.NotModified,
		"errors", sum.ErrorCount,
		"rps", math.Round(sum.ThroughputRPS*100)/100,
		"p50_ms", sum.P50Ms,
		"p95_ms", sum.P95Ms,
		"p99_ms", sum.P99Ms,
		"csv", csvPath,
		"json", jsonPath)
	return 0
}

func fetch(ctx context.Context, client *http.Client, u string, revalidate bool, tags *etags) sample {
	s := sample{Timestamp: time.Now(), URL: u}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	req.Header.Set("Accept", "application/vnd.google-earth.kml+xml")
	if revalidate {
		if tag := tags.get(u); tag != "" {
			req.Header.Set("If-None-Match", tag)
		}
	}
	resp, err := client.Do(req)
	s.Latency = time.Since(s.Timestamp)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	s.Status = resp.StatusCode
	if !s.ok() {
		s.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	tags.put(u, resp.Header.Get("ETag"))
	return s
}

func collect(w *csv.Writer, samples <-chan sample, out chan<- aggregate) {
	_ = w.Write([]string{"timestamp", "latency_ms", "status", "error", "url"})
	agg := aggregate{latMs: make([]float64, 0, 1<<16)}
	for s := range samples {
		agg.total++
		lat := float64(s.Latency.Microseconds()) / 1000.0
		switch {
		case !s.ok():
			agg.errors++
		case s.Status == http.StatusNotModified:
			agg.notModified++
			agg.success++
			agg.latMs = append(agg.latMs, lat)
		default:
			agg.success++
			agg.latMs = append(agg.latMs, lat)
		}
		_ = w.Write([]string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(lat, 'f', 3, 64),
			strconv.Itoa(s.Status),
			s.ErrorMsg,
			s.URL,
		})
	}
	w.Flush()
	out <- agg
}

func writeSummary(path string, s summary) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
