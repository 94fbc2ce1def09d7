// Package router exposes the KML documents and print artifacts over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geos/internal/cache/keys"
	"github.com/mohammed-shakir/geos/internal/core/observability"
	"github.com/mohammed-shakir/geos/internal/doccache"
	"github.com/mohammed-shakir/geos/internal/geo"
	"github.com/mohammed-shakir/geos/internal/kml"
	mylog "github.com/mohammed-shakir/geos/internal/logger"
	"github.com/mohammed-shakir/geos/internal/mapsource"
	"github.com/mohammed-shakir/geos/internal/printevents"
	"github.com/mohammed-shakir/geos/internal/printmap"
)

var ErrBadParam = errors.New("invalid path parameter")

// Printer renders print artifacts.
type Printer interface {
	Print(ctx context.Context, ms *mapsource.MapSource, req printmap.Request) (*printmap.Artifact, printmap.Result, error)
}

type Deps struct {
	Logger     *slog.Logger
	Registry   *mapsource.Registry
	Generator  *kml.Generator
	Printer    Printer
	Docs       *doccache.Cache
	Events     printevents.Sink
	DefaultDPI float64
}

type Service struct {
	logger     *slog.Logger
	registry   *mapsource.Registry
	gen        *kml.Generator
	printer    Printer
	docs       *doccache.Cache
	events     printevents.Sink
	defaultDPI float64
}

func New(d Deps) *Service {
	s := &Service{
		logger:     d.Logger,
		registry:   d.Registry,
		gen:        d.Generator,
		printer:    d.Printer,
		docs:       d.Docs,
		events:     d.Events,
		defaultDPI: d.DefaultDPI,
	}
	if s.docs == nil {
		s.docs = doccache.NewWithBackend("none", nil, d.Logger)
	}
	if s.events == nil {
		s.events = printevents.Nop{}
	}
	if s.defaultDPI <= 0 {
		s.defaultDPI = printmap.DefaultDPI
	}
	return s
}

// Routes mounts the document and print endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/kml-master.kml", s.handleMaster)
	r.Get("/maps.json", s.handleMapsJSON)
	r.Get("/maps/{doc}", s.handleMapRoot)
	r.Get("/maps/{id}/{z}/{x}/{y}.kml", s.handleRegion)
	r.Get("/print/{id}/{zoom}/{x}/{y}/{width}/{height}/map.{format}", s.handlePrint)
}

// Readiness reports ready once at least one map source is loaded.
func (s *Service) Readiness() (bool, int) {
	n := s.registry.Len()
	return n > 0, n
}

func (s *Service) docKey(kind, mapID string) keys.Doc {
	return keys.Doc{
		Origin:         s.gen.URLs().AbsURL("/"),
		Kind:           kind,
		MapID:          mapID,
		LogTilesPerRow: s.gen.LogTilesPerRow(),
	}
}

func (s *Service) handleMaster(w http.ResponseWriter, r *http.Request) {
	body, err := s.docs.GetOrRender(r.Context(), s.docKey("master", ""), func() ([]byte, error) {
		return s.gen.Master(s.registry.All()).Serialize()
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	observability.IncKMLDocument("master")
	writeKML(w, r, body)
}

func (s *Service) handleMapRoot(w http.ResponseWriter, r *http.Request) {
	doc := pathParam(r, "doc")
	id, ok := strings.CutSuffix(doc, ".kml")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}
	ms, err := s.registry.Resolve(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := s.docs.GetOrRender(r.Context(), s.docKey("root", ms.ID), func() ([]byte, error) {
		d, err := s.gen.MapRoot(ms)
		if err != nil {
			return nil, err
		}
		return d.Serialize()
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	observability.IncKMLDocument("root")
	writeKML(w, r, body)
}

func (s *Service) handleRegion(w http.ResponseWriter, r *http.Request) {
	ms, err := s.registry.Resolve(pathParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	z, x, y, err := regionParams(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	key := s.docKey("region", ms.ID)
	key.Zoom, key.X, key.Y = z, x, y
	body, err := s.docs.GetOrRender(r.Context(), key, func() ([]byte, error) {
		d, err := s.gen.Region(ms, z, x, y)
		if err != nil {
			return nil, err
		}
		return d.Serialize()
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	observability.IncKMLDocument("region")
	writeKML(w, r, body)
}

type mapJSON struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Folder  string      `json:"folder"`
	MinZoom int         `json:"min_zoom"`
	MaxZoom int         `json:"max_zoom"`
	BBox    *[4]float64 `json:"bbox,omitempty"`
	Layers  []layerJSON `json:"layers"`
	KML     string      `json:"kml"`
}

type layerJSON struct {
	URL     string `json:"url"`
	MinZoom int    `json:"min_zoom"`
	MaxZoom int    `json:"max_zoom"`
}

func (s *Service) handleMapsJSON(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	out := make([]mapJSON, 0, len(all))
	for _, ms := range all {
		m := mapJSON{
			ID:      ms.ID,
			Name:    ms.Name,
			Folder:  ms.Folder,
			MinZoom: ms.MinZoom(),
			MaxZoom: ms.MaxZoom(),
			KML:     s.gen.URLs().MapRootURL(ms.ID),
		}
		if ms.BBox != nil {
			m.BBox = &[4]float64{ms.BBox.West(), ms.BBox.South(), ms.BBox.East(), ms.BBox.North()}
		}
		for _, l := range ms.Layers {
			m.Layers = append(m.Layers, layerJSON{URL: l.PlainTemplate(), MinZoom: l.MinZoom, MaxZoom: l.MaxZoom})
		}
		out = append(out, m)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Service) handlePrint(w http.ResponseWriter, r *http.Request) {
	if s.printer == nil {
		http.Error(w, "printing disabled", http.StatusNotImplemented)
		return
	}
	ms, err := s.registry.Resolve(pathParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := ParsePrintRequest(r, s.defaultDPI)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ctx := mylog.WithMapID(r.Context(), ms.ID)
	art, res, err := s.printer.Print(ctx, ms, req)
	if err != nil {
		s.fail(w, r.WithContext(ctx), err)
		return
	}
	defer func() {
		if err := art.Remove(); err != nil {
			s.logger.WarnContext(ctx, "remove print artifact", "path", art.Path, "err", err)
		}
	}()

	s.events.Publish(printevents.Event{
		JobID:     res.JobID,
		MapID:     ms.ID,
		Zoom:      req.Zoom,
		CenterX:   req.Center.X,
		CenterY:   req.Center.Y,
		WidthMM:   req.Page.WidthMM,
		HeightMM:  req.Page.HeightMM,
		DPI:       req.Page.DPI,
		Format:    string(req.Format),
		Tiles:     res.Stats.Total,
		Failed:    res.Stats.Failed,
		Skipped:   res.Stats.Skipped,
		Bytes:     art.Size,
		ElapsedMS: res.Duration.Milliseconds(),
		TS:        time.Now().UTC(),
	})

	f, err := os.Open(art.Path)
	if err != nil {
		s.fail(w, r, fmt.Errorf("open artifact: %w", err))
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(art.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename()))
	w.Header().Set("X-Print-Job", res.JobID)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.WarnContext(ctx, "write print artifact", "err", err)
	}
}

// ParsePrintRequest reads the print path parameters and the optional dpi
// query parameter.
func ParsePrintRequest(r *http.Request, defaultDPI float64) (printmap.Request, error) {
	zoom, err := intParam(r, "zoom")
	if err != nil {
		return printmap.Request{}, err
	}
	var vals [4]float64
	for i, name := range []string{"x", "y", "width", "height"} {
		v, err := floatParam(r, name)
		if err != nil {
			return printmap.Request{}, err
		}
		vals[i] = v
	}
	format, err := printmap.ParseFormat(pathParam(r, "format"))
	if err != nil {
		return printmap.Request{}, err
	}
	dpi := defaultDPI
	if raw := strings.TrimSpace(r.URL.Query().Get("dpi")); raw != "" {
		dpi, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return printmap.Request{}, fmt.Errorf("%w: dpi %q", ErrBadParam, raw)
		}
	}
	return printmap.Request{
		Center: geo.MercatorCoordinate{X: vals[0], Y: vals[1]},
		Zoom:   zoom,
		Page:   printmap.Page{WidthMM: vals[2], HeightMM: vals[3], DPI: dpi},
		Format: format,
	}, nil
}

func regionParams(r *http.Request) (z, x, y int, err error) {
	if z, err = intParam(r, "z"); err != nil {
		return
	}
	if x, err = intParam(r, "x"); err != nil {
		return
	}
	y, err = intParam(r, "y")
	return
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func intParam(r *http.Request, name string) (int, error) {
	raw := pathParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadParam, name, raw)
	}
	return n, nil
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := pathParam(r, name)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadParam, name, raw)
	}
	return f, nil
}

func writeKML(w http.ResponseWriter, r *http.Request, body []byte) {
	etag := keys.ETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", kml.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

func etagMatches(header, etag string) bool {
	for _, c := range strings.Split(header, ",") {
		c = strings.TrimPrefix(strings.TrimSpace(c), "W/")
		if c == "*" || c == etag {
			return true
		}
	}
	return false
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, mapsource.ErrUnknownMapSource):
		return http.StatusNotFound
	case errors.Is(err, ErrBadParam),
		errors.Is(err, geo.ErrProjectionRange),
		errors.Is(err, kml.ErrRegionOutOfRange),
		errors.Is(err, printmap.ErrUnsupportedFormat),
		errors.Is(err, printmap.ErrInvalidPage),
		errors.Is(err, printmap.ErrCanvasAllocation):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "err", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	s.logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	http.Error(w, err.Error(), status)
}
