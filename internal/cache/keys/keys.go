// Package keys builds cache keys for rendered documents.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const prefix = "geos:doc"

// Doc identifies one rendered document. Origin is the public base URL the
// document's links point at; Zoom, X and Y are only set for regions.
type Doc struct {
	Origin         string
	Kind           string
	MapID          string
	LogTilesPerRow int
	Zoom           int
	X              int
	Y              int
}

// String renders a redis-safe key. The map id is sanitized for readability
// and disambiguated by a hash of the raw origin and id.
func (d Doc) String() string {
	const maxIDLen = 64
	id := sanitize(strings.TrimSpace(d.MapID))
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	sum := xxhash.Sum64String(d.Origin + "\x00" + d.MapID)

	switch d.Kind {
	case "region":
		return fmt.Sprintf("%s:%s:%s:l=%d:%d/%d/%d:h=%016x", prefix, d.Kind, id, d.LogTilesPerRow, d.Zoom, d.X, d.Y, sum)
	case "master":
		return fmt.Sprintf("%s:%s:l=%d:h=%016x", prefix, d.Kind, d.LogTilesPerRow, sum)
	default:
		return fmt.Sprintf("%s:%s:%s:l=%d:h=%016x", prefix, d.Kind, id, d.LogTilesPerRow, sum)
	}
}

// ETag is a strong entity tag derived from body.
func ETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

func sanitize(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// Any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
