// Package mediaids extracts canonical external identifiers (TMDB, TVDB,
// IMDB, MusicBrainz) from Tautulli/Plex metadata of arbitrary shape.
package mediaids

import (
	"encoding/json"
	"strconv"
	"strings"
)

// IDSet holds the external identifiers for one media item. An empty string
// means the identifier is unresolved.
type IDSet struct {
	TMDB string
	TVDB string
	IMDB string
	MBID string
}

// Empty reports whether no identifier at all was resolved.
func (s IDSet) Empty() bool {
	return s.TMDB == "" && s.TVDB == "" && s.IMDB == "" && s.MBID == ""
}

// MergedWith returns s with any unresolved identifiers filled in from
// fallback. Values already present in s are never overwritten.
func (s IDSet) MergedWith(fallback IDSet) IDSet {
	if s.TMDB == "" {
		s.TMDB = fallback.TMDB
	}
	if s.TVDB == "" {
		s.TVDB = fallback.TVDB
	}
	if s.IMDB == "" {
		s.IMDB = fallback.IMDB
	}
	if s.MBID == "" {
		s.MBID = fallback.MBID
	}
	return s
}

// MarshalJSON emits the four identifiers keyed tmdb/tvdb/imdb/mbid, with
// null for anything unresolved.
func (s IDSet) MarshalJSON() ([]byte, error) {
	out := make(map[string]*string, 4)
	for key, val := range map[string]string{
		"tmdb": s.TMDB,
		"tvdb": s.TVDB,
		"imdb": s.IMDB,
		"mbid": s.MBID,
	} {
		if val == "" {
			out[key] = nil
		} else {
			v := val
			out[key] = &v
		}
	}
	return json.Marshal(out)
}

// guidPrefixes maps recognized guid URI prefixes to the identifier they
// carry. Legacy Plex agent guids (com.plexapp.agents.themoviedb://...) match
// because the scan looks for the prefix anywhere in the string.
var guidPrefixes = []struct {
	prefix string
	field  func(*IDSet) *string
}{
	{"themoviedb://", func(s *IDSet) *string { return &s.TMDB }},
	{"tmdb://", func(s *IDSet) *string { return &s.TMDB }},
	{"thetvdb://", func(s *IDSet) *string { return &s.TVDB }},
	{"tvdb://", func(s *IDSet) *string { return &s.TVDB }},
	{"imdb://", func(s *IDSet) *string { return &s.IMDB }},
	{"mbid://", func(s *IDSet) *string { return &s.MBID }},
}

// FromGUID extracts identifiers from a single guid string, e.g.
// "com.plexapp.agents.thetvdb://121361/6/1?lang=en" yields TVDB "121361".
func FromGUID(guid string) IDSet {
	var ids IDSet
	fillFromGUIDString(guid, &ids)
	return ids
}

// fillFromGUIDString scans one string for recognized guid prefixes and fills
// any still-unresolved identifiers in ids. The id value is the text after the
// prefix, truncated at the first "?" or "/" (query strings and season/episode
// path segments are discarded).
func fillFromGUIDString(s string, ids *IDSet) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	for _, p := range guidPrefixes {
		target := p.field(ids)
		if *target != "" {
			continue
		}
		idx := strings.Index(s, p.prefix)
		if idx < 0 {
			continue
		}
		val := s[idx+len(p.prefix):]
		if cut := strings.IndexAny(val, "?/"); cut >= 0 {
			val = val[:cut]
		}
		if val != "" {
			*target = val
		}
	}
}

// Extract pulls external identifiers out of a decoded metadata structure.
// The input is whatever shape the upstream returned (object, array, string,
// scalar); unknown shapes degrade to a recursive guid scan. It never panics
// and always returns a set, possibly fully unresolved.
func Extract(metadata any) IDSet {
	var ids IDSet

	m, ok := metadata.(map[string]any)
	if !ok {
		deepScan(metadata, &ids)
		return ids
	}

	// Step 1: the guids list (strings, or objects with an "id" field).
	if guids, ok := m["guids"].([]any); ok {
		for _, g := range guids {
			switch v := g.(type) {
			case string:
				fillFromGUIDString(v, &ids)
			case map[string]any:
				if id, ok := v["id"].(string); ok {
					fillFromGUIDString(id, &ids)
				}
			}
		}
	}

	// Step 2: legacy single guid fields.
	for _, key := range []string{"guid", "grandparent_guid"} {
		if g, ok := m[key].(string); ok {
			fillFromGUIDString(g, &ids)
		}
	}

	// Step 3: direct typed fields.
	fillDirect(&ids.TMDB, m, "tmdb_id", "themoviedb_id")
	fillDirect(&ids.TVDB, m, "tvdb_id", "thetvdb_id")
	fillDirect(&ids.IMDB, m, "imdb_id")
	fillDirect(&ids.MBID, m, "mbid", "musicbrainz_id")

	// Step 4: last resort, scan every string anywhere in the structure.
	deepScan(m, &ids)

	return ids
}

// fillDirect coerces the first non-empty of the named fields to a string and
// uses it if the target is still unresolved.
func fillDirect(target *string, m map[string]any, keys ...string) {
	if *target != "" {
		return
	}
	for _, key := range keys {
		if s := coerceString(m[key]); s != "" {
			*target = s
			return
		}
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		// JSON numbers decode as float64; ids are integral.
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// deepScan walks nested objects and arrays, applying the guid prefix scan to
// every string found. Tolerates unknown response shapes without per-field
// schema maintenance.
func deepScan(v any, ids *IDSet) {
	switch val := v.(type) {
	case string:
		fillFromGUIDString(val, ids)
	case map[string]any:
		for _, child := range val {
			deepScan(child, ids)
		}
	case []any:
		for _, child := range val {
			deepScan(child, ids)
		}
	}
}
