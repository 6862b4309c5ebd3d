// Package library merges the media info tables of every Plex section of one
// kind into a single sortable, pageable view.
package library

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/janitarr/janitarr/internal/tautulli"
)

// Section kinds the combined view supports.
const (
	KindMovie  = "movie"
	KindShow   = "show"
	KindArtist = "artist"
)

const minFetchPerSection = 50

var allowedOrderColumns = map[string]bool{
	"sort_title":   true,
	"year":         true,
	"added_at":     true,
	"last_played":  true,
	"play_count":   true,
	"file_size":    true,
	"library_name": true,
}

// Columns sorted numerically. Tautulli reports these as numbers or numeric
// strings depending on version.
var numericOrderColumns = map[string]bool{
	"last_played": true,
	"added_at":    true,
	"play_count":  true,
	"file_size":   true,
}

// Query selects and orders one page of the combined view.
type Query struct {
	Kind                  string
	Length                int
	Start                 int
	Search                string
	LibraryName           string
	OrderColumn           string
	OrderDir              string
	ForceCalculatingAlert bool
}

// Page is one page of merged library items. Items keep the upstream schema
// untouched apart from the added library_name and section_id tags.
type Page struct {
	Data            []map[string]any `json:"data"`
	RecordsFiltered int              `json:"recordsFiltered"`
	RecordsTotal    int              `json:"recordsTotal"`
	SectionType     string           `json:"section_type"`
	Libraries       []string         `json:"libraries,omitempty"`
	Calculating     bool             `json:"tautulli_calculating_file_sizes"`
}

// ValidKind reports whether kind names a supported section type.
func ValidKind(kind string) bool {
	return kind == KindMovie || kind == KindShow || kind == KindArtist
}

// Service aggregates per-section media info into combined pages.
type Service struct {
	tautulli *tautulli.Client
	logger   zerolog.Logger
}

// NewService creates a new library aggregation service.
func NewService(client *tautulli.Client, logger zerolog.Logger) *Service {
	return &Service{
		tautulli: client,
		logger:   logger.With().Str("component", "library").Logger(),
	}
}

// Sections returns all Tautulli library sections.
func (s *Service) Sections(ctx context.Context) ([]tautulli.Library, error) {
	return s.tautulli.Libraries(ctx)
}

// Combined fetches every section of q.Kind, merges the items, sorts the
// merged list and slices out the requested page. A section that fails to
// respond is skipped so one sick library cannot blank the whole view.
func (s *Service) Combined(ctx context.Context, q Query) (*Page, error) {
	if q.Length <= 0 {
		q.Length = 50
	}
	if q.Start < 0 {
		q.Start = 0
	}
	if !allowedOrderColumns[q.OrderColumn] {
		q.OrderColumn = "last_played"
	}
	if q.OrderDir != "asc" && q.OrderDir != "desc" {
		q.OrderDir = "asc"
	}

	libs, err := s.tautulli.Libraries(ctx)
	if err != nil {
		return nil, err
	}
	var sections []tautulli.Library
	for _, lib := range libs {
		if strings.ToLower(lib.SectionType) == q.Kind {
			sections = append(sections, lib)
		}
	}
	if len(sections) == 0 {
		return &Page{
			Data:        []map[string]any{},
			SectionType: q.Kind,
			Calculating: q.ForceCalculatingAlert,
		}, nil
	}

	// Each section is over-fetched so that the merged list still covers the
	// requested page after sorting across sections.
	fetchPerSection := q.Length + q.Start
	if fetchPerSection < minFetchPerSection {
		fetchPerSection = minFetchPerSection
	}

	var items []map[string]any
	calculating := false
	for _, lib := range sections {
		sectionID := lib.SectionID.String()
		sectionName := strings.TrimSpace(lib.SectionName)
		if sectionName == "" {
			sectionName = "—"
		}

		env, err := s.tautulli.LibraryMediaInfo(ctx, tautulli.MediaInfoParams{
			SectionID:   sectionID,
			Length:      fetchPerSection,
			Start:       0,
			Search:      q.Search,
			OrderColumn: q.OrderColumn,
			OrderDir:    q.OrderDir,
		})
		if err != nil {
			if tautulli.ErrorIndicatesCalculating(err) {
				calculating = true
			}
			s.logger.Warn().Err(err).Str("section_id", sectionID).Msg("Skipping unreachable section")
			continue
		}
		if env.IndicatesCalculating() {
			calculating = true
		}
		if env.Result != "success" {
			continue
		}
		for _, item := range env.Data.Items {
			tagged := make(map[string]any, len(item)+2)
			for k, v := range item {
				tagged[k] = v
			}
			tagged["library_name"] = sectionName
			tagged["section_id"] = sectionID
			items = append(items, tagged)
		}
	}

	if q.LibraryName != "" {
		want := strings.ToLower(strings.TrimSpace(q.LibraryName))
		filtered := items[:0]
		for _, item := range items {
			name, _ := item["library_name"].(string)
			if strings.ToLower(strings.TrimSpace(name)) == want {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	sortItems(items, q.OrderColumn, q.OrderDir == "desc")

	total := len(items)
	page := paginate(items, q.Start, q.Length)
	if q.Kind == KindShow {
		for _, item := range page {
			normalizeShowFileSize(item)
		}
	}

	names := make([]string, 0, len(sections))
	for _, lib := range sections {
		names = append(names, lib.SectionName)
	}

	return &Page{
		Data:            page,
		RecordsFiltered: total,
		RecordsTotal:    total,
		SectionType:     q.Kind,
		Libraries:       names,
		Calculating:     calculating || q.ForceCalculatingAlert,
	}, nil
}

func paginate(items []map[string]any, start, length int) []map[string]any {
	if start >= len(items) {
		return []map[string]any{}
	}
	end := start + length
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// sortKey splits a cell into a sort group and a comparable value. Numeric
// columns sort in group 0; everything unconvertible falls into the string
// group so mixed payloads never panic the comparison.
type sortKey struct {
	group int
	num   int64
	str   string
}

func keyFor(item map[string]any, column string) sortKey {
	val := item[column]
	if column == "library_name" {
		return sortKey{group: 1, str: strings.ToLower(strings.TrimSpace(toString(val)))}
	}
	if val == nil || val == "" {
		if numericOrderColumns[column] {
			return sortKey{group: 0}
		}
		return sortKey{group: 1}
	}
	if numericOrderColumns[column] {
		if n, ok := toInt64(val); ok {
			return sortKey{group: 0, num: n}
		}
		return sortKey{group: 1, str: toString(val)}
	}
	return sortKey{group: 1, str: strings.ToLower(toString(val))}
}

func sortItems(items []map[string]any, column string, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := keyFor(items[i], column), keyFor(items[j], column)
		if desc {
			return b.less(a)
		}
		return a.less(b)
	})
}

func (k sortKey) less(other sortKey) bool {
	if k.group != other.group {
		return k.group < other.group
	}
	if k.group == 0 {
		return k.num < other.num
	}
	return k.str < other.str
}

// normalizeShowFileSize backfills file_size for show rows, where Tautulli
// reports the aggregate under total_file_size or related keys instead.
func normalizeShowFileSize(item map[string]any) {
	fs, fsOK := toInt64(item["file_size"])
	if (!fsOK || fs == 0) && item["total_file_size"] != nil {
		item["file_size"] = item["total_file_size"]
	}
	if fs, _ := toInt64(item["file_size"]); fs != 0 {
		return
	}
	for _, key := range []string{"total_file_size", "size", "total_size"} {
		if n, ok := toInt64(item[key]); ok && n > 0 {
			item["file_size"] = n
			return
		}
	}
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}
