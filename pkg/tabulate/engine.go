// Package tabulate turns a raw finding list plus filter/search/sort/page
// state into exactly what a dashboard table should display. Every operation
// is a pure function over in-memory slices: the engine never mutates its
// input and recomputes the full pipeline on each call, so it is safe to
// invoke on every request.
package tabulate

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sentra-security/sentra-engine/pkg/models"
)

// Direction selects sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// FilterSpec maps a field name to a single equality constraint.
// An empty value means "no constraint for this field", not "match empty".
type FilterSpec map[string]string

// SortSpec names the field to order by and the direction.
type SortSpec struct {
	Key       string
	Direction Direction
}

// DefaultSort is applied when a request names no sort key: most severe first.
var DefaultSort = SortSpec{Key: FieldRiskLevel, Direction: Descending}

// PageSpec selects a 1-based page of fixed size.
type PageSpec struct {
	Number int
	Size   int
}

// Page is one slice of a paginated list.
type Page struct {
	Slice      []*models.Finding
	TotalPages int
}

// Query bundles the full table state for the composite View pipeline.
type Query struct {
	Filters FilterSpec
	Search  string
	Sort    SortSpec
	Page    PageSpec
}

// View is everything a table UI needs for one render: the visible slice,
// pagination metadata, and counts that let the host distinguish "no
// findings at all" (Total == 0) from "none match the current filters"
// (Total > 0, Filtered == 0).
type View struct {
	Slice      []*models.Finding   `json:"findings"`
	Total      int                 `json:"total"`
	Filtered   int                 `json:"filtered"`
	TotalPages int                 `json:"total_pages"`
	Distinct   map[string][]string `json:"distinct"`
}

// Engine applies the filter/search/sort/paginate pipeline for one table
// configuration. The same engine serves every findings table variant;
// tables differ only in which fields are filterable and searchable.
type Engine struct {
	schema       Schema
	filterFields []string
	searchFields []string
}

// NewEngine creates an engine over the given schema. filterable names the
// fields offered as dropdown filters; searchable names the fields matched
// by free-text search.
func NewEngine(schema Schema, filterable, searchable []string) *Engine {
	return &Engine{
		schema:       schema,
		filterFields: filterable,
		searchFields: searchable,
	}
}

// DistinctValues collects, per filterable field, the sorted set of values
// present in records. Used to populate filter dropdowns. Empty input
// yields empty sets.
func (e *Engine) DistinctValues(records []*models.Finding) map[string][]string {
	out := make(map[string][]string, len(e.filterFields))
	for _, field := range e.filterFields {
		acc, ok := e.schema[field]
		if !ok {
			out[field] = []string{}
			continue
		}
		seen := make(map[string]struct{})
		for _, rec := range records {
			if rec == nil {
				continue
			}
			if v, present := acc.String(rec); present {
				seen[v] = struct{}{}
			}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		out[field] = values
	}
	return out
}

// ApplyFilters keeps records that satisfy every non-empty constraint in
// spec with exact, case-sensitive string equality. Input order is
// preserved among survivors. A record missing a constrained field never
// matches.
func (e *Engine) ApplyFilters(records []*models.Finding, spec FilterSpec) []*models.Finding {
	out := make([]*models.Finding, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if e.matches(rec, spec) {
			out = append(out, rec)
		}
	}
	return out
}

func (e *Engine) matches(rec *models.Finding, spec FilterSpec) bool {
	for field, want := range spec {
		if want == "" {
			continue
		}
		acc, ok := e.schema[field]
		if !ok {
			return false
		}
		got, present := acc.String(rec)
		if !present || got != want {
			return false
		}
	}
	return true
}

// Search keeps records where at least one searchable field contains query
// as a case-insensitive substring. An empty query keeps everything.
func (e *Engine) Search(records []*models.Finding, query string) []*models.Finding {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}
	out := make([]*models.Finding, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for _, field := range e.searchFields {
			acc, ok := e.schema[field]
			if !ok {
				continue
			}
			v, present := acc.String(rec)
			if present && strings.Contains(strings.ToLower(v), query) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// ApplySort returns a new, stably sorted slice. Records that compare equal
// retain their relative input order, which keeps pagination deterministic.
//
// Comparison rules, in order:
//   - ordinal fields (risk level) compare by rank; unrecognized levels
//     rank lowest rather than becoming incomparable
//   - numeric fields compare numerically
//   - everything else compares as locale-aware strings
//
// A record missing the sort field compares lower than any record that has
// it; under Descending order such records therefore appear last.
func (e *Engine) ApplySort(records []*models.Finding, spec SortSpec) []*models.Finding {
	out := make([]*models.Finding, len(records))
	copy(out, records)

	acc, ok := e.schema[spec.Key]
	if !ok {
		return out
	}

	coll := collate.New(language.English)
	cmp := func(a, b *models.Finding) int {
		switch {
		case acc.Rank != nil:
			return acc.Rank(a) - acc.Rank(b)
		case acc.Number != nil:
			av, aok := acc.Number(a)
			bv, bok := acc.Number(b)
			if c, decided := missingFirst(aok, bok); decided {
				return c
			}
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		default:
			av, aok := acc.String(a)
			bv, bok := acc.String(b)
			if c, decided := missingFirst(aok, bok); decided {
				return c
			}
			return coll.CompareString(av, bv)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		c := cmp(out[i], out[j])
		if spec.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

// missingFirst orders records missing the sort field before records that
// have it. decided is false when both sides are present (or both absent).
func missingFirst(aok, bok bool) (c int, decided bool) {
	switch {
	case !aok && !bok:
		return 0, true
	case !aok:
		return -1, true
	case !bok:
		return 1, true
	default:
		return 0, false
	}
}

// Paginate slices out one 1-based page. Requesting a page beyond the end
// yields an empty slice; the engine never clamps the page number, so hosts
// must reset to page 1 whenever filters change. Zero records (or a
// non-positive page size) yield zero pages.
func (e *Engine) Paginate(records []*models.Finding, spec PageSpec) Page {
	if spec.Size <= 0 || len(records) == 0 {
		return Page{Slice: []*models.Finding{}, TotalPages: 0}
	}
	totalPages := int(math.Ceil(float64(len(records)) / float64(spec.Size)))
	if spec.Number < 1 || spec.Number > totalPages {
		return Page{Slice: []*models.Finding{}, TotalPages: totalPages}
	}
	start := (spec.Number - 1) * spec.Size
	end := start + spec.Size
	if end > len(records) {
		end = len(records)
	}
	return Page{Slice: records[start:end], TotalPages: totalPages}
}

// View runs the composite pipeline: filter, search, sort, paginate. A nil
// records slice is treated as empty input. The sort defaults to most
// severe risk first when the query names no key.
func (e *Engine) View(records []*models.Finding, q Query) View {
	if records == nil {
		records = []*models.Finding{}
	}

	filtered := e.ApplyFilters(records, q.Filters)
	filtered = e.Search(filtered, q.Search)

	sortSpec := q.Sort
	if sortSpec.Key == "" {
		sortSpec = DefaultSort
	}
	if sortSpec.Direction != Ascending && sortSpec.Direction != Descending {
		sortSpec.Direction = Descending
	}
	sorted := e.ApplySort(filtered, sortSpec)

	page := e.Paginate(sorted, q.Page)

	return View{
		Slice:      page.Slice,
		Total:      len(records),
		Filtered:   len(filtered),
		TotalPages: page.TotalPages,
		Distinct:   e.DistinctValues(records),
	}
}
