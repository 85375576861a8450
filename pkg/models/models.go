// Package models defines the shared data model for the RNAlens analysis core:
// schema snapshots, query results, plot kinds, plot options, and artifacts.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ── Schema ───────────────────────────────────────────────────

// Column is one column of a database table, as declared in the schema.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is a read-only snapshot of the database layout: table name to
// ordered column list. It is never mutated, only replaced wholesale when
// the gateway re-reads the catalog.
type Schema map[string][]Column

// Tables returns the table names in sorted order.
func (s Schema) Tables() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTable reports whether the schema contains the table, matched
// case-insensitively (SQLite identifiers are case-insensitive).
func (s Schema) HasTable(name string) bool {
	for t := range s {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// Describe renders the schema as human-readable text with a sample query
// per table, for the conversational layer to feed to its model.
func (s Schema) Describe() string {
	var b strings.Builder
	b.WriteString("Available tables and their schemas:\n\n")
	for _, table := range s.Tables() {
		fmt.Fprintf(&b, "Table: %s\nColumns:\n", table)
		for _, col := range s[table] {
			fmt.Fprintf(&b, "  - %s (%s)\n", col.Name, col.Type)
		}
		fmt.Fprintf(&b, "Sample query: SELECT * FROM %s LIMIT 5;\n\n", table)
	}
	return b.String()
}

// ── Query Result ─────────────────────────────────────────────

// Row is one result row: column name to scalar value. Values are
// string, int64, float64, or nil.
type Row map[string]any

// QueryResult is the outcome of executing one read-only query.
// Immutable once produced; rows preserve the database's return order.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// Preview renders up to n rows as an aligned text table, for the
// conversational layer to echo back to the user.
func (r *QueryResult) Preview(n int) string {
	if n <= 0 {
		n = 20
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Query returned %d rows", r.RowCount)
	if r.Truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteString(". ")
	if r.RowCount > n {
		fmt.Fprintf(&b, "Showing first %d rows:\n", n)
	} else {
		b.WriteString("Here are all the results:\n")
	}
	header := strings.Join(r.Columns, " | ")
	b.WriteString("\n" + header + "\n")
	b.WriteString(strings.Repeat("-", len(header)) + "\n")
	for i, row := range r.Rows {
		if i >= n {
			break
		}
		cells := make([]string, len(r.Columns))
		for j, col := range r.Columns {
			if v := row[col]; v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		b.WriteString(strings.Join(cells, " | ") + "\n")
	}
	return b.String()
}

// Column returns the matching column name from the result, case-insensitive.
func (r *QueryResult) Column(name string) (string, bool) {
	for _, col := range r.Columns {
		if strings.EqualFold(col, name) {
			return col, true
		}
	}
	return "", false
}

// Float reads a row value as float64. The second return is false for
// nulls and non-numeric values.
func (row Row) Float(col string) (float64, bool) {
	switch v := row[col].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// Text reads a row value as its string form; nulls become "".
func (row Row) Text(col string) string {
	if v, ok := row[col]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// ── Query Context ────────────────────────────────────────────

// QueryContext describes the provenance of a QueryResult: which tables
// it came from, what filter was applied, and the analytic intent. The
// renderer uses it for titles and axis labels instead of re-deriving
// them from raw column names.
type QueryContext struct {
	Tables []string `json:"tables,omitempty"`
	Filter string   `json:"filter,omitempty"`
	Intent string   `json:"intent,omitempty"`

	// VarianceExplained holds per-component percent variance for
	// PCA/MDS results, when the query carried it. Axis labels omit
	// the percentage when absent; it is never fabricated.
	VarianceExplained []float64 `json:"variance_explained,omitempty"`
}

// Title derives a chart title from the context. Falls back to the
// source tables when no intent was recorded.
func (c *QueryContext) Title() string {
	if c == nil {
		return ""
	}
	if c.Intent != "" {
		return c.Intent
	}
	if len(c.Tables) > 0 {
		return strings.Join(c.Tables, ", ")
	}
	return ""
}

// ── Plot Kinds ───────────────────────────────────────────────

// PlotKind is the closed set of chart types the renderer supports.
type PlotKind string

const (
	PlotVolcano   PlotKind = "volcano"
	PlotMA        PlotKind = "ma"
	PlotPathway   PlotKind = "pathway"
	PlotDot       PlotKind = "dot"
	PlotHeatmap   PlotKind = "heatmap"
	PlotScatter   PlotKind = "scatter"
	PlotPCA       PlotKind = "pca"
	PlotMDS       PlotKind = "mds"
	PlotHistogram PlotKind = "histogram"
	PlotBox       PlotKind = "box"
	PlotBar       PlotKind = "bar"
)

// AllPlotKinds lists every supported kind, in a stable order used for
// error messages.
var AllPlotKinds = []PlotKind{
	PlotVolcano, PlotMA, PlotPathway, PlotDot, PlotHeatmap, PlotScatter,
	PlotPCA, PlotMDS, PlotHistogram, PlotBox, PlotBar,
}

// plotKindAliases maps common user-facing spellings onto canonical kinds.
var plotKindAliases = map[string]PlotKind{
	"ma-plot":            PlotMA,
	"maplot":             PlotMA,
	"pathway-enrichment": PlotPathway,
	"enrichment":         PlotPathway,
	"dot-plot":           PlotDot,
	"dotplot":            PlotDot,
	"box-plot":           PlotBox,
	"boxplot":            PlotBox,
	"bar-plot":           PlotBar,
	"barplot":            PlotBar,
	"hist":               PlotHistogram,
}

// ParsePlotKind resolves a user-supplied plot kind string. The error is
// an *UnsupportedPlotKindError naming the valid set.
func ParsePlotKind(s string) (PlotKind, error) {
	k := PlotKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPlotKinds {
		if k == known {
			return known, nil
		}
	}
	if alias, ok := plotKindAliases[string(k)]; ok {
		return alias, nil
	}
	return "", &UnsupportedPlotKindError{Kind: s, Valid: AllPlotKinds}
}

// ── Plot Options ─────────────────────────────────────────────

// PathwayRanking selects the ordering for pathway enrichment charts.
type PathwayRanking string

const (
	// RankByPValue orders pathways by ascending p-value (most
	// significant first). This is the default.
	RankByPValue PathwayRanking = "pvalue"
	// RankByScore orders pathways by descending enrichment score.
	RankByScore PathwayRanking = "score"
)

// PlotOptions is the recognized per-render configuration. Unknown keys
// supplied by callers are dropped during decode, not rejected, so the
// conversational layer can pass extra hints without breaking.
type PlotOptions struct {
	// Title overrides the auto-derived chart title.
	Title string
	// TopN caps displayed rows; 0 means the kind's default.
	TopN int
	// SignificanceThreshold colors points in volcano/MA charts. Default 0.05.
	SignificanceThreshold float64
	// FoldChangeThreshold is the |log2FC| cutoff for volcano charts. Default 1.0.
	FoldChangeThreshold float64
	// ColorScheme selects a palette name; empty means the default palette.
	ColorScheme string
	// XColumn / YColumn pick columns for the generic kinds
	// (scatter/histogram/box/bar). Empty means auto-select.
	XColumn string
	YColumn string
	// RankBy selects pathway ordering. Default RankByPValue.
	RankBy PathwayRanking
	// Bins is the histogram bin count; 0 means the default (30).
	Bins int
}

// Defaults applied when a field is at its zero value.
const (
	DefaultSignificanceThreshold = 0.05
	DefaultFoldChangeThreshold   = 1.0
	DefaultHistogramBins         = 30
)

// DecodeOptions builds PlotOptions from a loosely typed map (e.g. a JSON
// request body). Recognized keys are decoded, unknown keys are ignored.
func DecodeOptions(raw map[string]any) PlotOptions {
	var o PlotOptions
	for key, v := range raw {
		switch strings.ToLower(key) {
		case "title":
			o.Title, _ = v.(string)
		case "top_n", "topn":
			o.TopN = toInt(v)
		case "significance_threshold":
			o.SignificanceThreshold = toFloat(v)
		case "fold_change_threshold":
			o.FoldChangeThreshold = toFloat(v)
		case "color_scheme":
			o.ColorScheme, _ = v.(string)
		case "x_column", "x":
			o.XColumn, _ = v.(string)
		case "y_column", "y":
			o.YColumn, _ = v.(string)
		case "rank_by":
			if s, ok := v.(string); ok && PathwayRanking(s) == RankByScore {
				o.RankBy = RankByScore
			}
		case "bins":
			o.Bins = toInt(v)
		}
	}
	return o
}

// Normalized returns a copy with zero-valued fields replaced by defaults.
func (o PlotOptions) Normalized() PlotOptions {
	if o.SignificanceThreshold <= 0 {
		o.SignificanceThreshold = DefaultSignificanceThreshold
	}
	if o.FoldChangeThreshold <= 0 {
		o.FoldChangeThreshold = DefaultFoldChangeThreshold
	}
	if o.Bins <= 0 {
		o.Bins = DefaultHistogramBins
	}
	if o.RankBy == "" {
		o.RankBy = RankByPValue
	}
	return o
}

// toInt handles float64 from JSON decoding as well as native ints.
func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

// ── Plot Artifact ────────────────────────────────────────────

// PlotArtifact is the output of one render: a self-contained HTML chart
// on disk. Created fresh per request, never mutated after creation.
type PlotArtifact struct {
	Kind      PlotKind  `json:"kind"`
	Path      string    `json:"path"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}
