package models_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/rnalens/rnalens/pkg/models"
)

func TestParsePlotKind(t *testing.T) {
	cases := []struct {
		in   string
		want models.PlotKind
	}{
		{"volcano", models.PlotVolcano},
		{"VOLCANO", models.PlotVolcano},
		{" ma-plot ", models.PlotMA},
		{"pathway-enrichment", models.PlotPathway},
		{"dot-plot", models.PlotDot},
		{"box-plot", models.PlotBox},
		{"boxplot", models.PlotBox},
		{"hist", models.PlotHistogram},
		{"pca", models.PlotPCA},
	}
	for _, tc := range cases {
		got, err := models.ParsePlotKind(tc.in)
		if err != nil {
			t.Errorf("ParsePlotKind(%q) error = %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePlotKind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParsePlotKind_Unknown(t *testing.T) {
	_, err := models.ParsePlotKind("pie")
	var upkErr *models.UnsupportedPlotKindError
	if !errors.As(err, &upkErr) {
		t.Fatalf("ParsePlotKind(pie) error = %v, want *UnsupportedPlotKindError", err)
	}
	msg := err.Error()
	for _, kind := range models.AllPlotKinds {
		if !strings.Contains(msg, string(kind)) {
			t.Errorf("error %q should list valid kind %q", msg, kind)
		}
	}
}

func TestDecodeOptions_IgnoresUnknownKeys(t *testing.T) {
	o := models.DecodeOptions(map[string]any{
		"title":                  "My Plot",
		"top_n":                  float64(12), // JSON numbers decode as float64
		"significance_threshold": 0.01,
		"fold_change_threshold":  2.0,
		"rank_by":                "score",
		"llm_hint":               "something the model made up",
		"zzz":                    42,
	})
	if o.Title != "My Plot" {
		t.Errorf("Title = %q, want My Plot", o.Title)
	}
	if o.TopN != 12 {
		t.Errorf("TopN = %d, want 12", o.TopN)
	}
	if o.SignificanceThreshold != 0.01 {
		t.Errorf("SignificanceThreshold = %v, want 0.01", o.SignificanceThreshold)
	}
	if o.FoldChangeThreshold != 2.0 {
		t.Errorf("FoldChangeThreshold = %v, want 2.0", o.FoldChangeThreshold)
	}
	if o.RankBy != models.RankByScore {
		t.Errorf("RankBy = %q, want score", o.RankBy)
	}
}

func TestPlotOptions_Normalized(t *testing.T) {
	o := models.PlotOptions{}.Normalized()
	if o.SignificanceThreshold != models.DefaultSignificanceThreshold {
		t.Errorf("SignificanceThreshold = %v, want %v", o.SignificanceThreshold, models.DefaultSignificanceThreshold)
	}
	if o.FoldChangeThreshold != models.DefaultFoldChangeThreshold {
		t.Errorf("FoldChangeThreshold = %v, want %v", o.FoldChangeThreshold, models.DefaultFoldChangeThreshold)
	}
	if o.RankBy != models.RankByPValue {
		t.Errorf("RankBy = %q, want pvalue", o.RankBy)
	}

	// Explicit values survive normalization.
	o = models.PlotOptions{SignificanceThreshold: 0.1}.Normalized()
	if o.SignificanceThreshold != 0.1 {
		t.Errorf("SignificanceThreshold = %v, want 0.1", o.SignificanceThreshold)
	}
}

func TestQueryResult_Preview(t *testing.T) {
	res := &models.QueryResult{
		Columns: []string{"gene", "log2fc"},
		Rows: []models.Row{
			{"gene": "A", "log2fc": 2.3},
			{"gene": "B", "log2fc": nil},
		},
		RowCount: 2,
	}
	out := res.Preview(20)
	if !strings.Contains(out, "gene | log2fc") {
		t.Errorf("Preview missing header: %q", out)
	}
	if !strings.Contains(out, "A | 2.3") {
		t.Errorf("Preview missing first row: %q", out)
	}
	if !strings.Contains(out, "2 rows") {
		t.Errorf("Preview missing row count: %q", out)
	}
}

func TestSchema_HasTable(t *testing.T) {
	s := models.Schema{"de_results": {{Name: "gene", Type: "TEXT"}}}
	if !s.HasTable("de_results") || !s.HasTable("DE_RESULTS") {
		t.Error("HasTable should match case-insensitively")
	}
	if s.HasTable("samples") {
		t.Error("HasTable(samples) = true, want false")
	}
}

func TestSchema_Describe(t *testing.T) {
	s := models.Schema{"de_results": {{Name: "gene", Type: "TEXT"}, {Name: "padj", Type: "REAL"}}}
	out := s.Describe()
	for _, want := range []string{"Table: de_results", "gene (TEXT)", "padj (REAL)", "SELECT * FROM de_results LIMIT 5;"} {
		if !strings.Contains(out, want) {
			t.Errorf("Describe() missing %q:\n%s", want, out)
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err           error
		kind          string
		environmental bool
	}{
		{&models.ConnectionError{Path: "x.db", Err: errors.New("no such file")}, "connection_error", true},
		{&models.QueryError{Reason: "forbidden keyword DROP"}, "query_error", false},
		{&models.NoDataError{}, "no_data", false},
		{&models.UnsupportedPlotKindError{Kind: "pie", Valid: models.AllPlotKinds}, "unsupported_plot_kind", false},
		{&models.MissingColumnsError{Kind: models.PlotVolcano, Columns: []string{"log2fc"}}, "missing_columns", false},
		{&models.RenderIOError{Path: "/plots/x.html", Err: errors.New("disk full")}, "render_io_error", true},
		{&models.TimeoutError{Op: "query"}, "timeout", true},
	}
	for _, tc := range cases {
		if got := models.ErrorKind(tc.err); got != tc.kind {
			t.Errorf("ErrorKind(%T) = %q, want %q", tc.err, got, tc.kind)
		}
		if got := models.Environmental(tc.err); got != tc.environmental {
			t.Errorf("Environmental(%T) = %v, want %v", tc.err, got, tc.environmental)
		}
	}
}
