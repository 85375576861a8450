package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/rnalens/rnalens/pkg/models"
)

// Point colors for the significance classes.
const (
	colorUp      = "#d62728"
	colorDown    = "#1f77b4"
	colorNeutral = "#9e9e9e"
)

// themes maps recognized color scheme names to go-echarts themes.
// Unrecognized names fall back to the default theme rather than erroring,
// matching the "unknown options are ignored" policy.
var themes = map[string]string{
	"westeros":    "westeros",
	"walden":      "walden",
	"vintage":     "vintage",
	"chalk":       "chalk",
	"essos":       "essos",
	"infographic": "infographic",
	"macarons":    "macarons",
	"roma":        "roma",
	"shine":       "shine",
	"wonderland":  "wonderland",
}

// baseOptions assembles the global chart options shared by every kind.
func baseOptions(title, subtitle string, o models.PlotOptions) []charts.GlobalOpts {
	init := opts.Initialization{PageTitle: title, Width: "900px", Height: "600px"}
	if theme, ok := themes[strings.ToLower(o.ColorScheme)]; ok {
		init.Theme = theme
	}
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	}
}

// ── Volcano ──────────────────────────────────────────────────

// volcanoClasses are the three significance series of a volcano chart.
type volcanoClasses struct {
	up, down, neutral []opts.ScatterData
}

func (v volcanoClasses) total() int {
	return len(v.up) + len(v.down) + len(v.neutral)
}

// classifyVolcano splits rows into significant-up, significant-down and
// not-significant by the two thresholds. x is the log2 fold change,
// y is -log10 of the adjusted p-value. Rows with null values in either
// column are skipped.
func classifyVolcano(res *models.QueryResult, fcCol, padjCol, geneCol string, o models.PlotOptions) volcanoClasses {
	var cls volcanoClasses
	for _, row := range res.Rows {
		fc, okFC := row.Float(fcCol)
		padj, okP := row.Float(padjCol)
		if !okFC || !okP {
			continue
		}
		d := opts.ScatterData{
			Value:      []interface{}{fc, negLog10(padj)},
			SymbolSize: 8,
		}
		if geneCol != "" {
			d.Name = row.Text(geneCol)
		}
		switch {
		case padj < o.SignificanceThreshold && fc >= o.FoldChangeThreshold:
			cls.up = append(cls.up, d)
		case padj < o.SignificanceThreshold && fc <= -o.FoldChangeThreshold:
			cls.down = append(cls.down, d)
		default:
			cls.neutral = append(cls.neutral, d)
		}
	}
	return cls
}

func buildVolcano(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	cols, err := resolveAll(models.PlotVolcano, res, roleLog2FC, rolePadj)
	if err != nil {
		return nil, 0, err
	}
	fcCol, padjCol := cols[0], cols[1]
	geneCol, _ := resolve(res, roleGene)

	cls := classifyVolcano(res, fcCol, padjCol, geneCol, o)

	if title == "" {
		title = "Volcano plot"
	}
	subtitle := fmt.Sprintf("padj < %g, |log2FC| ≥ %g", o.SignificanceThreshold, o.FoldChangeThreshold)

	sc := charts.NewScatter()
	sc.SetGlobalOptions(append(baseOptions(title, subtitle, o),
		charts.WithXAxisOpts(opts.XAxis{Name: "log2 fold change", Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "-log10(padj)", Type: "value", Scale: opts.Bool(true)}),
	)...)
	sc.AddSeries("significant up", cls.up, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorUp}))
	sc.AddSeries("significant down", cls.down, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorDown}))
	sc.AddSeries("not significant", cls.neutral, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorNeutral}))
	return sc, cls.total(), nil
}

// ── MA plot ──────────────────────────────────────────────────

func buildMA(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	cols, err := resolveAll(models.PlotMA, res, roleBaseMean, roleLog2FC)
	if err != nil {
		return nil, 0, err
	}
	meanCol, fcCol := cols[0], cols[1]
	padjCol, hasPadj := resolve(res, rolePadj)
	geneCol, _ := resolve(res, roleGene)

	var sig, rest []opts.ScatterData
	for _, row := range res.Rows {
		mean, okM := row.Float(meanCol)
		fc, okFC := row.Float(fcCol)
		if !okM || !okFC {
			continue
		}
		d := opts.ScatterData{
			// x is mean expression on a log scale
			Value:      []interface{}{math.Log10(math.Max(mean, 1e-9)), fc},
			SymbolSize: 8,
		}
		if geneCol != "" {
			d.Name = row.Text(geneCol)
		}
		if padj, ok := row.Float(padjCol); hasPadj && ok && padj < o.SignificanceThreshold {
			sig = append(sig, d)
		} else {
			rest = append(rest, d)
		}
	}

	if title == "" {
		title = "MA plot"
	}
	sc := charts.NewScatter()
	sc.SetGlobalOptions(append(baseOptions(title, "", o),
		charts.WithXAxisOpts(opts.XAxis{Name: "log10 mean expression", Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "log2 fold change", Type: "value", Scale: opts.Bool(true)}),
	)...)
	if hasPadj {
		sc.AddSeries("significant", sig, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorUp}))
		sc.AddSeries("not significant", rest, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorNeutral}))
	} else {
		sc.AddSeries("genes", rest, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorDown}))
	}
	return sc, len(sig) + len(rest), nil
}

// ── Pathway enrichment ───────────────────────────────────────

// pathwayEntry is one ranked pathway row.
type pathwayEntry struct {
	name   string
	pvalue float64
	score  float64
	genes  float64
	hasP   bool
	hasS   bool
	hasG   bool
}

// rankPathways resolves, sorts, and caps pathway rows. Ranking is
// ascending p-value by default or descending score when o.RankBy is
// RankByScore; ties keep row order (stable sort) so output stays
// deterministic.
func rankPathways(kind models.PlotKind, res *models.QueryResult, o models.PlotOptions) ([]pathwayEntry, error) {
	cols, err := resolveAll(kind, res, rolePathway)
	if err != nil {
		return nil, err
	}
	nameCol := cols[0]

	pCol, hasP := resolve(res, rolePValue)
	sCol, hasS := resolve(res, roleScore)
	gCol, hasG := resolve(res, roleGeneCount)

	if o.RankBy == models.RankByScore && !hasS {
		return nil, &models.MissingColumnsError{Kind: kind, Columns: []string{roleScore.String()}}
	}
	if o.RankBy == models.RankByPValue && !hasP {
		return nil, &models.MissingColumnsError{Kind: kind, Columns: []string{rolePValue.String()}}
	}

	var entries []pathwayEntry
	for _, row := range res.Rows {
		e := pathwayEntry{name: row.Text(nameCol)}
		if hasP {
			e.pvalue, e.hasP = row.Float(pCol)
		}
		if hasS {
			e.score, e.hasS = row.Float(sCol)
		}
		if hasG {
			e.genes, e.hasG = row.Float(gCol)
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if o.RankBy == models.RankByScore {
			return entries[i].score > entries[j].score
		}
		return entries[i].pvalue < entries[j].pvalue
	})

	topN := o.TopN
	if topN <= 0 {
		topN = 15
	}
	if len(entries) > topN {
		entries = entries[:topN]
	}
	return entries, nil
}

func buildPathway(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	entries, err := rankPathways(models.PlotPathway, res, o)
	if err != nil {
		return nil, 0, err
	}

	// Reverse so the most significant pathway ends up at the top of
	// the horizontal bar chart.
	names := make([]string, len(entries))
	bars := make([]opts.BarData, len(entries))
	axisName := "-log10(p-value)"
	if o.RankBy == models.RankByScore {
		axisName = "enrichment score"
	}
	for i, e := range entries {
		j := len(entries) - 1 - i
		names[j] = e.name
		v := negLog10(e.pvalue)
		if o.RankBy == models.RankByScore {
			v = e.score
		}
		bars[j] = opts.BarData{Value: v}
	}

	if title == "" {
		title = "Pathway enrichment"
	}
	subtitle := fmt.Sprintf("top %d by %s", len(entries), o.RankBy)

	bar := charts.NewBar()
	bar.SetGlobalOptions(append(baseOptions(title, subtitle, o),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: axisName, Type: "value"}),
	)...)
	bar.SetXAxis(names).AddSeries(axisName, bars,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorDown}))
	bar.XYReversal()
	return bar, len(entries), nil
}

// ── Dot plot ─────────────────────────────────────────────────

func buildDot(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	entries, err := rankPathways(models.PlotDot, res, o)
	if err != nil {
		return nil, 0, err
	}

	// Symbol size encodes gene count, scaled into [8, 28].
	var maxGenes float64
	for _, e := range entries {
		if e.hasG && e.genes > maxGenes {
			maxGenes = e.genes
		}
	}

	names := make([]string, len(entries))
	data := make([]opts.ScatterData, len(entries))
	axisName := "-log10(p-value)"
	if o.RankBy == models.RankByScore {
		axisName = "enrichment score"
	}
	for i, e := range entries {
		j := len(entries) - 1 - i
		names[j] = e.name
		x := negLog10(e.pvalue)
		if o.RankBy == models.RankByScore {
			x = e.score
		}
		size := 12
		if e.hasG && maxGenes > 0 {
			size = 8 + int(20*e.genes/maxGenes)
		}
		data[j] = opts.ScatterData{
			Name:       e.name,
			Value:      []interface{}{x, e.name},
			SymbolSize: size,
		}
	}

	if title == "" {
		title = "Enrichment dot plot"
	}
	sc := charts.NewScatter()
	sc.SetGlobalOptions(append(baseOptions(title, fmt.Sprintf("top %d by %s", len(entries), o.RankBy), o),
		charts.WithXAxisOpts(opts.XAxis{Name: axisName, Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: names}),
	)...)
	sc.AddSeries("pathways", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorUp}))
	return sc, len(entries), nil
}

// ── Heatmap ──────────────────────────────────────────────────

func buildHeatmap(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	valueCols := numericColumns(res)
	if len(valueCols) == 0 {
		return nil, 0, &models.MissingColumnsError{
			Kind:    models.PlotHeatmap,
			Columns: []string{"numeric value columns"},
		}
	}

	// Row labels come from the first text column when present,
	// otherwise the row index. The matrix may be rectangular; no
	// symmetry is assumed.
	labelCol := ""
	if texts := textColumns(res); len(texts) > 0 {
		labelCol = texts[0]
	}

	rowLabels := make([]string, len(res.Rows))
	min, max := math.Inf(1), math.Inf(-1)
	var cells []opts.HeatMapData
	for y, row := range res.Rows {
		if labelCol != "" {
			rowLabels[y] = row.Text(labelCol)
		} else {
			rowLabels[y] = fmt.Sprintf("row %d", y+1)
		}
		for x, col := range valueCols {
			v, ok := row.Float(col)
			if !ok {
				continue
			}
			min = math.Min(min, v)
			max = math.Max(max, v)
			cells = append(cells, opts.HeatMapData{Value: [3]interface{}{x, y, v}})
		}
	}
	if len(cells) == 0 {
		return nil, 0, &models.MissingColumnsError{
			Kind:    models.PlotHeatmap,
			Columns: []string{"numeric value columns"},
		}
	}

	if title == "" {
		title = "Heatmap"
	}
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(append(baseOptions(title, "", o),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: valueCols}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: rowLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(min),
			Max:        float32(max),
			InRange:    &opts.VisualMapInRange{Color: []string{colorDown, "#f7f7f7", colorUp}},
		}),
	)...)
	hm.AddSeries("intensity", cells)
	return hm, len(cells), nil
}

// ── PCA / MDS ────────────────────────────────────────────────

func buildComponents(kind models.PlotKind, res *models.QueryResult, qc *models.QueryContext, o models.PlotOptions, title string) (renderable, int, error) {
	cols, err := resolveAll(kind, res, rolePC1, rolePC2)
	if err != nil {
		return nil, 0, err
	}
	xCol, yCol := cols[0], cols[1]
	sampleCol, _ := resolve(res, roleSample)

	var data []opts.ScatterData
	for _, row := range res.Rows {
		x, okX := row.Float(xCol)
		y, okY := row.Float(yCol)
		if !okX || !okY {
			continue
		}
		d := opts.ScatterData{Value: []interface{}{x, y}, SymbolSize: 12}
		if sampleCol != "" {
			d.Name = row.Text(sampleCol)
		}
		data = append(data, d)
	}

	// Axis labels include percent variance only when the query context
	// carried it; it is never fabricated.
	xName, yName := xCol, yCol
	if qc != nil && len(qc.VarianceExplained) >= 2 {
		xName = fmt.Sprintf("%s (%.1f%%)", xCol, qc.VarianceExplained[0])
		yName = fmt.Sprintf("%s (%.1f%%)", yCol, qc.VarianceExplained[1])
	}

	if title == "" {
		title = strings.ToUpper(string(kind))
	}
	sc := charts.NewScatter()
	sc.SetGlobalOptions(append(baseOptions(title, "", o),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: "value", Scale: opts.Bool(true)}),
	)...)
	sc.AddSeries("samples", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorDown}))
	return sc, len(data), nil
}

// ── Scatter ──────────────────────────────────────────────────

func buildScatter(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	var xCol, yCol string
	var err error
	switch {
	case o.XColumn != "" && o.YColumn != "":
		if xCol, err = requireNumeric(models.PlotScatter, res, o.XColumn, "x column"); err != nil {
			return nil, 0, err
		}
		if yCol, err = requireNumeric(models.PlotScatter, res, o.YColumn, "y column"); err != nil {
			return nil, 0, err
		}
	default:
		numeric := numericColumns(res)
		if len(numeric) < 2 {
			return nil, 0, &models.MissingColumnsError{
				Kind:    models.PlotScatter,
				Columns: []string{"two numeric columns (x and y)"},
			}
		}
		xCol, yCol = numeric[0], numeric[1]
	}

	labelCol := ""
	if texts := textColumns(res); len(texts) > 0 {
		labelCol = texts[0]
	}

	var data []opts.ScatterData
	for _, row := range res.Rows {
		x, okX := row.Float(xCol)
		y, okY := row.Float(yCol)
		if !okX || !okY {
			continue
		}
		d := opts.ScatterData{Value: []interface{}{x, y}, SymbolSize: 8}
		if labelCol != "" {
			d.Name = row.Text(labelCol)
		}
		data = append(data, d)
	}

	if title == "" {
		title = fmt.Sprintf("%s vs %s", yCol, xCol)
	}
	sc := charts.NewScatter()
	sc.SetGlobalOptions(append(baseOptions(title, "", o),
		charts.WithXAxisOpts(opts.XAxis{Name: xCol, Type: "value", Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: yCol, Type: "value", Scale: opts.Bool(true)}),
	)...)
	sc.AddSeries("points", data, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorDown}))
	return sc, len(data), nil
}

// ── Histogram ────────────────────────────────────────────────

func buildHistogram(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	col, err := pickNumericColumn(models.PlotHistogram, res, o.XColumn)
	if err != nil {
		return nil, 0, err
	}

	values := columnValues(res, col)
	if len(values) == 0 {
		return nil, 0, &models.MissingColumnsError{
			Kind:    models.PlotHistogram,
			Columns: []string{"numeric value column (" + col + " has no numeric values)"},
		}
	}

	labels, counts := bin(values, o.Bins)
	bars := make([]opts.BarData, len(counts))
	for i, c := range counts {
		bars[i] = opts.BarData{Value: c}
	}

	if title == "" {
		title = "Distribution of " + col
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(baseOptions(title, fmt.Sprintf("%d values, %d bins", len(values), len(counts)), o),
		charts.WithXAxisOpts(opts.XAxis{Name: col, Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count", Type: "value"}),
	)...)
	bar.SetXAxis(labels).AddSeries("count", bars,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorDown}))
	return bar, len(values), nil
}

// ── Box plot ─────────────────────────────────────────────────

func buildBox(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	valueCol, err := pickNumericColumn(models.PlotBox, res, o.YColumn)
	if err != nil {
		return nil, 0, err
	}

	// Group by the requested or first text column; without one, a
	// single box summarizes the whole column.
	groupCol := o.XColumn
	if groupCol == "" {
		if texts := textColumns(res); len(texts) > 0 {
			groupCol = texts[0]
		}
	} else if _, ok := res.Column(groupCol); !ok {
		return nil, 0, &models.MissingColumnsError{
			Kind:    models.PlotBox,
			Columns: []string{"group column (" + groupCol + ")"},
		}
	}

	// Groups keep first-appearance order for deterministic output.
	groups := make(map[string][]float64)
	var order []string
	total := 0
	for _, row := range res.Rows {
		v, ok := row.Float(valueCol)
		if !ok {
			continue
		}
		g := "all"
		if groupCol != "" {
			g = row.Text(groupCol)
		}
		if _, seen := groups[g]; !seen {
			order = append(order, g)
		}
		groups[g] = append(groups[g], v)
		total++
	}
	if total == 0 {
		return nil, 0, &models.MissingColumnsError{
			Kind:    models.PlotBox,
			Columns: []string{"numeric value column (" + valueCol + " has no numeric values)"},
		}
	}

	data := make([]opts.BoxPlotData, len(order))
	for i, g := range order {
		data[i] = opts.BoxPlotData{Name: g, Value: fiveNumberSummary(groups[g])}
	}

	if title == "" {
		title = valueCol
		if groupCol != "" {
			title = valueCol + " by " + groupCol
		}
	}
	bp := charts.NewBoxPlot()
	bp.SetGlobalOptions(append(baseOptions(title, "", o),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: valueCol, Type: "value", Scale: opts.Bool(true)}),
	)...)
	bp.SetXAxis(order).AddSeries(valueCol, data)
	return bp, total, nil
}

// ── Bar plot ─────────────────────────────────────────────────

func buildBar(res *models.QueryResult, o models.PlotOptions, title string) (renderable, int, error) {
	valueCol, err := pickNumericColumn(models.PlotBar, res, o.YColumn)
	if err != nil {
		return nil, 0, err
	}

	catCol := o.XColumn
	if catCol == "" {
		if texts := textColumns(res); len(texts) > 0 {
			catCol = texts[0]
		}
	} else if _, ok := res.Column(catCol); !ok {
		return nil, 0, &models.MissingColumnsError{
			Kind:    models.PlotBar,
			Columns: []string{"category column (" + catCol + ")"},
		}
	}

	topN := o.TopN
	if topN <= 0 {
		topN = 20
	}

	var labels []string
	var bars []opts.BarData
	for i, row := range res.Rows {
		if len(bars) >= topN {
			break
		}
		v, ok := row.Float(valueCol)
		if !ok {
			continue
		}
		label := fmt.Sprintf("row %d", i+1)
		if catCol != "" {
			label = row.Text(catCol)
		}
		labels = append(labels, label)
		bars = append(bars, opts.BarData{Value: v})
	}
	if len(bars) == 0 {
		return nil, 0, &models.MissingColumnsError{
			Kind:    models.PlotBar,
			Columns: []string{"numeric value column (" + valueCol + " has no numeric values)"},
		}
	}

	if title == "" {
		title = valueCol
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(append(baseOptions(title, "", o),
		charts.WithXAxisOpts(opts.XAxis{Name: catCol, Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: valueCol, Type: "value"}),
	)...)
	bar.SetXAxis(labels).AddSeries(valueCol, bars,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorDown}))
	return bar, len(bars), nil
}

// pickNumericColumn returns the requested column (validated numeric) or
// the first numeric column in the result.
func pickNumericColumn(kind models.PlotKind, res *models.QueryResult, requested string) (string, error) {
	if requested != "" {
		return requireNumeric(kind, res, requested, "value column")
	}
	numeric := numericColumns(res)
	if len(numeric) == 0 {
		return "", &models.MissingColumnsError{Kind: kind, Columns: []string{"numeric value column"}}
	}
	return numeric[0], nil
}
