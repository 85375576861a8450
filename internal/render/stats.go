package render

import (
	"fmt"
	"math"
	"sort"

	"github.com/rnalens/rnalens/pkg/models"
)

// negLog10 maps a p-value to -log10(p), clamping zero and negative
// inputs so the chart never receives an infinity.
func negLog10(p float64) float64 {
	if p < 1e-300 {
		p = 1e-300
	}
	return -math.Log10(p)
}

// columnValues collects the numeric values of a column in row order.
func columnValues(res *models.QueryResult, col string) []float64 {
	var out []float64
	for _, row := range res.Rows {
		if v, ok := row.Float(col); ok {
			out = append(out, v)
		}
	}
	return out
}

// bin splits values into n equal-width bins and returns the bin labels
// and counts. A degenerate range (all values equal) collapses to one bin.
func bin(values []float64, n int) ([]string, []int) {
	if n <= 0 {
		n = models.DefaultHistogramBins
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []string{fmt.Sprintf("%.3g", lo)}, []int{len(values)}
	}

	width := (hi - lo) / float64(n)
	counts := make([]int, n)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= n { // v == hi lands in the last bin
			idx = n - 1
		}
		counts[idx]++
	}
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.3g", lo+(float64(i)+0.5)*width)
	}
	return labels, counts
}

// fiveNumberSummary returns [min, Q1, median, Q3, max], the value order
// echarts box plots expect. Quartiles use linear interpolation.
func fiveNumberSummary(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return []float64{
		sorted[0],
		quantile(sorted, 0.25),
		quantile(sorted, 0.5),
		quantile(sorted, 0.75),
		sorted[len(sorted)-1],
	}
}

// quantile computes the p-quantile of sorted values by linear
// interpolation between closest ranks.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
