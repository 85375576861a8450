package render

import (
	"strings"

	"github.com/rnalens/rnalens/pkg/models"
)

// columnRole is one logical input a plot kind needs, with the column
// names accepted for it. Matching is case-insensitive over the fixed
// synonym list; a missing role is reported by name, never guessed from
// whatever numeric columns happen to be present.
type columnRole struct {
	desc     string
	synonyms []string
}

func (r columnRole) String() string {
	return r.desc + " (" + strings.Join(r.synonyms, ", ") + ")"
}

var (
	roleGene = columnRole{"gene label", []string{
		"gene", "gene_name", "gene_symbol", "symbol", "gene_id", "name",
	}}
	roleLog2FC = columnRole{"log2 fold change", []string{
		"log2fc", "log2foldchange", "log2_fold_change", "logfc", "lfc",
	}}
	rolePadj = columnRole{"adjusted p-value", []string{
		"padj", "p_adj", "adj_pval", "adj_p_val", "fdr", "qvalue", "q_value", "padjust",
	}}
	rolePValue = columnRole{"p-value", []string{
		"pvalue", "p_value", "pval", "padj", "p_adj", "fdr", "qvalue",
	}}
	roleBaseMean = columnRole{"mean expression", []string{
		"basemean", "base_mean", "mean_expression", "mean_expr", "avg_expression", "aveexpr",
	}}
	rolePathway = columnRole{"pathway name", []string{
		"pathway", "pathway_name", "term", "term_name", "gene_set", "description",
	}}
	roleGeneCount = columnRole{"gene count", []string{
		"gene_count", "set_size", "setsize", "n_genes", "count", "size",
	}}
	roleScore = columnRole{"enrichment score", []string{
		"score", "nes", "es", "enrichment_score",
	}}
	rolePC1 = columnRole{"first component", []string{
		"pc1", "pc_1", "dim1", "dim_1", "mds1", "component1", "v1",
	}}
	rolePC2 = columnRole{"second component", []string{
		"pc2", "pc_2", "dim2", "dim_2", "mds2", "component2", "v2",
	}}
	roleSample = columnRole{"sample label", []string{
		"sample", "sample_id", "sample_name", "id",
	}}
)

// resolve finds the result column matching a role, trying synonyms in
// order.
func resolve(res *models.QueryResult, role columnRole) (string, bool) {
	for _, syn := range role.synonyms {
		if col, ok := res.Column(syn); ok {
			return col, true
		}
	}
	return "", false
}

// resolveAll resolves every role or fails with one MissingColumnsError
// naming exactly the absent ones.
func resolveAll(kind models.PlotKind, res *models.QueryResult, roles ...columnRole) ([]string, error) {
	cols := make([]string, len(roles))
	var missing []string
	for i, role := range roles {
		col, ok := resolve(res, role)
		if !ok {
			missing = append(missing, role.String())
			continue
		}
		cols[i] = col
	}
	if len(missing) > 0 {
		return nil, &models.MissingColumnsError{Kind: kind, Columns: missing}
	}
	return cols, nil
}

// numericColumns returns result columns that hold at least one numeric
// value, in result order.
func numericColumns(res *models.QueryResult) []string {
	var out []string
	for _, col := range res.Columns {
		if columnIsNumeric(res, col) {
			out = append(out, col)
		}
	}
	return out
}

// textColumns returns result columns whose first non-null value is a
// string, in result order.
func textColumns(res *models.QueryResult) []string {
	var out []string
	for _, col := range res.Columns {
		for _, row := range res.Rows {
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			if _, isStr := v.(string); isStr {
				out = append(out, col)
			}
			break
		}
	}
	return out
}

// columnIsNumeric reports whether the column holds at least one numeric
// value.
func columnIsNumeric(res *models.QueryResult, col string) bool {
	for _, row := range res.Rows {
		if _, ok := row.Float(col); ok {
			return true
		}
	}
	return false
}

// requireNumeric validates a caller-requested column: it must exist and
// hold numeric values.
func requireNumeric(kind models.PlotKind, res *models.QueryResult, name, purpose string) (string, error) {
	col, ok := res.Column(name)
	if !ok {
		return "", &models.MissingColumnsError{Kind: kind, Columns: []string{purpose + " (" + name + ")"}}
	}
	if !columnIsNumeric(res, col) {
		return "", &models.MissingColumnsError{Kind: kind, Columns: []string{purpose + " (" + name + " is not numeric)"}}
	}
	return col, nil
}
