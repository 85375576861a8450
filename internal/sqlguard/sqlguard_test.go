package sqlguard_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/rnalens/rnalens/internal/sqlguard"
	"github.com/rnalens/rnalens/pkg/models"
)

func testSchema() models.Schema {
	return models.Schema{
		"de_results": {
			{Name: "gene", Type: "TEXT"},
			{Name: "log2fc", Type: "REAL"},
			{Name: "padj", Type: "REAL"},
		},
		"samples": {
			{Name: "sample_id", Type: "TEXT"},
			{Name: "condition", Type: "TEXT"},
		},
	}
}

func TestCheck_AllowsReadOnlyQueries(t *testing.T) {
	schema := testSchema()

	queries := []string{
		"SELECT * FROM de_results",
		"select gene, log2fc from de_results where padj < 0.05 order by log2fc desc limit 10",
		"SELECT * FROM de_results;",
		"SELECT d.gene FROM de_results d JOIN samples s ON s.sample_id = d.gene",
		"WITH top_genes AS (SELECT * FROM de_results WHERE padj < 0.05) SELECT * FROM top_genes",
		"SELECT * FROM DE_RESULTS", // identifiers are case-insensitive
		"SELECT gene FROM de_results WHERE gene = 'DROP TABLE de_results'",
		"SELECT gene FROM de_results -- create nothing\nLIMIT 5",
	}
	for _, q := range queries {
		if err := sqlguard.Check(q, schema); err != nil {
			t.Errorf("Check(%q) = %v, want nil", q, err)
		}
	}
}

func TestCheck_RejectsWriteKeywords(t *testing.T) {
	schema := testSchema()

	queries := []string{
		"DROP TABLE de_results",
		"delete from de_results",
		"DeLeTe FROM de_results",
		"INSERT INTO de_results VALUES ('x', 1, 0.1)",
		"UPDATE de_results SET padj = 0",
		"CREATE TABLE evil (x)",
		"ALTER TABLE de_results ADD COLUMN x",
		"ATTACH DATABASE '/tmp/x.db' AS x",
		"PRAGMA writable_schema = 1",
		"VACUUM",
		"   \t\n drop\ntable de_results",
		"SELECT * FROM de_results; DROP TABLE de_results",
		"SELECT * FROM de_results WHERE padj < 0.05; DELETE FROM de_results",
		"SELECT gene FROM de_results UNION SELECT sql FROM sqlite_master; attach database 'x' as y",
	}
	for _, q := range queries {
		err := sqlguard.Check(q, schema)
		var qerr *models.QueryError
		if !errors.As(err, &qerr) {
			t.Errorf("Check(%q) = %v, want *models.QueryError", q, err)
		}
	}
}

func TestCheck_RejectsCommentObfuscatedWrites(t *testing.T) {
	// A block comment must not hide the statement verb.
	q := "/* harmless */ DROP TABLE de_results"
	var qerr *models.QueryError
	if err := sqlguard.Check(q, testSchema()); !errors.As(err, &qerr) {
		t.Fatalf("Check(%q) = %v, want *models.QueryError", q, err)
	}
	if !strings.Contains(qerr.Reason, "DROP") {
		t.Errorf("Reason = %q, want it to name DROP", qerr.Reason)
	}
}

func TestCheck_RejectsUnknownTable(t *testing.T) {
	err := sqlguard.Check("SELECT * FROM pathways", testSchema())
	var qerr *models.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("Check() = %v, want *models.QueryError", err)
	}
	if !strings.Contains(qerr.Reason, "pathways") {
		t.Errorf("Reason = %q, want it to name the unknown table", qerr.Reason)
	}
}

func TestCheck_RejectsNonSelect(t *testing.T) {
	err := sqlguard.Check("EXPLAIN SELECT * FROM de_results", testSchema())
	var qerr *models.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("Check() = %v, want *models.QueryError", err)
	}
}

func TestCheck_RejectsEmpty(t *testing.T) {
	for _, q := range []string{"", "   ", "-- just a comment"} {
		var qerr *models.QueryError
		if err := sqlguard.Check(q, testSchema()); !errors.As(err, &qerr) {
			t.Errorf("Check(%q) = %v, want *models.QueryError", q, err)
		}
	}
}

func TestCheck_CTENamesAreNotUnknownTables(t *testing.T) {
	q := "WITH ranked AS (SELECT * FROM de_results ORDER BY padj) SELECT * FROM ranked LIMIT 10"
	if err := sqlguard.Check(q, testSchema()); err != nil {
		t.Fatalf("Check(%q) = %v, want nil", q, err)
	}
}
