// Package gateway provides read-only access to the RNA-seq results
// database. It opens a SQLite file, exposes a schema snapshot, and
// executes queries that pass the sqlguard safety checks. The gateway
// never writes to the database: the file is opened read-only and
// every statement is vetted before execution.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/rnalens/rnalens/internal/sqlguard"
	"github.com/rnalens/rnalens/pkg/models"
)

// Gateway wraps a SQLite connection with safety checking, schema
// introspection, and a row ceiling. It implements contracts.QueryGateway.
type Gateway struct {
	path       string
	rowCeiling int

	mu     sync.Mutex
	db     *sql.DB
	schema models.Schema
	closed bool
}

// Open connects to the SQLite database at path. It fails with
// *models.ConnectionError when the file does not exist, is not a valid
// database, or permissions deny access. The connection is opened in
// read-only mode.
func Open(path string, rowCeiling int) (*Gateway, error) {
	if rowCeiling <= 0 {
		rowCeiling = 10000
	}
	g := &Gateway{path: path, rowCeiling: rowCeiling}
	if err := g.connect(); err != nil {
		return nil, err
	}
	return g, nil
}

// connect establishes the connection if not already open. Idempotent:
// a second call with a live handle is a no-op.
func (g *Gateway) connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db != nil && !g.closed {
		return nil
	}

	if _, err := os.Stat(g.path); err != nil {
		return &models.ConnectionError{Path: g.path, Err: err}
	}

	// mode=ro keeps the read-only contract enforced at the driver
	// level as well, not just by sqlguard.
	db, err := sql.Open("sqlite", "file:"+g.path+"?mode=ro")
	if err != nil {
		return &models.ConnectionError{Path: g.path, Err: err}
	}

	// Ping plus a catalog probe: sql.Open is lazy, and Ping alone
	// does not prove the file is a SQLite database.
	if err := db.Ping(); err != nil {
		db.Close()
		return &models.ConnectionError{Path: g.path, Err: err}
	}
	var n int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return &models.ConnectionError{Path: g.path, Err: fmt.Errorf("not a valid database: %w", err)}
	}

	g.db = db
	g.closed = false
	g.schema = nil
	log.Info().Str("path", g.path).Msg("database connection established")
	return nil
}

// Schema returns the current schema snapshot, reading it from the
// database on first use. An empty database yields an empty schema.
func (g *Gateway) Schema(ctx context.Context) (models.Schema, error) {
	g.mu.Lock()
	cached := g.schema
	g.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	return g.RefreshSchema(ctx)
}

// RefreshSchema re-reads the catalog and replaces the snapshot wholesale.
func (g *Gateway) RefreshSchema(ctx context.Context) (models.Schema, error) {
	if err := g.connect(); err != nil {
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, &models.ConnectionError{Path: g.path, Err: err}
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, &models.ConnectionError{Path: g.path, Err: err}
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &models.ConnectionError{Path: g.path, Err: err}
	}

	schema := make(models.Schema, len(tables))
	for _, table := range tables {
		cols, err := g.tableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		schema[table] = cols
	}

	g.mu.Lock()
	g.schema = schema
	g.mu.Unlock()

	log.Debug().Int("tables", len(schema)).Msg("schema snapshot refreshed")
	return schema, nil
}

func (g *Gateway) tableColumns(ctx context.Context, table string) ([]models.Column, error) {
	// PRAGMA does not take placeholders; the table name comes from
	// sqlite_master, quoted defensively all the same.
	rows, err := g.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, &models.ConnectionError{Path: g.path, Err: err}
	}
	defer rows.Close()

	var cols []models.Column
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, &models.ConnectionError{Path: g.path, Err: err}
		}
		cols = append(cols, models.Column{Name: name, Type: typ})
	}
	return cols, rows.Err()
}

// Execute runs a single read-only query. Safety checks run before the
// database is touched; offending keywords and unknown tables surface as
// *models.QueryError. Results beyond the row ceiling are truncated and
// flagged, never an error.
func (g *Gateway) Execute(ctx context.Context, query string) (*models.QueryResult, error) {
	schema, err := g.Schema(ctx)
	if err != nil {
		return nil, err
	}
	if err := sqlguard.Check(query, schema); err != nil {
		log.Warn().Str("query", query).Err(err).Msg("query rejected")
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &models.TimeoutError{Op: "execute query"}
		}
		return nil, &models.QueryError{Query: query, Reason: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &models.QueryError{Query: query, Reason: err.Error()}
	}

	result := &models.QueryResult{Columns: cols}
	scan := make([]any, len(cols))
	for i := range scan {
		scan[i] = new(any)
	}

	for rows.Next() {
		if len(result.Rows) >= g.rowCeiling {
			result.Truncated = true
			break
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, &models.QueryError{Query: query, Reason: err.Error()}
		}
		row := make(models.Row, len(cols))
		for i, col := range cols {
			row[col] = normalize(*(scan[i].(*any)))
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &models.TimeoutError{Op: "execute query"}
		}
		return nil, &models.QueryError{Query: query, Reason: err.Error()}
	}

	result.RowCount = len(result.Rows)
	log.Info().
		Int("rows", result.RowCount).
		Bool("truncated", result.Truncated).
		Msg("query executed")
	return result, nil
}

// SampleValues returns up to perColumn distinct non-null text values
// for each text column of each table: table → column → values. The
// conversational layer uses these as hints when constructing filters.
func (g *Gateway) SampleValues(ctx context.Context, perColumn int) (map[string]map[string][]string, error) {
	if perColumn <= 0 {
		perColumn = 5
	}
	schema, err := g.Schema(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string][]string, len(schema))
	for _, table := range schema.Tables() {
		byColumn := make(map[string][]string)
		for _, col := range schema[table] {
			if !isTextType(col.Type) {
				continue
			}
			values, err := g.distinctValues(ctx, table, col.Name, perColumn)
			if err != nil {
				log.Warn().Str("table", table).Str("column", col.Name).Err(err).
					Msg("could not sample column values")
				continue
			}
			if len(values) > 0 {
				byColumn[col.Name] = values
			}
		}
		if len(byColumn) > 0 {
			out[table] = byColumn
		}
	}
	return out, nil
}

func (g *Gateway) distinctValues(ctx context.Context, table, column string, limit int) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d",
		quoteIdent(column), quoteIdent(table), quoteIdent(column), limit)
	rows, err := g.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, fmt.Sprint(normalize(v)))
	}
	return values, rows.Err()
}

// Close releases the connection. Safe to call more than once; a second
// call is a no-op.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil || g.closed {
		return nil
	}
	g.closed = true
	err := g.db.Close()
	log.Info().Str("path", g.path).Msg("database connection closed")
	return err
}

// normalize maps driver scan values onto the model's scalar set:
// string, int64, float64, or nil.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

func isTextType(declared string) bool {
	up := strings.ToUpper(declared)
	return strings.Contains(up, "CHAR") || strings.Contains(up, "TEXT") || strings.Contains(up, "CLOB")
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
