// Package contracts defines the service interfaces of the RNAlens core.
//
// These interfaces are the boundary the orchestrating caller (the
// conversational/LLM layer, which lives outside this repo) programs
// against. Per turn it calls QueryGateway.Execute, then
// ResultCache.Store, then PlotRenderer.Render, in that order. The core
// never interprets free text itself.
package contracts

import (
	"context"

	"github.com/rnalens/rnalens/pkg/models"
)

// QueryGateway validates and executes read-only queries against the
// expression database and exposes its schema.
type QueryGateway interface {
	// Schema returns the current schema snapshot. An empty database
	// yields an empty schema, not an error.
	Schema(ctx context.Context) (models.Schema, error)

	// RefreshSchema re-reads the catalog and replaces the snapshot.
	RefreshSchema(ctx context.Context) (models.Schema, error)

	// Execute runs a single read-only statement. Unsafe or malformed
	// input fails with *models.QueryError before touching the database.
	// Results beyond the configured row ceiling are truncated and
	// flagged, never an error.
	Execute(ctx context.Context, query string) (*models.QueryResult, error)

	// SampleValues returns up to perColumn distinct non-null text
	// values for each text column of each table, as hints for query
	// construction: table → column → values.
	SampleValues(ctx context.Context, perColumn int) (map[string]map[string][]string, error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}

// ResultCache holds the single most recent (result, context) pair for
// one conversation session. Store replaces the pair atomically; a
// reader observes either the old pair or the new pair, never a mix.
type ResultCache interface {
	Store(result *models.QueryResult, qc *models.QueryContext)

	// Retrieve fails with *models.NoDataError until the first Store.
	Retrieve() (*models.QueryResult, *models.QueryContext, error)
}

// PlotRenderer turns the cached result into an interactive chart
// artifact on disk. Rendering always reads through the cache, so a plot
// reflects the most recently executed query and never a stale one.
type PlotRenderer interface {
	Render(ctx context.Context, cache ResultCache, kind models.PlotKind, opts models.PlotOptions) (*models.PlotArtifact, error)
}
