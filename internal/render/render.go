// Package render turns cached query results into interactive chart
// artifacts. Each plot kind is a variant of a closed enum with its own
// required-column contract; dispatch is an exhaustive switch. Charts
// are written as self-contained HTML documents (go-echarts) into a
// configured output directory.
//
// Rendering is deterministic: identical (result, context, options)
// input produces the same visual structure. Series are built in row
// order and there is no randomness anywhere in this package.
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rnalens/rnalens/pkg/contracts"
	"github.com/rnalens/rnalens/pkg/models"
)

// renderable is the slice of the go-echarts chart API the writer needs.
type renderable interface {
	Render(w io.Writer) error
}

// Renderer writes chart artifacts into an output directory. It
// implements contracts.PlotRenderer.
type Renderer struct {
	outputDir string
}

// New creates a Renderer that writes artifacts under outputDir. The
// directory is created on first render if absent.
func New(outputDir string) *Renderer {
	return &Renderer{outputDir: outputDir}
}

// Render reads the current session state through the cache and produces
// a chart of the requested kind. Data-shape problems (unknown kind,
// missing columns, nothing cached) fail before anything touches disk;
// disk problems fail with *models.RenderIOError.
func (r *Renderer) Render(ctx context.Context, cache contracts.ResultCache, kind models.PlotKind, opts models.PlotOptions) (*models.PlotArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.TimeoutError{Op: "render " + string(kind)}
	}

	res, qc, err := cache.Retrieve()
	if err != nil {
		return nil, err
	}

	opts = opts.Normalized()
	title := opts.Title
	if title == "" {
		title = qc.Title()
	}

	chart, points, err := r.build(kind, res, qc, opts, title)
	if err != nil {
		return nil, err
	}

	path, filename, err := r.write(kind, chart)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("kind", string(kind)).
		Str("path", path).
		Int("points", points).
		Msg("plot rendered")

	return &models.PlotArtifact{
		Kind:      kind,
		Path:      path,
		Filename:  filename,
		Title:     title,
		Points:    points,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// build dispatches on the plot kind. The switch is exhaustive over
// models.AllPlotKinds; anything else is an unsupported kind and no
// file is written.
func (r *Renderer) build(kind models.PlotKind, res *models.QueryResult, qc *models.QueryContext, opts models.PlotOptions, title string) (renderable, int, error) {
	switch kind {
	case models.PlotVolcano:
		return buildVolcano(res, opts, title)
	case models.PlotMA:
		return buildMA(res, opts, title)
	case models.PlotPathway:
		return buildPathway(res, opts, title)
	case models.PlotDot:
		return buildDot(res, opts, title)
	case models.PlotHeatmap:
		return buildHeatmap(res, opts, title)
	case models.PlotScatter:
		return buildScatter(res, opts, title)
	case models.PlotPCA:
		return buildComponents(models.PlotPCA, res, qc, opts, title)
	case models.PlotMDS:
		return buildComponents(models.PlotMDS, res, qc, opts, title)
	case models.PlotHistogram:
		return buildHistogram(res, opts, title)
	case models.PlotBox:
		return buildBox(res, opts, title)
	case models.PlotBar:
		return buildBar(res, opts, title)
	default:
		return nil, 0, &models.UnsupportedPlotKindError{Kind: string(kind), Valid: models.AllPlotKinds}
	}
}

// write renders the chart into a collision-free file named after the
// plot kind. Filenames carry a UTC timestamp plus a short random suffix
// so repeated renders within a second never collide.
func (r *Renderer) write(kind models.PlotKind, chart renderable) (string, string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", "", &models.RenderIOError{Path: r.outputDir, Err: err}
	}

	filename := fmt.Sprintf("%s_%s_%s.html",
		kind,
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString()[:8])
	path := filepath.Join(r.outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", "", &models.RenderIOError{Path: path, Err: err}
	}
	if err := chart.Render(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", "", &models.RenderIOError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", "", &models.RenderIOError{Path: path, Err: err}
	}
	return path, filename, nil
}
