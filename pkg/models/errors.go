package models

import (
	"errors"
	"fmt"
	"strings"
)

// The error taxonomy splits into two classes. Data-class errors mean the
// request itself was wrong (bad query, missing columns, nothing cached)
// and the caller should re-ask the user. Environment-class errors mean
// the surroundings failed (connection, disk, timeout) and the caller may
// retry. Environmental reports which class an error belongs to.

// ConnectionError means the database could not be opened or reached.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection failed for %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError means a query was unsafe, malformed, or referenced an
// unknown identifier. The offending detail is always named.
type QueryError struct {
	Query  string
	Reason string
}

func (e *QueryError) Error() string {
	return "query rejected: " + e.Reason
}

// NoDataError means a plot was requested before any query result was
// stored in the session.
type NoDataError struct{}

func (e *NoDataError) Error() string {
	return "no data available for plotting: run a query first"
}

// UnsupportedPlotKindError names the rejected kind and the valid set.
type UnsupportedPlotKindError struct {
	Kind  string
	Valid []PlotKind
}

func (e *UnsupportedPlotKindError) Error() string {
	valid := make([]string, len(e.Valid))
	for i, k := range e.Valid {
		valid[i] = string(k)
	}
	return fmt.Sprintf("unsupported plot kind %q: valid kinds are %s",
		e.Kind, strings.Join(valid, ", "))
}

// MissingColumnsError names exactly which required columns the stored
// result lacks. Columns are role descriptions with accepted names, e.g.
// "fold change (log2fc, logfc, lfc)".
type MissingColumnsError struct {
	Kind    PlotKind
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s plot requires columns the result does not have: %s",
		e.Kind, strings.Join(e.Columns, "; "))
}

// RenderIOError means the chart could not be written to disk. Distinct
// from data-shape errors so callers can tell bad data from bad
// environment apart.
type RenderIOError struct {
	Path string
	Err  error
}

func (e *RenderIOError) Error() string {
	return fmt.Sprintf("failed to write plot artifact %s: %v", e.Path, e.Err)
}

func (e *RenderIOError) Unwrap() error { return e.Err }

// TimeoutError means the per-turn deadline expired. Session state is
// left untouched when a turn times out.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return "operation timed out: " + e.Op
}

// Environmental reports whether err is environment-class (retryable)
// rather than data-class (re-ask the user).
func Environmental(err error) bool {
	var connErr *ConnectionError
	var ioErr *RenderIOError
	var toErr *TimeoutError
	return errors.As(err, &connErr) || errors.As(err, &ioErr) || errors.As(err, &toErr)
}

// ErrorKind returns a stable machine-readable name for the error's
// taxonomy class, for API consumers.
func ErrorKind(err error) string {
	var (
		connErr *ConnectionError
		qErr    *QueryError
		ndErr   *NoDataError
		upkErr  *UnsupportedPlotKindError
		mcErr   *MissingColumnsError
		ioErr   *RenderIOError
		toErr   *TimeoutError
	)
	switch {
	case errors.As(err, &connErr):
		return "connection_error"
	case errors.As(err, &qErr):
		return "query_error"
	case errors.As(err, &ndErr):
		return "no_data"
	case errors.As(err, &upkErr):
		return "unsupported_plot_kind"
	case errors.As(err, &mcErr):
		return "missing_columns"
	case errors.As(err, &ioErr):
		return "render_io_error"
	case errors.As(err, &toErr):
		return "timeout"
	default:
		return "internal"
	}
}
