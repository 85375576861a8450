// Package retention removes aged plot artifacts from the output
// directory. Rendered charts are self-contained HTML files the
// presentation layer fetches right after rendering; anything older
// than the retention window is disposable.
//
// The janitor runs as a background goroutine and respects context
// cancellation for graceful shutdown.
package retention

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Janitor periodically deletes plot files older than the retention window.
type Janitor struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
}

// NewJanitor creates a janitor for dir. Files older than maxAge are
// removed each cycle.
func NewJanitor(dir string, maxAge, interval time.Duration) *Janitor {
	if interval < time.Minute {
		interval = time.Hour
	}
	return &Janitor{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Start runs the janitor in a loop. It blocks until ctx is canceled.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Str("dir", j.dir).
		Dur("max_age", j.maxAge).
		Dur("interval", j.interval).
		Msg("Plot retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	j.RunCycle()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Plot retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle()
		}
	}
}

// RunCycle performs one sweep and returns how many files were removed.
func (j *Janitor) RunCycle() int {
	cutoff := time.Now().Add(-j.maxAge)

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("dir", j.dir).Msg("Retention sweep failed to read plot dir")
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to remove expired plot")
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", j.dir).Msg("Retention sweep complete")
	}
	return removed
}
