// Package plotcache holds per-session plot state: the single most
// recent (query result, query context) pair. The cache is the only
// coupling point between the query gateway and the plot renderer, so
// the two can be implemented and tested independently.
package plotcache

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rnalens/rnalens/pkg/models"
)

// entry pairs a result with its context so both are swapped in one
// pointer write. Readers see the old pair or the new pair, never a mix.
type entry struct {
	result   *models.QueryResult
	context  *models.QueryContext
	storedAt time.Time
}

// Cache is the plot state for one conversation session. Created empty,
// replaced wholesale on every successful query, read (never mutated) by
// each plot request. Not shared between sessions.
type Cache struct {
	mu    sync.RWMutex
	state *entry
}

// NewCache creates an empty session cache.
func NewCache() *Cache {
	return &Cache{}
}

// Store replaces the held state atomically. There is no partial update:
// callers who want to change context without changing data re-store both.
func (c *Cache) Store(result *models.QueryResult, qc *models.QueryContext) {
	e := &entry{result: result, context: qc, storedAt: time.Now().UTC()}
	c.mu.Lock()
	c.state = e
	c.mu.Unlock()
}

// Retrieve returns the pair last stored, or *models.NoDataError when
// nothing has been stored yet in the session.
func (c *Cache) Retrieve() (*models.QueryResult, *models.QueryContext, error) {
	c.mu.RLock()
	e := c.state
	c.mu.RUnlock()
	if e == nil {
		return nil, nil, &models.NoDataError{}
	}
	return e.result, e.context, nil
}

// StoredAt returns when the current state was stored; zero when empty.
func (c *Cache) StoredAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return time.Time{}
	}
	return c.state.storedAt
}

// ── Session Registry ─────────────────────────────────────────

// Registry maps session IDs to their caches so concurrent conversations
// never share plot state. It is the explicit replacement for a
// process-wide cache: each session gets its own Cache instance.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*Cache
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]*Cache)}
}

// Create allocates a new session and returns its ID.
func (r *Registry) Create() string {
	id := uuid.NewString()
	r.mu.Lock()
	r.caches[id] = NewCache()
	r.mu.Unlock()
	return id
}

// Get returns the cache for a session; ok is false for unknown IDs.
func (r *Registry) Get(id string) (*Cache, bool) {
	r.mu.RLock()
	c, ok := r.caches[id]
	r.mu.RUnlock()
	return c, ok
}

// Delete discards a session's state. Unknown IDs are a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.caches, id)
	r.mu.Unlock()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caches)
}
