package plotcache_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rnalens/rnalens/internal/plotcache"
	"github.com/rnalens/rnalens/pkg/models"
)

func result(rows int) *models.QueryResult {
	r := &models.QueryResult{Columns: []string{"gene"}}
	for i := 0; i < rows; i++ {
		r.Rows = append(r.Rows, models.Row{"gene": fmt.Sprintf("g%d", i)})
	}
	r.RowCount = rows
	return r
}

func TestRetrieve_EmptyCache(t *testing.T) {
	c := plotcache.NewCache()
	_, _, err := c.Retrieve()
	var ndErr *models.NoDataError
	if !errors.As(err, &ndErr) {
		t.Fatalf("Retrieve() on empty cache error = %v, want *models.NoDataError", err)
	}
}

func TestStoreRetrieve_LastWriteWins(t *testing.T) {
	c := plotcache.NewCache()
	for i := 1; i <= 5; i++ {
		c.Store(result(i), &models.QueryContext{Intent: fmt.Sprintf("query %d", i)})
	}

	res, qc, err := c.Retrieve()
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if res.RowCount != 5 {
		t.Errorf("RowCount = %d, want 5 (last stored)", res.RowCount)
	}
	if qc.Intent != "query 5" {
		t.Errorf("Intent = %q, want %q", qc.Intent, "query 5")
	}
}

// A reader must never observe the result of one store paired with the
// context of another.
func TestStore_PairNeverTorn(t *testing.T) {
	c := plotcache.NewCache()
	c.Store(result(0), &models.QueryContext{Intent: "rows 0"})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i < 500; i++ {
			c.Store(result(i), &models.QueryContext{Intent: fmt.Sprintf("rows %d", i)})
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		res, qc, err := c.Retrieve()
		if err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		want := fmt.Sprintf("rows %d", res.RowCount)
		if qc.Intent != want {
			t.Fatalf("torn pair: result has %d rows but context says %q", res.RowCount, qc.Intent)
		}
	}
}

func TestRegistry_SessionsAreIsolated(t *testing.T) {
	reg := plotcache.NewRegistry()
	a := reg.Create()
	b := reg.Create()
	if a == b {
		t.Fatal("Create() returned duplicate session IDs")
	}

	ca, ok := reg.Get(a)
	if !ok {
		t.Fatalf("Get(%q) not found", a)
	}
	ca.Store(result(3), &models.QueryContext{Intent: "session a"})

	cb, _ := reg.Get(b)
	if _, _, err := cb.Retrieve(); err == nil {
		t.Error("session b sees data stored by session a")
	}
}

func TestRegistry_Delete(t *testing.T) {
	reg := plotcache.NewRegistry()
	id := reg.Create()
	reg.Delete(id)
	if _, ok := reg.Get(id); ok {
		t.Error("Get() after Delete() found the session")
	}
	reg.Delete(id) // no-op
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}
