package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/IshaanNene/NovelGoat/internal/types"
)

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[*types.Novel](2)
	c.Put(1, &types.Novel{Title: "one"})
	c.Put(2, &types.Novel{Title: "two"})

	// Touch 1 so 2 becomes the eviction candidate.
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected user 1 cached")
	}
	c.Put(3, &types.Novel{Title: "three"})

	if _, ok := c.Get(2); ok {
		t.Error("user 2 should have been evicted")
	}
	for _, id := range []int64{1, 3} {
		if _, ok := c.Get(id); !ok {
			t.Errorf("user %d should still be cached", id)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCacheReplace(t *testing.T) {
	c := New[*types.Novel](2)
	c.Put(1, &types.Novel{Title: "old"})
	c.Put(1, &types.Novel{Title: "new"})

	n, ok := c.Get(1)
	if !ok || n.Title != "new" {
		t.Errorf("Get(1) = %v, %v", n, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheDelete(t *testing.T) {
	c := New[*types.Novel](0)
	c.Put(1, &types.Novel{})
	c.Delete(1)
	c.Delete(2)
	if _, ok := c.Get(1); ok {
		t.Error("deleted entry still present")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[*types.Novel](16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := int64((i*100 + j) % 32)
				c.Put(id, &types.Novel{Title: fmt.Sprint(id)})
				c.Get(id)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 16 {
		t.Errorf("Len() = %d exceeds capacity", c.Len())
	}
}
