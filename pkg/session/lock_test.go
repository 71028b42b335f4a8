package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
)

// Lock entries are reference counted and dropped once no caller holds them.
func TestManager_LocksAreReleased(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := fmt.Sprintf("agent-%d", i%5)
			if _, err := mgr.LoadOrStart(ctx, sid, "guard"); err != nil {
				t.Errorf("load %s: %v", sid, err)
			}
			if err := mgr.Save(ctx, sid, domain.NewTreeState(sid, "guard")); err != nil {
				t.Errorf("save %s: %v", sid, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		if err := mgr.Delete(ctx, fmt.Sprintf("agent-%d", i)); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}

	if remaining := mgr.locks.len(); remaining != 0 {
		t.Errorf("%d session locks still held after all callers returned", remaining)
	}
}
