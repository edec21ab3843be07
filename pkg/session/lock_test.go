package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/fsmsim/pkg/adapters/memory"
	"github.com/aretw0/fsmsim/pkg/domain"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(memory.NewStore())
	ctx := context.Background()
	count := 1000

	m := domain.Machine{States: []domain.StateDef{{Name: "A"}}}
	for i := 0; i < count; i++ {
		res, err := mgr.Create(ctx, m, domain.SessionConfig{})
		if err != nil {
			t.Fatal(err)
		}
		_ = mgr.WithLock(ctx, fmt.Sprintf("other-%d", i), func(context.Context) error { return nil })
		_ = mgr.Delete(ctx, res.Session.ID)
	}

	if lockCount := len(mgr.locks); lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
	if live := len(mgr.live); live != 0 {
		t.Errorf("%d simulators still live after Delete", live)
	}
}
