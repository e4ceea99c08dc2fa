package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/questgraph/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(context.Context, string, []byte) error   { return nil }
func (nopStore) Load(context.Context, string) ([]byte, error) { return nil, domain.ErrInstanceNotFound }
func (nopStore) Delete(context.Context, string) error         { return nil }
func (nopStore) List(context.Context) ([]string, error)       { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		id := fmt.Sprintf("instance-%d", i)
		_ = mgr.Save(ctx, domain.NewInstanceState(id, "q@1"))
		_ = mgr.Delete(ctx, id)
	}

	if n := len(mgr.locks); n != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", n)
	}
}
