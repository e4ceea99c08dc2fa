package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunInstanceStoreContract runs a suite of tests to verify that an InstanceStore
// implementation adheres to the defined interface contract.
func RunInstanceStoreContract(t *testing.T, store InstanceStore) {
	ctx := context.Background()
	instanceID := "contract-test-instance-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		payload := []byte{0x00, 0x01, 'q', 'u', 'e', 's', 't', 0xff}

		require.NoError(t, store.Save(ctx, instanceID, payload), "Save should not return error")

		loaded, err := store.Load(ctx, instanceID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, payload, loaded, "binary payloads must survive untouched")

		// Overwrite
		require.NoError(t, store.Save(ctx, instanceID, []byte("v2")))
		loaded, err = store.Load(ctx, instanceID)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+instanceID)
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, instanceID, []byte("x")))

		require.NoError(t, store.Delete(ctx, instanceID), "Delete should not return error")

		_, err := store.Load(ctx, instanceID)
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound, "Load after Delete should return ErrInstanceNotFound")

		assert.NoError(t, store.Delete(ctx, instanceID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := instanceID + "-1"
		id2 := instanceID + "-2"
		require.NoError(t, store.Save(ctx, id1, []byte("a")))
		require.NoError(t, store.Save(ctx, id2, []byte("b")))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunDefinitionRegistryContract verifies a DefinitionRegistry implementation.
func RunDefinitionRegistryContract(t *testing.T, reg DefinitionRegistry) {
	ctx := context.Background()

	m := &domain.Machine{
		ID:    "contract@0001",
		Name:  "contract",
		Entry: 0,
		States: []domain.State{
			{NodeID: "start", Kind: domain.KindObjective, Guard: 0, Out: []int{0}},
			{NodeID: "end", Kind: domain.KindTerminal, Outcome: domain.OutcomeSuccess, Guard: domain.NoCond, In: []int{0}},
		},
		Transitions: []domain.Transition{{Source: 0, Target: 1, Guard: 0}},
		Conds:       []domain.Cond{{Op: domain.OpRef, Pred: 0}},
		Predicates:  []string{"door.open"},
	}

	t.Run("Register and Get", func(t *testing.T) {
		require.NoError(t, reg.Register(ctx, m))
		got, err := reg.Definition(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, m, got)

		require.NoError(t, reg.Register(ctx, m), "registering twice is a no-op")
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := reg.Definition(ctx, "nope@0000")
		assert.ErrorIs(t, err, domain.ErrDefinitionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := reg.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, m.ID)
	})
}
