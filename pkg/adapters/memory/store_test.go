package memory_test

import (
	"testing"

	"github.com/aretw0/questgraph/pkg/adapters/memory"
	"github.com/aretw0/questgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunInstanceStoreContract(t, memory.NewStore())
}

func TestMemoryRegistry_Contract(t *testing.T) {
	ports.RunDefinitionRegistryContract(t, memory.NewRegistry())
}

func TestSymbols(t *testing.T) {
	s := memory.NewSymbols("npc.smith", "item.*")
	assert.True(t, s.Resolve("npc.smith"))
	assert.True(t, s.Resolve("item.sword"))
	assert.False(t, s.Resolve("npc.baker"))
}
