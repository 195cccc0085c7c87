package cluster

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSingleNodeOwnsEveryPartition(t *testing.T) {
	r := NewRing(RingConfig{PartitionCount: 7, NodeName: "node-1"})
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, r.GetPartitions())

	id := uuid.NewString()
	p := r.GetPartition(id)
	require.GreaterOrEqual(t, p, 0)
	require.Less(t, p, 7)
	require.Equal(t, p, r.GetPartition(id))
}

func TestPartitionsSplitAcrossMembers(t *testing.T) {
	one := NewRing(RingConfig{PartitionCount: 31, NodeName: "node-1", Members: []string{"node-2", "node-3"}})
	two := NewRing(RingConfig{PartitionCount: 31, NodeName: "node-2", Members: []string{"node-1", "node-3"}})
	three := NewRing(RingConfig{PartitionCount: 31, NodeName: "node-3", Members: []string{"node-1", "node-2"}})
	require.Equal(t, []string{"node-1", "node-2", "node-3"}, one.Members())

	seen := make(map[int]string)
	for name, r := range map[string]*Ring{"node-1": one, "node-2": two, "node-3": three} {
		for _, p := range r.GetPartitions() {
			owner, dup := seen[p]
			require.False(t, dup, "partition %d owned by %s and %s", p, owner, name)
			seen[p] = name
		}
	}
	require.Len(t, seen, 31)

	id := uuid.NewString()
	require.Equal(t, one.GetPartition(id), two.GetPartition(id))

	one.Leave("node-2")
	one.Leave("node-3")
	require.Len(t, one.GetPartitions(), 31)
}
