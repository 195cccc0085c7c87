package cluster

import (
	"sort"
	"sync"

	"github.com/buraksezer/consistent"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

type hasher struct {
}

func NewHasher() *hasher {
	return &hasher{}
}

func (h hasher) Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

type RingConfig struct {
	PartitionCount int
	// NodeName is this process; Members are the other nodes sharing the
	// queue.
	NodeName string
	Members  []string
}

// Ring maps execution ids onto queue partitions and partitions onto nodes.
// Every command of one execution lands in the same partition, and each
// partition has a single consumer, so one execution has one writer.
type Ring struct {
	RingConfig
	hring     *consistent.Consistent
	nodes     map[string]Node
	localNode Node
	mu        sync.Mutex
}

type Node struct {
	name string
}

func (n Node) String() string {
	return n.name
}

func NewRing(c RingConfig) *Ring {
	if c.PartitionCount <= 0 {
		c.PartitionCount = 1
	}
	cfg := consistent.Config{
		PartitionCount:    c.PartitionCount,
		ReplicationFactor: 20,
		Load:              1.25,
		Hasher:            NewHasher(),
	}
	r := &Ring{
		RingConfig: c,
		hring:      consistent.New(nil, cfg),
		nodes:      make(map[string]Node),
	}
	r.localNode = Node{name: c.NodeName}
	r.Join(c.NodeName)
	for _, m := range c.Members {
		r.Join(m)
	}
	return r
}

func (r *Ring) Join(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[name]; ok {
		return
	}
	logger.Info("adding member to ring", zap.String("node", name))
	node := Node{name: name}
	r.nodes[name] = node
	r.hring.Add(node)
}

func (r *Ring) Leave(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.nodes[name]; !ok {
		return
	}
	logger.Info("removing member from ring", zap.String("node", name))
	delete(r.nodes, name)
	r.hring.Remove(name)
}

func (r *Ring) GetPartition(key string) int {
	return r.hring.FindPartitionID([]byte(key))
}

// GetPartitions returns the partitions this node consumes, in order.
func (r *Ring) GetPartitions() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	partitions := make([]int, 0)
	for i := 0; i < r.PartitionCount; i++ {
		owner := r.hring.GetPartitionOwner(i)
		if owner != nil && owner.String() == r.localNode.name {
			partitions = append(partitions, i)
		}
	}
	sort.Ints(partitions)
	return partitions
}

func (r *Ring) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
