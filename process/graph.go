package process

import (
	"fmt"
	"strings"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/state"
)

// Graph is the read-only form of one process version.
type Graph struct {
	process model.Process
	nodes   map[string]Node
	order   []string
}

func newNode(def model.NodeDef) (Node, error) {
	switch def.Kind {
	case model.NODE_KIND_ACTION:
		return newActionNode(def), nil
	case model.NODE_KIND_VALIDATION:
		return newValidationNode(def), nil
	case model.NODE_KIND_EXCLUSIVE_GATEWAY:
		return newExclusiveGateway(def), nil
	case model.NODE_KIND_PARALLEL_GATEWAY:
		return newParallelGateway(def), nil
	case model.NODE_KIND_END:
		return newEndNode(def), nil
	}
	return nil, fmt.Errorf("node %s has unknown kind %s", def.Id, def.Kind)
}

// NewGraph checks p and builds its graph. Every problem is reported as a
// graph.malformed GraphError.
func NewGraph(p model.Process, registry *input.Registry) (*Graph, error) {
	g, err := buildGraph(p, registry)
	if err != nil {
		if _, ok := err.(api.GraphError); ok {
			return nil, err
		}
		return nil, api.NewGraphError(api.CODE_GRAPH_MALFORMED, p.Name, "%s", err.Error())
	}
	return g, nil
}

func buildGraph(p model.Process, registry *input.Registry) (*Graph, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("process name can not be empty")
	}
	if len(p.Nodes) == 0 {
		return nil, fmt.Errorf("process %s has no nodes", p.Name)
	}
	g := &Graph{
		process: p,
		nodes:   make(map[string]Node, len(p.Nodes)),
		order:   make([]string, 0, len(p.Nodes)),
	}
	for _, def := range p.Nodes {
		if def.Id == "" {
			return nil, fmt.Errorf("process %s has a node without id", p.Name)
		}
		if strings.Contains(def.Id, state.REF_SEPARATOR) {
			return nil, fmt.Errorf("node id %s can not contain %q", def.Id, state.REF_SEPARATOR)
		}
		if _, ok := g.nodes[def.Id]; ok {
			return nil, fmt.Errorf("node id %s is duplicate", def.Id)
		}
		n, err := newNode(def)
		if err != nil {
			return nil, err
		}
		g.nodes[def.Id] = n
		g.order = append(g.order, def.Id)
	}
	start := p.StartNode
	if start == "" {
		start = p.Nodes[0].Id
		g.process.StartNode = start
	}
	startNode, ok := g.nodes[start]
	if !ok {
		return nil, fmt.Errorf("no node with start node id %s in process", start)
	}
	if !startNode.IsHuman() {
		return nil, fmt.Errorf("start node %s must be acted on by people", start)
	}
	for _, id := range g.order {
		n := g.nodes[id]
		for _, edge := range n.GetDef().Edges {
			if _, ok := g.nodes[edge.To]; !ok {
				return nil, fmt.Errorf("invalid edge for node %s, node %s not defined", id, edge.To)
			}
		}
		if err := n.Validate(registry); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) Process() model.Process {
	return g.process
}

func (g *Graph) Name() string {
	return g.process.Name
}

func (g *Graph) StartNode() Node {
	return g.nodes[g.process.StartNode]
}

func (g *Graph) Node(id string) (Node, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, api.NewGraphError(api.CODE_GRAPH_NOT_FOUND, id, "node %s not found in process %s", id, g.process.Name)
	}
	return n, nil
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Outbound returns the successors of node id given the committed state of
// exec, in edge order.
func (g *Graph) Outbound(id string, exec *model.Execution) ([]Node, error) {
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}
	doc, err := state.Document(exec)
	if err != nil {
		return nil, api.NewGraphError(api.CODE_GRAPH_GUARD, id, "can not render state document: %s", err.Error())
	}
	edges, err := n.next(doc)
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(edges))
	for _, edge := range edges {
		out = append(out, g.nodes[edge.To])
	}
	return out, nil
}
