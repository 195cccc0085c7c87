package process

import (
	"fmt"
	"strings"

	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/state"
)

type Node interface {
	GetId() string
	GetKind() model.NodeKind
	GetName() string
	GetDef() model.NodeDef
	// IsHuman tells whether the node waits for actors.
	IsHuman() bool
	Validate(registry *input.Registry) error
	// next picks the outbound edges that apply to doc.
	next(doc map[string]any) ([]model.EdgeDef, error)
}

var _ Node = new(baseNode)

type baseNode struct {
	def    model.NodeDef
	guards map[int]*guard
}

func newBaseNode(def model.NodeDef) *baseNode {
	return &baseNode{def: def, guards: make(map[int]*guard)}
}

func (n *baseNode) GetId() string {
	return n.def.Id
}

func (n *baseNode) GetKind() model.NodeKind {
	return n.def.Kind
}

func (n *baseNode) GetName() string {
	if n.def.Name == "" {
		return n.def.Id
	}
	return n.def.Name
}

func (n *baseNode) GetDef() model.NodeDef {
	return n.def
}

func (n *baseNode) IsHuman() bool {
	return false
}

func (n *baseNode) Validate(registry *input.Registry) error {
	for i, edge := range n.def.Edges {
		if edge.Guard == "" {
			continue
		}
		g, err := compileGuard(n.def.Id, i, edge.Guard)
		if err != nil {
			return err
		}
		n.guards[i] = g
	}
	return nil
}

// matches evaluates the guard of every edge. Edges without a guard always
// match.
func (n *baseNode) matches(doc map[string]any) ([]model.EdgeDef, error) {
	out := make([]model.EdgeDef, 0, len(n.def.Edges))
	for i, edge := range n.def.Edges {
		g, ok := n.guards[i]
		if !ok {
			out = append(out, edge)
			continue
		}
		pass, err := g.eval(doc)
		if err != nil {
			return nil, err
		}
		if pass {
			out = append(out, edge)
		}
	}
	return out, nil
}

// next on a plain node follows at most one edge.
func (n *baseNode) next(doc map[string]any) ([]model.EdgeDef, error) {
	if len(n.def.Edges) == 0 {
		return nil, nil
	}
	edges, err := n.matches(doc)
	if err != nil {
		return nil, err
	}
	return exactlyOne(n.def.Id, edges)
}

// humanNode is a node acted on by people submitting forms.
type humanNode struct {
	*baseNode
}

func (n *humanNode) IsHuman() bool {
	return true
}

// RequiredActors is how many actors must act before the node is done.
func RequiredActors(def model.NodeDef) int {
	if def.RequiredActors > 0 {
		return def.RequiredActors
	}
	return 1
}

func (n *humanNode) Validate(registry *input.Registry) error {
	if err := n.baseNode.Validate(registry); err != nil {
		return err
	}
	if n.def.RequiredActors < 0 {
		return fmt.Errorf("node %s: required_actors can not be negative", n.def.Id)
	}
	if len(n.def.Actors) > 0 && RequiredActors(n.def) > len(n.def.Actors) {
		return fmt.Errorf("node %s requires %d actors but permits %d", n.def.Id, RequiredActors(n.def), len(n.def.Actors))
	}
	refs := make(map[string]bool)
	for _, form := range n.def.Forms {
		if form.Ref == "" {
			return fmt.Errorf("node %s has a form without ref", n.def.Id)
		}
		if strings.Contains(form.Ref, state.REF_SEPARATOR) {
			return fmt.Errorf("node %s form ref %s can not contain %q", n.def.Id, form.Ref, state.REF_SEPARATOR)
		}
		if refs[form.Ref] {
			return fmt.Errorf("node %s declares form %s twice", n.def.Id, form.Ref)
		}
		refs[form.Ref] = true
		names := make(map[string]bool)
		for _, in := range form.Inputs {
			if in.Name == "" {
				return fmt.Errorf("node %s form %s has an input without name", n.def.Id, form.Ref)
			}
			if strings.Contains(in.Name, state.REF_SEPARATOR) {
				return fmt.Errorf("node %s form %s input %s can not contain %q", n.def.Id, form.Ref, in.Name, state.REF_SEPARATOR)
			}
			if names[in.Name] {
				return fmt.Errorf("node %s form %s declares input %s twice", n.def.Id, form.Ref, in.Name)
			}
			names[in.Name] = true
			if _, err := registry.Get(in); err != nil {
				return err
			}
		}
	}
	return nil
}

type actionNode struct {
	humanNode
}

func newActionNode(def model.NodeDef) *actionNode {
	return &actionNode{humanNode{newBaseNode(def)}}
}

func (n *actionNode) Validate(registry *input.Registry) error {
	if len(n.def.Deps) > 0 {
		return fmt.Errorf("node %s: only validation nodes declare deps", n.def.Id)
	}
	return n.humanNode.Validate(registry)
}

// validationNode is acted on by a reviewer who accepts or rejects the values
// its deps point at.
type validationNode struct {
	humanNode
}

func newValidationNode(def model.NodeDef) *validationNode {
	return &validationNode{humanNode{newBaseNode(def)}}
}

func (n *validationNode) Validate(registry *input.Registry) error {
	for _, dep := range n.def.Deps {
		if _, _, err := state.ParseDep(dep); err != nil {
			return fmt.Errorf("node %s: %w", n.def.Id, err)
		}
	}
	return n.humanNode.Validate(registry)
}

type endNode struct {
	*baseNode
}

func newEndNode(def model.NodeDef) *endNode {
	return &endNode{newBaseNode(def)}
}

func (n *endNode) Validate(registry *input.Registry) error {
	if len(n.def.Edges) > 0 {
		return fmt.Errorf("end node %s can not have edges", n.def.Id)
	}
	if len(n.def.Forms) > 0 {
		return fmt.Errorf("end node %s can not have forms", n.def.Id)
	}
	return nil
}

func (n *endNode) next(doc map[string]any) ([]model.EdgeDef, error) {
	return nil, nil
}
